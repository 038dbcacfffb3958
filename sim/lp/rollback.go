package lp

import (
	"sort"

	"github.com/aika-sim/aika/sim"
	"github.com/aika-sim/aika/sim/trace"
	"github.com/sirupsen/logrus"
)

// receive applies one delivered transferable.
func (p *Process) receive(t sim.Transferable) error {
	if t.IsAnti() {
		return p.receiveAnti(t.Anti())
	}
	m := t.Message
	for i, a := range p.orphans {
		if a.Matches(m) {
			p.orphans = append(p.orphans[:i], p.orphans[i+1:]...)
			p.stats.Annihilations++
			return nil
		}
	}
	if p.hasLast && m.Stamp().Less(p.last) {
		if err := p.rollback(m.Stamp(), trace.CauseStraggler); err != nil {
			return err
		}
	}
	p.pending.schedule(m)
	return nil
}

func (p *Process) receiveAnti(a sim.AntiMessage) error {
	if p.pending.cancel(a) {
		p.stats.Annihilations++
		return nil
	}
	for _, m := range p.processed {
		if !a.Matches(m) {
			continue
		}
		if err := p.rollback(a.Stamp(), trace.CauseAntiMessage); err != nil {
			return err
		}
		if p.pending.cancel(a) {
			p.stats.Annihilations++
		}
		return nil
	}
	// The positive is still in transit; hold on until it shows up.
	p.orphans = append(p.orphans, a)
	return nil
}

// rollback restores the newest snapshot strictly below to, requeues every
// message processed after it and cancels every message sent after it.
func (p *Process) rollback(to sim.Stamp, cause string) error {
	before := p.history.Len()
	e, err := p.history.Rollback(to)
	if err != nil {
		return err
	}
	undone := before - p.history.Len()
	after := func(s sim.Stamp) bool { return e.Genesis || e.At.Less(s) }

	p.state.Restore(e.Value.state)
	p.calendar.reset(e.Value.wakes)
	p.halted = e.Value.halted

	keep := p.processed[:0]
	requeued := make([]sim.Message, 0)
	for _, m := range p.processed {
		if after(m.Stamp()) {
			requeued = append(requeued, m)
			continue
		}
		keep = append(keep, m)
	}
	p.processed = keep
	for _, m := range requeued {
		p.pending.schedule(m)
	}

	var cancel []sim.AntiMessage
	kept := p.sent[:0]
	for _, m := range p.sent {
		if after(m.SentAt) {
			cancel = append(cancel, m.Anti())
			continue
		}
		kept = append(kept, m)
	}
	p.sent = kept
	sort.Slice(cancel, func(i, j int) bool {
		if cancel[i].Destination != cancel[j].Destination {
			return cancel[i].Destination < cancel[j].Destination
		}
		return cancel[i].Seq < cancel[j].Seq
	})
	for _, a := range cancel {
		p.transmit(sim.Negative(a))
	}

	from := p.last
	p.last = e.At
	p.hasLast = !e.Genesis

	p.stats.Rollbacks++
	p.stats.RolledBackItems += uint64(undone)
	p.stats.AntiMessagesSent += uint64(len(cancel))
	p.trace.RecordRollback(trace.RollbackRecord{
		LP:           int(p.id),
		Cause:        cause,
		TriggerTime:  to.Time,
		FromTime:     from.Time,
		RestoredTime: e.At.Time,
		Genesis:      e.Genesis,
		Undone:       undone,
		Cancelled:    len(cancel),
	})
	logrus.Debugf("[lp %d] rollback (%s) from %v to %v: undone=%d cancelled=%d",
		p.id, cause, from, e.At, undone, len(cancel))
	return nil
}
