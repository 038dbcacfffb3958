// Package lp runs one user-supplied logical process.
//
// A Process owns its calendar of wake times, the queue of unprocessed
// messages, the logs of processed and sent messages, and a bounded history
// of state snapshots. Run executes the stepping loop on a dedicated OS
// thread and talks to the coordinator only through its two rings and a few
// single-writer atomics (see Links).
package lp

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/aika-sim/aika/sim"
	"github.com/aika-sim/aika/sim/history"
	"github.com/aika-sim/aika/sim/ring"
	"github.com/aika-sim/aika/sim/trace"
	"github.com/sirupsen/logrus"
)

const (
	spinBudget = 256                   // idle polls before sleeping
	idleSleep  = 50 * time.Microsecond // sleep once the spin budget is spent
)

// Options configures one Process.
type Options struct {
	LPs           int      // population size, for destination checks
	Timestep      sim.Time // stride used when an event does not move time forward
	LogSlots      int      // history entries kept
	CalendarSlots int      // pending wakes allowed
	Terminal      sim.Time // work at or after this time is never executed
	Recorder      sim.Recorder
	Trace         trace.TraceConfig
}

// Links are the cells shared with the coordinator. Every atomic has a
// single writer.
type Links struct {
	Outbox    *ring.Writer[sim.Transferable] // written by the LP
	Inbox     *ring.Reader[sim.Transferable] // read by the LP
	LocalTime *atomic.Uint64                 // written by the LP
	Consumed  *atomic.Uint64                 // items taken from Inbox; written by the LP
	Relayed   *atomic.Uint64                 // items taken from Outbox; written by the coordinator
	GVT       *atomic.Uint64                 // written by the coordinator
	Stop      *atomic.Bool                   // written by the coordinator
}

// checkpoint is the runtime state captured after each work item.
type checkpoint struct {
	state  []byte
	wakes  []sim.Time
	halted bool
}

// Process is the runtime of one LP. All fields are owned by the goroutine
// executing Run; Stats, FinalState and Trace may be read after Run returns.
type Process struct {
	id    sim.LPID
	logic sim.LogicalProcess
	opts  Options
	links Links

	state     *sim.State
	calendar  *calendar
	halted    bool
	pending   pendingQueue
	processed []sim.Message // applied messages, ascending stamp
	sent      []sim.Message // messages sent and not yet below GVT, ascending SentAt
	orphans   []sim.AntiMessage
	history   *history.Log[checkpoint]

	last    sim.Stamp // stamp of the last processed item
	hasLast bool
	seq     uint64

	inflight    []sim.Time // timestamps written to Outbox, not yet relayed
	relayedSeen uint64
	overflow    []sim.Transferable // rejected by a full Outbox
	consumed    uint64
	recordErr   bool

	stats sim.LPStats
	trace *trace.SimulationTrace
}

// New creates the runtime for logic. The LP starts with a wake at time 0.
// Panics on non-positive slot counts.
func New(id sim.LPID, logic sim.LogicalProcess, opts Options, links Links) *Process {
	if opts.CalendarSlots < 1 {
		panic("lp: CalendarSlots must be >0")
	}
	if opts.Timestep == 0 {
		opts.Timestep = 1
	}
	if opts.Recorder == nil {
		opts.Recorder = sim.DiscardRecorder{}
	}
	p := &Process{
		id:       id,
		logic:    logic,
		opts:     opts,
		links:    links,
		state:    sim.NewState(id, nil),
		calendar: newCalendar(opts.CalendarSlots),
		pending:  make(pendingQueue, 0),
		history:  history.New(opts.LogSlots, checkpoint{wakes: []sim.Time{0}}),
		stats:    sim.LPStats{LP: id},
		trace:    trace.NewSimulationTrace(opts.Trace),
	}
	if err := p.calendar.add(0); err != nil {
		panic(fmt.Sprintf("lp %d: initial wake: %v", id, err))
	}
	p.publish()
	return p
}

// ID returns the LP's slot.
func (p *Process) ID() sim.LPID { return p.id }

// SetTerminal sets the terminal time before Run starts.
func (p *Process) SetTerminal(t sim.Time) {
	p.opts.Terminal = t
	p.publish()
}

// Stats returns the LP counters.
func (p *Process) Stats() sim.LPStats {
	s := p.stats
	s.Dropped = p.history.Dropped()
	s.FinalState = p.FinalState()
	return s
}

// FinalState returns the current state bytes.
func (p *Process) FinalState() []byte {
	return append([]byte(nil), p.state.Bytes()...)
}

// Trace returns the rollbacks recorded by this LP.
func (p *Process) Trace() *trace.SimulationTrace { return p.trace }

// Run executes the LP loop on a locked OS thread until the coordinator
// raises Stop. A non-nil error is fatal for this LP.
func (p *Process) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	idle := 0
	for !p.links.Stop.Load() {
		if err := p.drain(); err != nil {
			return p.fail(err)
		}
		p.trimInflight()
		p.flush()

		worked, err := p.advance()
		if err != nil {
			return p.fail(err)
		}
		p.fossil(p.links.GVT.Load())
		p.publish()

		if worked {
			idle = 0
			continue
		}
		if idle++; idle < spinBudget {
			runtime.Gosched()
			continue
		}
		idle = 0
		time.Sleep(idleSleep)
	}
	p.fossil(p.links.GVT.Load())
	logrus.Debugf("[lp %d] stopped: steps=%d msgs=%d rollbacks=%d", p.id, p.stats.Steps, p.stats.MessagesProcessed, p.stats.Rollbacks)
	return nil
}

func (p *Process) fail(err error) error {
	logrus.Errorf("[lp %d] fatal: %v", p.id, err)
	return &sim.LPError{LP: p.id, Err: err}
}

// drain takes every delivered transferable from the inbox, then publishes
// local time before acknowledging them so the coordinator never loses
// sight of an item in between.
func (p *Process) drain() error {
	n := 0
	for limit := p.links.Inbox.Cap(); n < limit; n++ {
		t, ok := p.links.Inbox.Read()
		if !ok {
			break
		}
		p.consumed++
		if err := p.receive(t); err != nil {
			return err
		}
	}
	if n > 0 {
		p.publish()
		p.links.Consumed.Store(p.consumed)
	}
	return nil
}

// trimInflight forgets outbox items the coordinator has relayed.
func (p *Process) trimInflight() {
	relayed := p.links.Relayed.Load()
	for p.relayedSeen < relayed && len(p.inflight) > 0 {
		p.inflight = p.inflight[1:]
		p.relayedSeen++
	}
}

// flush retries transferables rejected by the outbox, oldest first.
func (p *Process) flush() {
	for len(p.overflow) > 0 {
		if !p.links.Outbox.Write(p.overflow[0]) {
			return
		}
		p.inflight = append(p.inflight, p.overflow[0].Timestamp())
		p.overflow[0] = sim.Transferable{}
		p.overflow = p.overflow[1:]
	}
}

// transmit hands t to the outbox, or to the local overflow queue when the
// outbox is full or already has a backlog queued ahead of it.
func (p *Process) transmit(t sim.Transferable) {
	if len(p.overflow) == 0 && p.links.Outbox.Write(t) {
		p.inflight = append(p.inflight, t.Timestamp())
		return
	}
	p.overflow = append(p.overflow, t)
}

// LocalTime returns the earliest time at which this LP may still cause
// work anywhere: its next wake, its earliest pending message, or the
// earliest message it sent that the coordinator has not yet picked up.
// The value is clamped to the terminal time.
func (p *Process) LocalTime() sim.Time {
	t := p.opts.Terminal
	if w, ok := p.calendar.peek(); ok && w < t {
		t = w
	}
	if m, ok := p.pending.peek(); ok && m.Timestamp < t {
		t = m.Timestamp
	}
	for _, ts := range p.inflight {
		if ts < t {
			t = ts
		}
	}
	for _, o := range p.overflow {
		if o.Timestamp() < t {
			t = o.Timestamp()
		}
	}
	return t
}

func (p *Process) publish() {
	p.links.LocalTime.Store(p.LocalTime())
}

// advance executes the single next work item, if one is due before the
// terminal time.
func (p *Process) advance() (bool, error) {
	m, hasMsg := p.pending.peek()
	w, hasWake := p.calendar.peek()
	switch {
	case hasMsg && (!hasWake || m.Stamp().Less(sim.StepStamp(w, p.id))):
		if m.Timestamp >= p.opts.Terminal {
			return false, nil
		}
		return true, p.applyMessage(p.pending.next())
	case hasWake:
		if w >= p.opts.Terminal {
			return false, nil
		}
		return true, p.applyStep(p.calendar.pop())
	}
	return false, nil
}

func (p *Process) applyStep(now sim.Time) error {
	stamp := sim.StepStamp(now, p.id)
	p.state.Begin(now)
	ev := p.logic.Step(now, p.state)
	p.stats.Steps++
	if err := p.schedule(ev, stamp); err != nil {
		return err
	}
	return p.commit(stamp)
}

func (p *Process) applyMessage(m sim.Message) error {
	stamp := m.Stamp()
	p.state.Begin(m.Timestamp)
	out := p.logic.ProcessMessage(m, m.Timestamp, p.state)
	p.stats.MessagesProcessed++
	p.processed = append(p.processed, m)
	if ev, ok := out.Event(); ok {
		if err := p.schedule(ev, stamp); err != nil {
			return err
		}
	}
	if anns, ok := out.Annihilator(); ok {
		if err := p.retract(anns, stamp); err != nil {
			return err
		}
	}
	return p.commit(stamp)
}

// schedule applies ev's action to the calendar. A wake that would not
// sort after the current item is pushed one timestep ahead.
func (p *Process) schedule(ev sim.Event, at sim.Stamp) error {
	if ev.Owner != p.id {
		logrus.Warnf("[lp %d] ignoring event owned by lp %d", p.id, ev.Owner)
		return nil
	}
	switch ev.Action.Kind {
	case sim.ActionWait:
		return nil
	case sim.ActionBreak:
		p.halted = true
		p.calendar.clear()
		return nil
	case sim.ActionTimeout:
		if p.halted {
			return nil
		}
		due := ev.DueAt
		if !at.Less(sim.StepStamp(due, p.id)) {
			due = at.Time + p.opts.Timestep
		}
		return p.calendar.add(due)
	}
	return fmt.Errorf("unknown action %v", ev.Action)
}

// commit sends the messages produced by the item at stamp and records
// the post-item snapshot.
func (p *Process) commit(stamp sim.Stamp) error {
	for _, m := range p.state.Outgoing() {
		if m.Timestamp < stamp.Time {
			return fmt.Errorf("%w: sent at %d for %d to lp %d", sim.ErrCausality, stamp.Time, m.Timestamp, m.Destination)
		}
		if int(m.Destination) < 0 || int(m.Destination) >= p.opts.LPs {
			return fmt.Errorf("send to unknown lp %d", m.Destination)
		}
		p.seq++
		m.Seq = p.seq
		m.SentAt = stamp
		p.sent = append(p.sent, m)
		p.transmit(sim.Positive(m))
	}
	evicted := p.history.Push(stamp, checkpoint{
		state:  p.state.Bytes(),
		wakes:  p.calendar.snapshot(),
		halted: p.halted,
	})
	if evicted && p.history.Dropped() == 1 {
		logrus.Warnf("[lp %d] history full at %v: snapshots evicted before commit will not be recorded (log slots %d)",
			p.id, stamp, p.history.Slots())
	}
	p.last = stamp
	p.hasLast = true
	return nil
}

// retract sends antimessages requested by the LP itself while handling
// the item at stamp. An antimessage with Seq 0 names the newest matching
// message by destination and time. Retracting a message timestamped
// before stamp fails with sim.ErrCausality and retracts nothing.
func (p *Process) retract(anns sim.Annihilator, stamp sim.Stamp) error {
	for _, a := range anns {
		if a.Timestamp < stamp.Time {
			return fmt.Errorf("%w: retracting message for %d to lp %d at %d", sim.ErrCausality, a.Timestamp, a.Destination, stamp.Time)
		}
	}
	for _, a := range anns {
		idx := -1
		for i := len(p.sent) - 1; i >= 0; i-- {
			m := p.sent[i]
			if m.Destination == a.Destination && m.Timestamp == a.Timestamp && (a.Seq == 0 || a.Seq == m.Seq) {
				idx = i
				break
			}
		}
		if idx < 0 {
			logrus.Warnf("[lp %d] retract: no sent message to lp %d at %d", p.id, a.Destination, a.Timestamp)
			continue
		}
		m := p.sent[idx]
		p.sent = append(p.sent[:idx], p.sent[idx+1:]...)
		p.transmit(sim.Negative(m.Anti()))
		p.stats.AntiMessagesSent++
	}
	return nil
}

// fossil discards logs that no rollback can reach any more and hands
// committed snapshots to the recorder.
func (p *Process) fossil(gvt sim.Time) {
	i := 0
	for i < len(p.processed) && p.processed[i].Timestamp < gvt {
		i++
	}
	if i > 0 {
		p.processed = append(p.processed[:0], p.processed[i:]...)
	}
	i = 0
	for i < len(p.sent) && p.sent[i].SentAt.Time < gvt {
		i++
	}
	if i > 0 {
		p.sent = append(p.sent[:0], p.sent[i:]...)
	}
	p.history.Commit(gvt, func(e history.Entry[checkpoint]) {
		err := p.opts.Recorder.Record(sim.Snapshot{LP: p.id, At: e.At, State: e.Value.state})
		if err != nil {
			if !p.recordErr {
				logrus.Warnf("[lp %d] recorder: %v", p.id, err)
				p.recordErr = true
			}
			return
		}
		p.stats.Recorded++
	})
}
