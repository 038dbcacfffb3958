// Tracks run-wide and per-LP counters such as:
// events processed, rollbacks, antimessages and relay backpressure.

package sim

import (
	"fmt"
	"io"
	"time"
)

// LPStats holds the counters of one LP at the end of a run.
type LPStats struct {
	LP                LPID   `json:"lp"`
	Steps             uint64 `json:"steps"`              // steps executed, including re-executions
	MessagesProcessed uint64 `json:"messages_processed"` // messages applied, including re-applications
	Rollbacks         uint64 `json:"rollbacks"`
	RolledBackItems   uint64 `json:"rolled_back_items"` // work items undone by rollbacks
	AntiMessagesSent  uint64 `json:"antimessages_sent"`
	Annihilations     uint64 `json:"annihilations"`      // positive/anti pairs cancelled at this LP
	Recorded          uint64 `json:"snapshots_recorded"` // committed snapshots handed to the Recorder
	Dropped           uint64 `json:"snapshots_dropped"`  // snapshots evicted from history before commit, never recorded
	FinalState        []byte `json:"-"`
}

// Metrics aggregates statistics about one run for final reporting.
type Metrics struct {
	GVT        Time          `json:"gvt"`
	Terminal   Time          `json:"terminal"`
	Ticks      uint64        `json:"coordinator_ticks"`
	Relayed    uint64        `json:"relayed"`    // transferables moved from outbound to inbound rings
	Overflowed uint64        `json:"overflowed"` // transferables parked in an overflow queue at least once
	PerLP      []LPStats     `json:"lps"`
	WallTime   time.Duration `json:"wall_time_ns"`
}

// EventsProcessed returns steps plus messages over all LPs.
func (m *Metrics) EventsProcessed() uint64 {
	var n uint64
	for _, s := range m.PerLP {
		n += s.Steps + s.MessagesProcessed
	}
	return n
}

// Rollbacks returns the total number of rollbacks over all LPs.
func (m *Metrics) Rollbacks() uint64 {
	var n uint64
	for _, s := range m.PerLP {
		n += s.Rollbacks
	}
	return n
}

// Dropped returns how many snapshots never reached the Recorder over all LPs.
func (m *Metrics) Dropped() uint64 {
	var n uint64
	for _, s := range m.PerLP {
		n += s.Dropped
	}
	return n
}

// Print writes a human-readable summary to w.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Final GVT            : %d (terminal %d)\n", m.GVT, m.Terminal)
	fmt.Fprintf(w, "Coordinator ticks    : %d\n", m.Ticks)
	fmt.Fprintf(w, "Relayed / overflowed : %d / %d\n", m.Relayed, m.Overflowed)
	fmt.Fprintf(w, "Events processed     : %d\n", m.EventsProcessed())
	fmt.Fprintf(w, "Rollbacks            : %d\n", m.Rollbacks())
	if d := m.Dropped(); d > 0 {
		fmt.Fprintf(w, "Dropped snapshots    : %d (raise log_slots)\n", d)
	}
	fmt.Fprintf(w, "Total time           : %v\n", m.WallTime)
	if secs := m.WallTime.Seconds(); secs > 0 {
		fmt.Fprintf(w, "Events per second    : %.2f\n", float64(m.EventsProcessed())/secs)
	}
	for _, s := range m.PerLP {
		fmt.Fprintf(w, "  lp %-3d steps=%d msgs=%d rollbacks=%d undone=%d anti=%d annihilated=%d recorded=%d dropped=%d\n",
			s.LP, s.Steps, s.MessagesProcessed, s.Rollbacks, s.RolledBackItems,
			s.AntiMessagesSent, s.Annihilations, s.Recorded, s.Dropped)
	}
}
