package sim

import "fmt"

// Time is simulated time in ticks.
type Time = uint64

// MaxTime is the largest representable simulated time.
const MaxTime Time = ^Time(0)

// LPID identifies a registered logical process. IDs are slot indexes
// handed out at registration and stay stable for the whole run.
type LPID int

// Class separates work items that share a timestamp.
type Class uint8

const (
	// ClassMessage orders incoming messages ahead of the LP's own step.
	ClassMessage Class = 0
	// ClassStep is the LP's own calendar wake.
	ClassStep Class = 1
)

// Stamp totally orders the work items processed by one LP.
// Order by: time → class → sender → sequence.
type Stamp struct {
	Time   Time
	Class  Class
	Sender LPID
	Seq    uint64
}

// StepStamp returns the stamp of lp's own step at time t.
func StepStamp(t Time, lp LPID) Stamp {
	return Stamp{Time: t, Class: ClassStep, Sender: lp}
}

// Less reports whether s sorts strictly before o.
func (s Stamp) Less(o Stamp) bool {
	if s.Time != o.Time {
		return s.Time < o.Time
	}
	if s.Class != o.Class {
		return s.Class < o.Class
	}
	if s.Sender != o.Sender {
		return s.Sender < o.Sender
	}
	return s.Seq < o.Seq
}

func (s Stamp) String() string {
	if s.Class == ClassStep {
		return fmt.Sprintf("%d/step", s.Time)
	}
	return fmt.Sprintf("%d/msg(%d#%d)", s.Time, s.Sender, s.Seq)
}
