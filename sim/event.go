package sim

import "fmt"

// ActionKind enumerates what an Event asks the runtime to do next.
type ActionKind uint8

const (
	// ActionWait leaves the calendar untouched; the LP sleeps until a
	// message or another scheduled wake arrives.
	ActionWait ActionKind = iota
	// ActionTimeout wakes the LP again after Duration ticks.
	ActionTimeout
	// ActionBreak stops stepping for good. Messages are still handled.
	ActionBreak
)

// Action is the closed set of scheduling decisions a step can return.
type Action struct {
	Kind     ActionKind
	Duration Time // only meaningful for ActionTimeout
}

// Wait returns the wait action.
func Wait() Action { return Action{Kind: ActionWait} }

// Timeout returns an action that wakes the LP again after d ticks.
func Timeout(d Time) Action { return Action{Kind: ActionTimeout, Duration: d} }

// Break returns the terminal action.
func Break() Action { return Action{Kind: ActionBreak} }

func (a Action) String() string {
	switch a.Kind {
	case ActionWait:
		return "wait"
	case ActionTimeout:
		return fmt.Sprintf("timeout(%d)", a.Duration)
	case ActionBreak:
		return "break"
	}
	return fmt.Sprintf("action(%d)", a.Kind)
}

// Event is produced by a step (or a message handler) and decides the
// owner's next wake time. Events never cross LP boundaries.
type Event struct {
	ScheduledAt Time
	DueAt       Time
	Owner       LPID
	Action      Action
}

// NewEvent builds the event for action taken by owner at time now.
// DueAt is now+Duration for timeouts and now otherwise.
func NewEvent(now Time, owner LPID, action Action) Event {
	due := now
	if action.Kind == ActionTimeout {
		due = now + action.Duration
	}
	return Event{ScheduledAt: now, DueAt: due, Owner: owner, Action: action}
}
