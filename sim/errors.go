package sim

import (
	"errors"
	"fmt"
)

// Capacity errors never leave the engine: rejected transfers are queued
// for retry. Configuration and coordination errors end the run.
var (
	// ErrLPsFull is returned when every LP slot is already taken.
	ErrLPsFull = errors.New("all logical process slots are taken")
	// ErrMismatchLPsCount is returned by InitComms when fewer LPs were
	// registered than the configured slot count.
	ErrMismatchLPsCount = errors.New("registered logical processes do not match configured count")
	// ErrPoll is returned when the router reports inconsistent cursors.
	ErrPoll = errors.New("router poll failed")
	// ErrThreadJoin is returned when an LP goroutine panicked.
	ErrThreadJoin = errors.New("logical process thread failed")
	// ErrRollbackHorizon is returned when no snapshot old enough survives
	// in the history log. LogSlots is too small for the workload.
	ErrRollbackHorizon = errors.New("rollback horizon exceeded")
	// ErrCalendarFull is returned when an LP schedules more pending wakes
	// than its calendar holds.
	ErrCalendarFull = errors.New("event calendar full")
	// ErrCausality is returned when an LP sends a message into its own past.
	ErrCausality = errors.New("message timestamp before send time")
	// ErrNotInitialized is returned by Run before InitComms succeeded.
	ErrNotInitialized = errors.New("comms not initialized")
	// ErrRegistrationClosed is returned by SpawnProcess once comms exist.
	ErrRegistrationClosed = errors.New("registration closed")
	// ErrInvalidLogSlots is returned for a history log with no room.
	ErrInvalidLogSlots = errors.New("log slots must be positive")
)

// LPError attaches the failing LP to a fatal error.
type LPError struct {
	LP  LPID
	Err error
}

func (e *LPError) Error() string {
	return fmt.Sprintf("lp %d: %v", e.LP, e.Err)
}

func (e *LPError) Unwrap() error { return e.Err }
