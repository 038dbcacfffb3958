package sim

// LogicalProcess is the capability user code implements to run inside the
// engine. Implementations must keep every piece of state that can change
// during a run inside State: the runtime snapshots State after each work
// item and restores it on rollback, so fields on the implementation itself
// are never rolled back. Re-executing a step from a restored State must
// produce the same outputs.
type LogicalProcess interface {
	// Step advances the LP at time now and returns its next scheduling event.
	Step(now Time, state *State) Event
	// ProcessMessage applies msg at time now.
	ProcessMessage(msg Message, now Time, state *State) HandlerOutput
}

type outputKind uint8

const (
	outputNan outputKind = iota
	outputMessages
	outputEvent
)

// HandlerOutput is what ProcessMessage returns: antimessages to send,
// an event to schedule, or nothing.
type HandlerOutput struct {
	kind        outputKind
	annihilator Annihilator
	event       Event
}

// Messages returns an output carrying antimessages that retract messages
// the LP sent earlier.
func Messages(a Annihilator) HandlerOutput {
	return HandlerOutput{kind: outputMessages, annihilator: a}
}

// Scheduled returns an output that schedules ev for the handling LP.
func Scheduled(ev Event) HandlerOutput {
	return HandlerOutput{kind: outputEvent, event: ev}
}

// Nan returns an output without observable effect.
func Nan() HandlerOutput { return HandlerOutput{} }

// Annihilator returns the carried antimessages, if any.
func (h HandlerOutput) Annihilator() (Annihilator, bool) {
	return h.annihilator, h.kind == outputMessages
}

// Event returns the carried event, if any.
func (h HandlerOutput) Event() (Event, bool) {
	return h.event, h.kind == outputEvent
}

// IsNan reports whether the output has no effect.
func (h HandlerOutput) IsNan() bool { return h.kind == outputNan }

// State is the per-LP state handed to Step and ProcessMessage. It holds
// the LP's state bytes and collects the messages sent during one call.
// A State is owned by a single LP goroutine.
type State struct {
	self LPID
	now  Time
	data []byte
	sent []Message
}

// NewState returns an empty State for lp.
func NewState(lp LPID, initial []byte) *State {
	return &State{self: lp, data: cloneBytes(initial)}
}

// Self returns the owning LP.
func (s *State) Self() LPID { return s.self }

// Now returns the simulated time of the current call.
func (s *State) Now() Time { return s.now }

// Bytes returns the current state bytes. The slice must not be modified
// in place; use Update.
func (s *State) Bytes() []byte { return s.data }

// Update replaces the state bytes.
func (s *State) Update(b []byte) { s.data = cloneBytes(b) }

// Send queues a message for dest with receive time at.
func (s *State) Send(dest LPID, at Time, payload []byte) {
	s.sent = append(s.sent, Message{
		Payload:     cloneBytes(payload),
		Timestamp:   at,
		Sender:      s.self,
		Destination: dest,
	})
}

// Begin prepares s for a call at time now. Used by the runtime.
func (s *State) Begin(now Time) {
	s.now = now
	s.sent = s.sent[:0]
}

// Outgoing returns the messages queued since Begin. Used by the runtime.
func (s *State) Outgoing() []Message { return s.sent }

// Restore replaces the state bytes after a rollback. Used by the runtime.
func (s *State) Restore(b []byte) {
	s.data = cloneBytes(b)
	s.sent = s.sent[:0]
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
