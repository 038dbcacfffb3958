package testutil

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/aika-sim/aika/sim"
)

// Send is one message a Trail emits during a step.
type Send struct {
	To      sim.LPID
	Delay   sim.Time
	Payload byte
}

// Trail is a logical process whose state is the list of work items it
// has executed. Tests read the trail back to check ordering and rollback.
type Trail struct {
	// Period is the timeout returned by every step. Zero returns Wait.
	Period sim.Time
	// Until makes the step at or after this time return Break. Zero never breaks.
	Until sim.Time
	// Sends is consulted on every step with the trail executed so far.
	Sends func(now sim.Time, trail []TrailEntry) []Send
}

// TrailEntry is one executed work item.
type TrailEntry struct {
	Kind    byte // 's' step, 'm' message
	At      sim.Time
	From    sim.LPID
	Payload byte
}

func (e TrailEntry) String() string {
	if e.Kind == 's' {
		return fmt.Sprintf("s@%d", e.At)
	}
	return fmt.Sprintf("m@%d<%d:%d", e.At, e.From, e.Payload)
}

const entrySize = 1 + 8 + 4 + 1

// Step implements sim.LogicalProcess.
func (l *Trail) Step(now sim.Time, state *sim.State) sim.Event {
	past := DecodeTrail(state.Bytes())
	state.Update(appendEntry(state.Bytes(), TrailEntry{Kind: 's', At: now}))
	if l.Sends != nil {
		for _, s := range l.Sends(now, past) {
			state.Send(s.To, now+s.Delay, []byte{s.Payload})
		}
	}
	switch {
	case l.Until > 0 && now >= l.Until:
		return sim.NewEvent(now, state.Self(), sim.Break())
	case l.Period == 0:
		return sim.NewEvent(now, state.Self(), sim.Wait())
	}
	return sim.NewEvent(now, state.Self(), sim.Timeout(l.Period))
}

// ProcessMessage implements sim.LogicalProcess.
func (l *Trail) ProcessMessage(msg sim.Message, now sim.Time, state *sim.State) sim.HandlerOutput {
	var p byte
	if len(msg.Payload) > 0 {
		p = msg.Payload[0]
	}
	state.Update(appendEntry(state.Bytes(), TrailEntry{Kind: 'm', At: now, From: msg.Sender, Payload: p}))
	return sim.Nan()
}

func appendEntry(b []byte, e TrailEntry) []byte {
	out := make([]byte, len(b), len(b)+entrySize)
	copy(out, b)
	out = append(out, e.Kind)
	out = binary.LittleEndian.AppendUint64(out, e.At)
	out = binary.LittleEndian.AppendUint32(out, uint32(e.From))
	return append(out, e.Payload)
}

// DecodeTrail parses Trail state bytes.
func DecodeTrail(b []byte) []TrailEntry {
	var out []TrailEntry
	for len(b) >= entrySize {
		out = append(out, TrailEntry{
			Kind:    b[0],
			At:      binary.LittleEndian.Uint64(b[1:9]),
			From:    sim.LPID(binary.LittleEndian.Uint32(b[9:13])),
			Payload: b[13],
		})
		b = b[entrySize:]
	}
	return out
}

// Received counts the messages in a trail.
func Received(trail []TrailEntry) int {
	n := 0
	for _, e := range trail {
		if e.Kind == 'm' {
			n++
		}
	}
	return n
}

// FormatTrail renders a trail as space-separated entries.
func FormatTrail(b []byte) string {
	entries := DecodeTrail(b)
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// Panicker panics on its first step.
type Panicker struct{}

// Step implements sim.LogicalProcess.
func (Panicker) Step(sim.Time, *sim.State) sim.Event { panic("boom") }

// ProcessMessage implements sim.LogicalProcess.
func (Panicker) ProcessMessage(sim.Message, sim.Time, *sim.State) sim.HandlerOutput {
	return sim.Nan()
}
