// Package comms routes transferables between logical processes.
//
// Every LP owns a pair of rings. Generation 0 is its outbound staging ring:
// the LP writes, the coordinator reads. Generation 1 is its inbound
// delivery ring: the coordinator writes, the LP reads. The coordinator
// relays from staging to delivery, so every ring keeps exactly one writer
// and one reader for the whole run.
package comms

import (
	"errors"
	"fmt"

	"github.com/aika-sim/aika/sim"
	"github.com/aika-sim/aika/sim/ring"
)

var (
	// ErrFull is returned when the destination's inbound ring is full.
	ErrFull = errors.New("destination buffer full")
	// ErrEmpty is returned when an LP has nothing staged.
	ErrEmpty = errors.New("nothing staged")
	// ErrUnknownDestination is returned for an out-of-range LP.
	ErrUnknownDestination = errors.New("unknown destination")
)

const (
	// Outbound is the staging generation written by LPs.
	Outbound = 0
	// Inbound is the delivery generation read by LPs.
	Inbound = 1
)

// Pair holds the handles of one LP's two rings. The LP side keeps
// Outbox and Inbox; the coordinator side keeps Staged and Deliver.
type Pair struct {
	Outbox  *ring.Writer[sim.Transferable] // LP → staging
	Staged  *ring.Reader[sim.Transferable] // staging → coordinator
	Deliver *ring.Writer[sim.Transferable] // coordinator → delivery
	Inbox   *ring.Reader[sim.Transferable] // delivery → LP
}

// NewPair allocates both generations for one LP.
func NewPair(capacity int) Pair {
	ow, or := ring.New[sim.Transferable](capacity)
	iw, ir := ring.New[sim.Transferable](capacity)
	return Pair{Outbox: ow, Staged: or, Deliver: iw, Inbox: ir}
}

// Comms is the coordinator's view of every LP's rings, indexed by LPID.
// It is owned by the coordinator goroutine.
type Comms struct {
	staged  []*ring.Reader[sim.Transferable]
	deliver []*ring.Writer[sim.Transferable]
	size    int
	polled  []bool
}

// New assembles a router from the coordinator halves of pairs, where
// pairs[i] belongs to LP i.
func New(pairs []Pair) *Comms {
	c := &Comms{
		staged:  make([]*ring.Reader[sim.Transferable], len(pairs)),
		deliver: make([]*ring.Writer[sim.Transferable], len(pairs)),
		polled:  make([]bool, len(pairs)),
	}
	for i, p := range pairs {
		c.staged[i] = p.Staged
		c.deliver[i] = p.Deliver
		if i == 0 {
			c.size = p.Staged.Cap()
		}
	}
	return c
}

// Len returns the number of LPs routed.
func (c *Comms) Len() int { return len(c.staged) }

// Capacity returns the slot count of one ring.
func (c *Comms) Capacity() int { return c.size }

// Write delivers t to its destination's inbound ring. On ErrFull the
// caller keeps t and is expected to retry later.
func (c *Comms) Write(t sim.Transferable) error {
	dest := int(t.To())
	if dest < 0 || dest >= len(c.deliver) {
		return fmt.Errorf("%w: %d", ErrUnknownDestination, dest)
	}
	if !c.deliver[dest].Write(t) {
		return ErrFull
	}
	return nil
}

// Poll reports, per LP, whether it has staged outbound items. The returned
// slice is reused by the next call.
func (c *Comms) Poll() ([]bool, error) {
	for i, r := range c.staged {
		if err := r.Check(); err != nil {
			return nil, fmt.Errorf("%w: lp %d: %v", sim.ErrPoll, i, err)
		}
		c.polled[i] = r.Len() > 0
	}
	return c.polled, nil
}

// Read dequeues the next item staged by LP i.
func (c *Comms) Read(i int) (sim.Transferable, error) {
	if i < 0 || i >= len(c.staged) {
		return sim.Transferable{}, fmt.Errorf("%w: %d", ErrUnknownDestination, i)
	}
	t, ok := c.staged[i].Read()
	if !ok {
		return sim.Transferable{}, ErrEmpty
	}
	return t, nil
}
