package lp

import (
	"fmt"
	"sort"

	"github.com/aika-sim/aika/sim"
)

// calendar is the bounded set of pending wake times of one LP, kept
// sorted ascending. Scheduling an existing time is a no-op.
type calendar struct {
	wakes []sim.Time
	slots int
}

func newCalendar(slots int) *calendar {
	return &calendar{wakes: make([]sim.Time, 0, slots), slots: slots}
}

// add inserts t. Returns sim.ErrCalendarFull when slots are exhausted.
func (c *calendar) add(t sim.Time) error {
	i := sort.Search(len(c.wakes), func(i int) bool { return c.wakes[i] >= t })
	if i < len(c.wakes) && c.wakes[i] == t {
		return nil
	}
	if len(c.wakes) == c.slots {
		return fmt.Errorf("%w: %d wakes pending, cannot add %d", sim.ErrCalendarFull, len(c.wakes), t)
	}
	c.wakes = append(c.wakes, 0)
	copy(c.wakes[i+1:], c.wakes[i:])
	c.wakes[i] = t
	return nil
}

func (c *calendar) peek() (sim.Time, bool) {
	if len(c.wakes) == 0 {
		return 0, false
	}
	return c.wakes[0], true
}

func (c *calendar) pop() sim.Time {
	t := c.wakes[0]
	c.wakes = append(c.wakes[:0], c.wakes[1:]...)
	return t
}

func (c *calendar) clear() { c.wakes = c.wakes[:0] }

func (c *calendar) len() int { return len(c.wakes) }

// snapshot returns a copy of the pending wakes.
func (c *calendar) snapshot() []sim.Time {
	if len(c.wakes) == 0 {
		return nil
	}
	return append([]sim.Time(nil), c.wakes...)
}

// reset replaces the pending wakes with ws, which must be sorted.
func (c *calendar) reset(ws []sim.Time) {
	c.wakes = append(c.wakes[:0], ws...)
}
