// Package history provides the bounded rollback log kept by each LP.
//
// A Log is a ring of snapshots ordered by sim.Stamp. It starts with a
// genesis entry that sorts below every stamp. Once the ring is full the
// oldest entry is overwritten, which bounds how far back a rollback can
// reach. A Log is owned by a single goroutine.
package history

import (
	"fmt"

	"github.com/aika-sim/aika/sim"
)

// Entry is one snapshot in the log.
type Entry[T any] struct {
	At      sim.Stamp
	Genesis bool
	Value   T

	committed bool
}

// Log is a bounded ring of entries.
type Log[T any] struct {
	entries []Entry[T]
	head    int // index of the oldest entry
	n       int
	dropped uint64 // entries evicted before they were committed
}

// New creates a log with room for slots entries, holding the genesis
// entry. Panics if slots < 1.
func New[T any](slots int, genesis T) *Log[T] {
	if slots < 1 {
		panic("history: slots must be >0")
	}
	l := &Log[T]{entries: make([]Entry[T], slots)}
	l.entries[0] = Entry[T]{Genesis: true, Value: genesis, committed: true}
	l.n = 1
	return l
}

// Len returns the number of entries held.
func (l *Log[T]) Len() int { return l.n }

// Slots returns the ring capacity.
func (l *Log[T]) Slots() int { return len(l.entries) }

// Dropped returns how many entries were evicted before being committed.
func (l *Log[T]) Dropped() uint64 { return l.dropped }

func (l *Log[T]) at(i int) *Entry[T] {
	return &l.entries[(l.head+i)%len(l.entries)]
}

// Latest returns the newest entry.
func (l *Log[T]) Latest() Entry[T] { return *l.at(l.n - 1) }

// Push appends a snapshot taken after the work item at. Stamps must be
// pushed in increasing order between rollbacks. It reports whether an
// entry was evicted before being committed.
func (l *Log[T]) Push(at sim.Stamp, v T) bool {
	evicted := false
	if l.n == len(l.entries) {
		if !l.entries[l.head].committed {
			l.dropped++
			evicted = true
		}
		l.entries[l.head] = Entry[T]{}
		l.head = (l.head + 1) % len(l.entries)
		l.n--
	}
	*l.at(l.n) = Entry[T]{At: at, Value: v}
	l.n++
	return evicted
}

// Rollback finds the newest entry strictly below at (genesis counts as
// below everything), discards every newer entry and returns it.
// Returns sim.ErrRollbackHorizon if the entry was already evicted.
func (l *Log[T]) Rollback(at sim.Stamp) (Entry[T], error) {
	for i := l.n - 1; i >= 0; i-- {
		e := l.at(i)
		if e.Genesis || e.At.Less(at) {
			for j := i + 1; j < l.n; j++ {
				*l.at(j) = Entry[T]{}
			}
			l.n = i + 1
			return *e, nil
		}
	}
	oldest := l.at(0)
	return Entry[T]{}, fmt.Errorf("%w: need snapshot before %v, oldest kept is %v",
		sim.ErrRollbackHorizon, at, oldest.At)
}

// Commit calls fn, oldest first, for every entry whose time is below gvt
// and that has not been committed before. Genesis is never passed to fn.
func (l *Log[T]) Commit(gvt sim.Time, fn func(Entry[T])) {
	for i := 0; i < l.n; i++ {
		e := l.at(i)
		if e.Genesis || e.committed {
			continue
		}
		if e.At.Time >= gvt {
			return
		}
		e.committed = true
		fn(*e)
	}
}
