package history

import (
	"testing"

	"github.com/aika-sim/aika/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(t sim.Time) sim.Stamp { return sim.StepStamp(t, 0) }

func TestRollback_RestoresNewestEntryBelowStamp(t *testing.T) {
	// GIVEN snapshots after steps 1..5
	l := New(8, "genesis")
	for i := sim.Time(1); i <= 5; i++ {
		l.Push(step(i), string(rune('a'+i-1)))
	}

	// WHEN rolling back for a straggler message at time 3
	e, err := l.Rollback(sim.Stamp{Time: 3, Class: sim.ClassMessage, Sender: 1, Seq: 1})

	// THEN the state after step 2 is restored and newer entries are gone
	require.NoError(t, err)
	assert.Equal(t, "b", e.Value)
	assert.Equal(t, sim.Time(2), e.At.Time)
	assert.Equal(t, 3, l.Len(), "genesis + steps 1,2")
	assert.Equal(t, "b", l.Latest().Value)
}

func TestRollback_MessageSortsBeforeStepAtSameTime(t *testing.T) {
	l := New(8, "genesis")
	l.Push(step(1), "s1")
	l.Push(step(2), "s2")

	// A message at t=2 must undo the step at t=2.
	e, err := l.Rollback(sim.Stamp{Time: 2, Class: sim.ClassMessage, Sender: 1, Seq: 4})

	require.NoError(t, err)
	assert.Equal(t, "s1", e.Value)
}

func TestRollback_GenesisCoversEarliestStraggler(t *testing.T) {
	l := New(4, "genesis")
	l.Push(step(0), "s0")

	e, err := l.Rollback(sim.Stamp{Time: 0, Class: sim.ClassMessage})

	require.NoError(t, err)
	assert.True(t, e.Genesis)
	assert.Equal(t, "genesis", e.Value)
	assert.Equal(t, 1, l.Len())
}

func TestRollback_HorizonExceededAfterEviction(t *testing.T) {
	// GIVEN a 3-slot log that has evicted genesis and step 1
	l := New(3, "genesis")
	for i := sim.Time(1); i <= 4; i++ {
		l.Push(step(i), "x")
	}
	require.Equal(t, 3, l.Len())

	// WHEN a straggler needs the state before step 2
	_, err := l.Rollback(step(2))

	// THEN the rollback horizon error is returned and nothing is discarded
	assert.ErrorIs(t, err, sim.ErrRollbackHorizon)
	assert.Equal(t, 3, l.Len())
}

func TestCommit_PassesEntriesBelowGVTOnce(t *testing.T) {
	l := New(8, "genesis")
	for i := sim.Time(1); i <= 4; i++ {
		l.Push(step(i), string(rune('0'+i)))
	}

	var got []string
	collect := func(e Entry[string]) { got = append(got, e.Value) }
	l.Commit(3, collect)
	l.Commit(3, collect)
	assert.Equal(t, []string{"1", "2"}, got, "genesis skipped, each entry once")

	l.Commit(10, collect)
	assert.Equal(t, []string{"1", "2", "3", "4"}, got)
}

func TestPush_CountsUncommittedEvictions(t *testing.T) {
	l := New(2, "genesis")
	assert.False(t, l.Push(step(1), "a")) // fills the ring
	assert.False(t, l.Push(step(2), "b")) // evicts genesis, already committed
	assert.True(t, l.Push(step(3), "c"))  // evicts step 1, never committed

	assert.Equal(t, uint64(1), l.Dropped())
	assert.Equal(t, 2, l.Slots())
}

func TestNew_PanicsOnZeroSlots(t *testing.T) {
	assert.Panics(t, func() { New(0, 0) })
}
