package ring

import (
	"bytes"
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](-3) })
}

func TestWriteRead_RoundTripPreservesBytes(t *testing.T) {
	// GIVEN a buffer of byte slices
	w, r := New[[]byte](4)
	want := []byte{0xde, 0xad, 0xbe, 0xef}

	// WHEN an item is written then read
	require.True(t, w.Write(want))
	got, ok := r.Read()

	// THEN the same bytes come back and the buffer is empty again
	require.True(t, ok)
	assert.True(t, bytes.Equal(want, got))
	_, ok = r.Read()
	assert.False(t, ok, "buffer should be empty after draining")
}

func TestWrite_FullBufferRejectsWithoutOverwriting(t *testing.T) {
	// GIVEN a full buffer of capacity 3
	w, r := New[int](3)
	for i := 1; i <= 3; i++ {
		require.True(t, w.Write(i))
	}

	// WHEN one more write is attempted
	rejected := 99
	ok := w.Write(rejected)

	// THEN it fails, the caller still holds 99, and stored items are intact
	assert.False(t, ok)
	assert.Equal(t, 99, rejected)
	for i := 1; i <= 3; i++ {
		v, ok := r.Read()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestRead_ZeroesSlot(t *testing.T) {
	w, r := New[*int](1)
	v := 7
	require.True(t, w.Write(&v))
	_, ok := r.Read()
	require.True(t, ok)
	assert.Nil(t, w.b.slots[0], "slot must be emptied on read")
}

func TestCapacityInvariant_RandomOperations(t *testing.T) {
	// GIVEN a capacity-5 buffer driven by a random sequence of operations
	const capacity = 5
	w, r := New[int](capacity)
	rng := rand.New(rand.NewSource(1))
	live := 0
	next := 0
	expect := 0

	for i := 0; i < 10_000; i++ {
		if rng.Intn(2) == 0 {
			ok := w.Write(next)
			if live == capacity {
				// THEN writes against a full buffer always fail
				require.False(t, ok, "op %d: write succeeded on full buffer", i)
				continue
			}
			require.True(t, ok, "op %d: write failed with %d live", i, live)
			next++
			live++
		} else {
			v, ok := r.Read()
			if live == 0 {
				require.False(t, ok)
				continue
			}
			require.True(t, ok)
			// THEN reads come back in FIFO order
			require.Equal(t, expect, v)
			expect++
			live--
		}
		// THEN the buffer never reports more than capacity live items
		require.LessOrEqual(t, r.Len(), capacity)
		require.Equal(t, live, r.Len())
		require.NoError(t, r.Check())
	}
}

func TestConcurrent_SingleWriterSingleReaderKeepsOrder(t *testing.T) {
	// GIVEN a small buffer shared by one producer and one consumer goroutine
	const n = 200_000
	w, r := New[int](8)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if w.Write(i) {
				i++
				continue
			}
			runtime.Gosched()
		}
	}()

	var got []int
	go func() {
		defer wg.Done()
		for len(got) < n {
			if v, ok := r.Read(); ok {
				got = append(got, v)
				continue
			}
			runtime.Gosched()
		}
	}()
	wg.Wait()

	// THEN every item arrives exactly once and in order
	require.Len(t, got, n)
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d = %d, want %d", i, v, i)
		}
	}
	assert.Equal(t, 0, r.Len())
}

func TestOperations_DoNotBlock(t *testing.T) {
	// GIVEN a buffer nobody drains
	w, r := New[int](2)
	require.True(t, w.Write(1))
	require.True(t, w.Write(2))

	// WHEN the writer keeps writing and the reader of an empty buffer keeps reading
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			w.Write(3)
		}
		_, r2 := New[int](1)
		for i := 0; i < 1000; i++ {
			r2.Read()
		}
		close(done)
	}()

	// THEN every call returns without another goroutine making progress
	<-done
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, w.Cap())
}
