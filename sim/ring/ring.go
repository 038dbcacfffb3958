// Package ring provides a fixed-capacity single-writer/single-reader
// circular buffer.
//
// The buffer itself is unexported. New hands out exactly one Writer and
// one Reader; each may move to its own goroutine. Cursors run free and are
// reduced modulo the capacity only when addressing a slot. The writer only
// advances the write cursor and the reader only the read cursor, so the
// pair needs no lock and no operation ever waits on the other side.
package ring

import (
	"fmt"
	"sync/atomic"
)

const cacheLine = 64

type buffer[T any] struct {
	_     [cacheLine]byte
	write atomic.Uint64 // advanced by the writer only
	_     [cacheLine - 8]byte
	read  atomic.Uint64 // advanced by the reader only
	_     [cacheLine - 8]byte
	slots []T
}

// Writer is the producing side of a buffer.
type Writer[T any] struct{ b *buffer[T] }

// Reader is the consuming side of a buffer.
type Reader[T any] struct{ b *buffer[T] }

// New allocates a buffer with the given number of slots and returns its
// two handles. Panics if capacity < 1.
func New[T any](capacity int) (*Writer[T], *Reader[T]) {
	if capacity < 1 {
		panic("ring: capacity must be >0")
	}
	b := &buffer[T]{slots: make([]T, capacity)}
	return &Writer[T]{b: b}, &Reader[T]{b: b}
}

// Write stores item and returns true, or returns false without touching
// the buffer when it is full. The caller keeps ownership of a rejected item.
func (w *Writer[T]) Write(item T) bool {
	b := w.b
	wi := b.write.Load()
	if wi-b.read.Load() >= uint64(len(b.slots)) {
		return false
	}
	b.slots[wi%uint64(len(b.slots))] = item
	b.write.Store(wi + 1) // publish to the reader
	return true
}

// Len returns the number of items the writer sees as pending.
func (w *Writer[T]) Len() int { return w.b.len() }

// Cap returns the buffer capacity.
func (w *Writer[T]) Cap() int { return len(w.b.slots) }

// Read removes and returns the oldest item, or reports false when the
// buffer is empty. The vacated slot is zeroed.
func (r *Reader[T]) Read() (T, bool) {
	b := r.b
	ri := b.read.Load()
	var zero T
	if ri == b.write.Load() {
		return zero, false
	}
	idx := ri % uint64(len(b.slots))
	item := b.slots[idx]
	b.slots[idx] = zero
	b.read.Store(ri + 1) // hand the slot back to the writer
	return item, true
}

// Len returns the number of items the reader sees as pending.
func (r *Reader[T]) Len() int { return r.b.len() }

// Cap returns the buffer capacity.
func (r *Reader[T]) Cap() int { return len(r.b.slots) }

// Check verifies the cursor invariant read ≤ write ≤ read+capacity.
// It must be called from the reader's goroutine.
func (r *Reader[T]) Check() error {
	ri := r.b.read.Load()
	wi := r.b.write.Load()
	if wi < ri || wi-ri > uint64(len(r.b.slots)) {
		return fmt.Errorf("ring: inconsistent cursors read=%d write=%d cap=%d", ri, wi, len(r.b.slots))
	}
	return nil
}

func (b *buffer[T]) len() int {
	ri := b.read.Load()
	wi := b.write.Load()
	if wi < ri {
		return 0
	}
	return int(wi - ri)
}
