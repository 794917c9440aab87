// Package ring implements a fixed-capacity ring buffer. Once full, each push
// evicts the oldest entry. Not safe for concurrent use; callers own locking.
package ring

// Buffer is a bounded FIFO over T with a write cursor and element count.
type Buffer[T any] struct {
	data  []T
	head  int // index of the oldest element
	count int
}

// New returns a buffer holding at most capacity elements. Panics if capacity
// is not positive; buffer sizes are compile-time decisions, not inputs.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (b *Buffer[T]) Push(v T) {
	if b.count < len(b.data) {
		b.data[(b.head+b.count)%len(b.data)] = v
		b.count++
		return
	}
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
}

// Len reports the number of stored elements.
func (b *Buffer[T]) Len() int { return b.count }

// Cap reports the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.data) }

// At returns the i-th element in insertion order, oldest first. ok is false
// when i is out of range.
func (b *Buffer[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= b.count {
		return zero, false
	}
	return b.data[(b.head+i)%len(b.data)], true
}

// Last returns the most recently pushed element.
func (b *Buffer[T]) Last() (T, bool) {
	return b.At(b.count - 1)
}

// Snapshot copies the stored elements oldest-first into a fresh slice.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.data[(b.head+i)%len(b.data)]
	}
	return out
}
