// Package queue holds the task queue used by the worker group.
package queue

const (
	// Default initial capacity; small groups rarely hold more pending tasks.
	defaultInitialCapacity = 64
	// The ring shrinks back once it is this many times larger than its content.
	shrinkFactor = 4
)

// FIFO is an unbounded first-in-first-out queue backed by a growable ring
// buffer. The capacity is always a power of two so positions can be masked
// instead of taken modulo.
//
// FIFO is not safe for concurrent use; callers hold their own lock.
type FIFO[T any] struct {
	ring    []T
	mask    int
	head    int
	size    int
	minSize int
}

// NewFIFO creates an empty queue. A non-positive capacity selects the default.
func NewFIFO[T any](capacity int) *FIFO[T] {
	if capacity <= 0 {
		capacity = defaultInitialCapacity
	}

	capacity = nextPowerOfTwo(capacity)
	return &FIFO[T]{
		ring:    make([]T, capacity),
		mask:    capacity - 1,
		minSize: capacity,
	}
}

// Push appends v to the tail, growing the ring when it is full.
func (q *FIFO[T]) Push(v T) {
	if q.size == len(q.ring) {
		q.resize(len(q.ring) * 2)
	}

	q.ring[(q.head+q.size)&q.mask] = v
	q.size++
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *FIFO[T]) Pop() (v T, ok bool) {
	if q.size == 0 {
		return v, false
	}

	var zero T
	v = q.ring[q.head]
	q.ring[q.head] = zero // release the reference for the GC
	q.head = (q.head + 1) & q.mask
	q.size--

	if len(q.ring) > q.minSize && q.size*shrinkFactor <= len(q.ring) {
		q.resize(len(q.ring) / 2)
	}
	return v, true
}

// Len returns the number of queued items.
func (q *FIFO[T]) Len() int {
	return q.size
}

// Cap returns the current ring capacity.
func (q *FIFO[T]) Cap() int {
	return len(q.ring)
}

// resize copies the live items, in order, into a fresh ring of n slots.
func (q *FIFO[T]) resize(n int) {
	ring := make([]T, n)
	if q.head+q.size <= len(q.ring) {
		copy(ring, q.ring[q.head:q.head+q.size])
	} else {
		k := copy(ring, q.ring[q.head:])
		copy(ring[k:], q.ring[:q.size-k])
	}

	q.ring = ring
	q.mask = n - 1
	q.head = 0
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}
