// Package outbox implements the Offline Queue: an ordered buffer of
// outbound messages held while no authenticated connection exists.
package outbox

import (
	"sync"
)

// Queue is a thread-safe FIFO ring buffer that doubles its capacity when it
// reaches 70% full. When maxLen > 0 the queue holds at most maxLen items and
// an Enqueue on a full queue evicts the oldest item. Items are never
// reordered.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	maxLen   int

	// Stats
	totalEnqueued int64
	totalDrained  int64
	dropped       int64
	resizeCount   int
}

// Stats contains queue statistics.
type Stats struct {
	Count         int
	Capacity      int
	MaxLen        int
	TotalEnqueued int64
	TotalDrained  int64
	Dropped       int64
	ResizeCount   int
}

// New creates a queue with the given initial capacity. maxLen <= 0 means
// unbounded.
func New[T any](initialCapacity, maxLen int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxLen < 0 {
		maxLen = 0
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		maxLen:   maxLen,
	}
}

// Enqueue appends item. It returns the evicted item and true when the queue
// was full and the oldest entry had to make room.
func (q *Queue[T]) Enqueue(item T) (evicted T, dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxLen > 0 && q.count >= q.maxLen {
		evicted = q.popLocked()
		dropped = true
		q.dropped++
	}

	// Grow at or above 70% capacity after adding this item
	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalEnqueued++

	return evicted, dropped
}

// Drain removes and returns every item in FIFO order, leaving the queue
// empty. It returns nil when the queue is already empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	result := make([]T, 0, q.count)
	for q.count > 0 {
		result = append(result, q.popLocked())
	}
	q.totalDrained += int64(len(result))

	return result
}

// Len returns the current number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the current capacity of the ring.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Count:         q.count,
		Capacity:      q.capacity,
		MaxLen:        q.maxLen,
		TotalEnqueued: q.totalEnqueued,
		TotalDrained:  q.totalDrained,
		Dropped:       q.dropped,
		ResizeCount:   q.resizeCount,
	}
}

// popLocked removes the head item. Must be called with lock held and count > 0.
func (q *Queue[T]) popLocked() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	return item
}

// grow doubles the ring capacity. Must be called with lock held.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			// Contiguous: [head...tail)
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
