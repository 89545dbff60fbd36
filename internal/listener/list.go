// Package listener provides an ordered, concurrency-safe list of callbacks.
//
// Callbacks are invoked in registration order. Each registration returns an
// ID that removes exactly that registration, so the same function may be
// registered more than once and removed independently.
package listener

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ID identifies one registration. The zero ID never refers to a listener.
type ID uint64

var nextID atomic.Uint64

// NewID returns a process-unique registration ID.
func NewID() ID {
	return ID(nextID.Add(1))
}

type entry[T any] struct {
	id ID
	fn func(T)
}

// List holds callbacks for values of type T.
type List[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
}

// Add appends fn and returns its registration ID.
func (l *List[T]) Add(fn func(T)) ID {
	return l.AddWithID(NewID(), fn)
}

// AddWithID appends fn under a caller-supplied ID.
func (l *List[T]) AddWithID(id ID, fn func(T)) ID {
	l.mu.Lock()
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})
	l.mu.Unlock()
	return id
}

// Remove deletes the registration with the given ID. It reports whether a
// registration was removed.
func (l *List[T]) Remove(id ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.id == id {
			// Copy rather than reslice in place: Emit may be iterating a
			// snapshot that shares the old backing array.
			next := make([]entry[T], 0, len(l.entries)-1)
			next = append(next, l.entries[:i]...)
			next = append(next, l.entries[i+1:]...)
			l.entries = next
			return true
		}
	}
	return false
}

// Len returns the number of registrations.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Emit calls every registered callback with v, in registration order.
// Callbacks registered or removed during Emit take effect on the next call.
// A panicking callback does not stop the others; onPanic (if non-nil) is
// told about it. Emit returns the number of callbacks that panicked.
func (l *List[T]) Emit(v T, onPanic func(id ID, err error)) int {
	l.mu.RLock()
	snapshot := l.entries
	l.mu.RUnlock()

	failed := 0
	for _, e := range snapshot {
		if err := call(e.fn, v); err != nil {
			failed++
			if onPanic != nil {
				onPanic(e.id, err)
			}
		}
	}
	return failed
}

func call[T any](fn func(T), v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	fn(v)
	return nil
}
