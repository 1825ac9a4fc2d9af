// Package queue provides the bounded buffer between the command producer and
// the worker goroutines.
package queue

import "sync"

// Queue is a fixed-capacity FIFO ring. Put blocks while the ring is full and
// Get blocks while it is empty. After Close, Put fails and Get drains what is
// left before reporting the end.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf    []T
	head   int // next slot to read
	count  int
	closed bool
}

// New creates a queue holding at most capacity items; capacity must be positive
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("queue: capacity must be positive")
	}
	q := &Queue[T]{buf: make([]T, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Put appends item, waiting for a free slot. It returns false if the queue
// was closed before the item could be stored.
func (q *Queue[T]) Put(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.buf) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.notEmpty.Signal()
	return true
}

// Get removes the oldest item, waiting for one to arrive. ok is false once
// the queue is closed and empty.
func (q *Queue[T]) Get() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return item, false
	}
	item = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.notFull.Signal()
	return item, true
}

// Close wakes every waiter. Items already queued can still be taken.
// Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}
