package queue

import (
	"errors"
	"sync"
)

// ErrNilWorkItem is returned when a nil item is enqueued.
var ErrNilWorkItem = errors.New("queue: nil work item")

// Queue is an unbounded in-memory FIFO of work items. It is safe for concurrent
// producers and a single consumer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []*T
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue appends item to the tail of the queue.
func (q *Queue[T]) Enqueue(item *T) error {
	if item == nil {
		return ErrNilWorkItem
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return nil
}

// Dequeue removes and returns the head of the queue, or nil when it is empty.
func (q *Queue[T]) Dequeue() *T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item
}

// Len reports how many items are waiting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
