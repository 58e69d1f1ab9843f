// Package fifo implements an unbounded, closable FIFO queue
// with a blocking Pop on top of github.com/eapache/queue.
package fifo

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// Queue is safe for concurrent use by any number of producers
// and a single consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	// notify has a buffer of one so producers never block.
	notify chan struct{}
}

// New returns an empty open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		q:      queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Push appends v. It reports false if the queue is closed
// in which case v is not queued.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.q.Add(v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the oldest element, blocking until one is
// available. Elements pushed before Close are still returned.
// ok is false once the queue is closed and empty or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		q.mu.Lock()
		if q.q.Length() > 0 {
			v = q.q.Remove().(T)
			q.mu.Unlock()
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return v, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}

// Close stops the queue from accepting elements.
// Queued elements remain available to Pop.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Clear removes every queued element, returning them oldest first.
// The queue stays open.
func (q *Queue[T]) Clear() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clearLocked()
}

func (q *Queue[T]) clearLocked() []T {
	var dropped []T
	for q.q.Length() > 0 {
		dropped = append(dropped, q.q.Remove().(T))
	}
	return dropped
}

// Drop closes the queue and removes every queued element,
// returning them oldest first.
func (q *Queue[T]) Drop() []T {
	q.mu.Lock()
	q.closed = true
	dropped := q.clearLocked()
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}
