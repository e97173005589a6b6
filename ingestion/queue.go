package ingestion

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO safe for any number of producers and consumers.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{})}
}

// Push appends v and wakes any waiting consumers. It never blocks.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	close(q.ready)
	q.ready = make(chan struct{})
	q.mu.Unlock()
}

// Pop removes the oldest item, waiting up to timeout for one to arrive.
// It returns ErrQueueTimeout if the wait expires and ctx.Err() as soon as ctx
// is cancelled.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
			return zero, ErrQueueTimeout
		case <-ready:
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
