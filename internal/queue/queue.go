// Package queue provides the unbounded FIFO of post ids that feeds the
// ingestion workers.
package queue

import (
	"context"
	"sync"

	"github.com/iconidentify/favmirror/internal/domain"
)

// Queue is an unbounded multi-producer, multi-consumer FIFO.
// Every pushed id is handed to exactly one Pop call.
type Queue struct {
	mu     sync.Mutex
	items  []domain.ExternalID
	closed bool
	// ready is closed and replaced whenever items are added or the queue
	// is closed, waking every blocked Pop.
	ready chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		items: make([]domain.ExternalID, 0),
		ready: make(chan struct{}),
	}
}

// Push appends ids to the tail of the queue.
func (q *Queue) Push(ids ...domain.ExternalID) error {
	if len(ids) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return domain.ErrQueueClosed
	}

	q.items = append(q.items, ids...)
	q.wakeLocked()
	return nil
}

// Pop removes and returns the head of the queue, blocking until an id is
// available. It returns ctx.Err() once ctx is done, even if ids remain, and
// domain.ErrQueueClosed once the queue is closed and drained.
func (q *Queue) Pop(ctx context.Context) (domain.ExternalID, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = 0
			q.items = q.items[1:]
			q.mu.Unlock()
			return id, nil
		}
		if q.closed {
			q.mu.Unlock()
			return 0, domain.ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ready:
		}
	}
}

// Close stops accepting ids. Ids already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.wakeLocked()
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) wakeLocked() {
	close(q.ready)
	q.ready = make(chan struct{})
}
