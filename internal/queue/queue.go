// Package queue provides the bounded URL queue between producer and workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"autoria-harvester/internal/metrics"
)

// Sentinel is the distinguished value signaling "no more work" to exactly
// one worker. The producer appends one per worker after discovery finishes.
const Sentinel = ""

// Queue is a bounded in-memory FIFO of listing URLs. A full queue blocks
// the producer until a worker drains an item; that backpressure is the
// pipeline's sole flow-control mechanism.
type Queue struct {
	ch      chan string
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch: make(chan string, capacity),
	}
}

// Enqueue pushes a URL, blocking while the queue is full, or returns when
// the context ends.
func (q *Queue) Enqueue(ctx context.Context, url string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- url:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	}
}

// Dequeue pops the next URL, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case url, ok := <-q.ch:
		if !ok {
			return "", errors.New("queue closed")
		}
		metrics.SetQueueDepth(len(q.ch))
		return url, nil
	}
}

// Len reports the number of buffered URLs.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown. Safe to call twice.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
