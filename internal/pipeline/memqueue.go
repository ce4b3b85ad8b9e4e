package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemQueue is an in-process Queue backed by a buffered channel. Suitable
// for a single instance and for tests; delayed re-dispatch uses process
// timers, so pending delays are lost on restart (the job row stays
// PENDING and can be re-claimed by a sweep).
type MemQueue struct {
	mu       sync.Mutex
	messages chan Delivery
	timers   map[*time.Timer]struct{}
	done     chan struct{}
	closed   bool
}

// NewMemQueue creates a MemQueue with the given buffer size.
func NewMemQueue(buffer int) *MemQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemQueue{
		messages: make(chan Delivery, buffer),
		timers:   make(map[*time.Timer]struct{}),
		done:     make(chan struct{}),
	}
}

type memDelivery struct {
	jobID string
	queue *MemQueue
}

func (d *memDelivery) JobID() string { return d.jobID }

func (d *memDelivery) Ack() error { return nil }

func (d *memDelivery) Nack(requeue bool) error {
	if !requeue {
		return nil
	}
	return d.queue.Publish(context.Background(), d.jobID)
}

// Publish enqueues the job id for immediate dispatch.
func (q *MemQueue) Publish(ctx context.Context, jobID string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.Unlock()

	select {
	case q.messages <- &memDelivery{jobID: jobID, queue: q}:
		return nil
	case <-q.done:
		return fmt.Errorf("queue is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAfter enqueues the job id after the given delay.
func (q *MemQueue) PublishAfter(ctx context.Context, jobID string, delay time.Duration) error {
	if delay <= 0 {
		return q.Publish(ctx, jobID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		// With a full buffer and no consumers, Close must still be able
		// to release this goroutine.
		select {
		case q.messages <- &memDelivery{jobID: jobID, queue: q}:
		case <-q.done:
		}
	})
	q.timers[timer] = struct{}{}

	return nil
}

// Consume returns the delivery channel. All consumers share one channel,
// so the number of reading goroutines bounds concurrency.
func (q *MemQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	return q.messages, nil
}

// Close stops pending timers. Buffered messages are dropped.
func (q *MemQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
}
