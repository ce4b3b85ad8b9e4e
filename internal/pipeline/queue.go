// Package pipeline owns the upload job lifecycle: enqueueing, the worker
// pool, the per-job state machine and the ledger debit on success.
package pipeline

import (
	"context"
	"time"
)

// Delivery is one job message taken off the queue. Ack removes it;
// Nack returns it (optionally requeued) for another consumer.
type Delivery interface {
	JobID() string
	Ack() error
	Nack(requeue bool) error
}

// Queue is the at-least-once delivery mechanism between the enqueue API
// and the worker pool. PublishAfter re-dispatches a job after a backoff
// delay. Implementations: MemQueue (in-process, single instance) and
// RabbitQueue (durable broker).
type Queue interface {
	Publish(ctx context.Context, jobID string) error
	PublishAfter(ctx context.Context, jobID string, delay time.Duration) error
	Consume(ctx context.Context) (<-chan Delivery, error)
}
