package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context, deliveries <-chan Delivery) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i, deliveries)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int, deliveries <-chan Delivery) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Info("Worker goroutine stopping - delivery channel closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.handleDelivery(ctx, workerName, delivery)
		}
	}
}

// handleDelivery processes one delivery and settles it with the queue.
// A retryable failure re-dispatches the job after its backoff delay; the
// state machine has already persisted the outcome either way, so the
// original delivery is always acknowledged.
func (w *Worker) handleDelivery(ctx context.Context, workerName string, delivery Delivery) {
	jobID := delivery.JobID()

	w.logger.Debug("Worker received job",
		slog.String("worker_name", workerName),
		slog.String("job_id", jobID),
	)

	err := w.service.Process(ctx, jobID)

	var retryable *domain.RetryableError
	if errors.As(err, &retryable) {
		if pubErr := w.queue.PublishAfter(ctx, jobID, retryable.Delay); pubErr != nil {
			w.logger.Error("Failed to re-dispatch job after failure",
				slog.String("worker_name", workerName),
				slog.String("job_id", jobID),
				slog.String("error", pubErr.Error()),
			)
			// Leave redelivery to the broker instead.
			if nackErr := delivery.Nack(true); nackErr != nil {
				w.logger.Error("Failed to NACK message",
					slog.String("job_id", jobID),
					slog.String("error", nackErr.Error()),
				)
			}
			return
		}
	} else if err != nil {
		w.logger.Error("Job processing failed permanently",
			slog.String("worker_name", workerName),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	if ackErr := delivery.Ack(); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", jobID),
			slog.String("error", ackErr.Error()),
		)
	}
}
