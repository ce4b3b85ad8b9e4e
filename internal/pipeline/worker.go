package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	Logger      *slog.Logger
	Service     *Service
	Queue       Queue
	Concurrency int
}

// Worker consumes the job queue with a fixed pool of goroutines. The
// pool size bounds concurrent publish calls against destination APIs and
// is the single throughput knob.
type Worker struct {
	logger      *slog.Logger
	service     *Service
	queue       Queue
	concurrency int
	workerID    string
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *WorkerConfig) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Worker{
		logger:      cfg.Logger,
		service:     cfg.Service,
		queue:       cfg.Queue,
		concurrency: concurrency,
		workerID:    fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		stopChan:    make(chan struct{}),
	}
}

// Start begins consuming jobs and blocks until the consumer channel is
// set up, then returns while the pool runs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	deliveries, err := w.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
