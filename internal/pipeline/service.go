package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/publisher"
)

// JobStore persists upload jobs. Status transitions are conditional
// updates: Claim moves PENDING to PROCESSING and fails with
// ErrJobNotClaimable otherwise, so a cancel racing a dispatch cannot be
// overwritten; MarkSuccess and MarkFailure move PROCESSING to their
// outcome status and report whether this call made the transition, so a
// job cancelled mid-attempt is never written back over.
type JobStore interface {
	Create(ctx context.Context, job *domain.UploadJob) error
	Get(ctx context.Context, id string) (*domain.UploadJob, error)
	FindActive(ctx context.Context, productID, destinationID string) (*domain.UploadJob, error)
	Claim(ctx context.Context, id string) (*domain.UploadJob, error)
	MarkSuccess(ctx context.Context, id string, result domain.JobResult) (bool, error)
	MarkFailure(ctx context.Context, id string, result domain.JobResult, retryCount int, final bool, at time.Time) (bool, error)
	Cancel(ctx context.Context, ids []string) (int, error)
	ResetForRetry(ctx context.Context, ids []string) ([]string, error)
	StalledPending(ctx context.Context, olderThan time.Time) ([]string, error)
	List(ctx context.Context, filter JobFilter) ([]domain.UploadJob, error)
}

// ProductStore reads products and writes their publish status.
type ProductStore interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	MarkUploaded(ctx context.Context, id string) error
	MarkRetrying(ctx context.Context, id, errorMessage string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
}

// DestinationStore reads destination configuration.
type DestinationStore interface {
	Get(ctx context.Context, id string) (*domain.Destination, error)
}

// LedgerService debits the prepaid balance on a successful publish.
type LedgerService interface {
	Debit(ctx context.Context, accountID string, amount int64, reference, description string) (int64, error)
}

// Orchestrator performs the actual publish against the destination.
type Orchestrator interface {
	Publish(ctx context.Context, dest *domain.Destination, product *domain.Product, targetCategory string) (*publisher.Listing, error)
}

// JobFilter narrows a job listing query.
type JobFilter struct {
	UserID        string
	DestinationID string
	Status        string
	PageSize      int
	Cursor        *JobCursor
}

// JobCursor is the keyset pagination position for job listings.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// Config holds pipeline tuning knobs. Zero values fall back to the
// reference behavior.
type Config struct {
	MaxRetries  int           // automatic retry ceiling, default 3
	BackoffBase time.Duration // default 2s
	BackoffMax  time.Duration // default 30s
	UploadCost  int64         // ledger units per successful publish, default 1000
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = 2 * time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 30 * time.Second
	}
	if out.UploadCost <= 0 {
		out.UploadCost = 1000
	}
	return out
}

// Service exposes the pipeline operations: enqueue, cancel, manual retry
// and status, plus Process which the worker pool invokes per delivery.
type Service struct {
	jobs         JobStore
	products     ProductStore
	destinations DestinationStore
	ledger       LedgerService
	orchestrator Orchestrator
	queue        Queue
	logger       *slog.Logger
	config       Config
	now          func() time.Time
}

// Dependencies holds everything a Service needs.
type Dependencies struct {
	Jobs         JobStore
	Products     ProductStore
	Destinations DestinationStore
	Ledger       LedgerService
	Orchestrator Orchestrator
	Queue        Queue
	Logger       *slog.Logger
	Config       Config
}

// NewService creates a new pipeline service
func NewService(deps *Dependencies) *Service {
	return &Service{
		jobs:         deps.Jobs,
		products:     deps.Products,
		destinations: deps.Destinations,
		ledger:       deps.Ledger,
		orchestrator: deps.Orchestrator,
		queue:        deps.Queue,
		logger:       deps.Logger,
		config:       deps.Config.withDefaults(),
		now:          time.Now,
	}
}

// Enqueue creates one job per spec and dispatches it. A spec whose
// (product, destination) pair already has a PENDING or PROCESSING job is
// suppressed. Specs are independent: a store failure on one is logged
// and skipped, never discarding jobs already queued for the others.
// Returns the number of jobs queued.
func (s *Service) Enqueue(ctx context.Context, specs []domain.JobSpec) (int, error) {
	queued := 0

	for _, spec := range specs {
		existing, err := s.jobs.FindActive(ctx, spec.ProductID, spec.DestinationID)
		if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
			s.logger.Error("Failed to check for active job, skipping spec",
				slog.String("product_id", spec.ProductID),
				slog.String("destination_id", spec.DestinationID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if existing != nil {
			s.logger.Info("Duplicate publish request suppressed",
				slog.String("product_id", spec.ProductID),
				slog.String("destination_id", spec.DestinationID),
				slog.String("existing_job_id", existing.ID),
			)
			continue
		}

		now := s.now()
		job := &domain.UploadJob{
			ID:             uuid.New().String(),
			ProductID:      spec.ProductID,
			DestinationID:  spec.DestinationID,
			UserID:         spec.UserID,
			TargetCategory: spec.TargetCategory,
			Status:         domain.JobStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := s.jobs.Create(ctx, job); err != nil {
			s.logger.Error("Failed to create job, skipping spec",
				slog.String("product_id", spec.ProductID),
				slog.String("destination_id", spec.DestinationID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := s.queue.Publish(ctx, job.ID); err != nil {
			// The row exists and stays PENDING; a later sweep or manual
			// retry can re-dispatch it.
			s.logger.Error("Failed to dispatch job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}

		queued++

		s.logger.Info("Upload job queued",
			slog.String("job_id", job.ID),
			slog.String("product_id", spec.ProductID),
			slog.String("destination_id", spec.DestinationID),
		)
	}

	return queued, nil
}

// Cancel marks jobs CANCELLED. With no ids, only FAILED jobs are
// cancelled; with ids, any job not already SUCCESS or CANCELLED.
// Cancellation is cooperative: a job already inside the publish step runs
// to completion, cancellation only prevents future dispatch.
func (s *Service) Cancel(ctx context.Context, jobIDs []string) (int, error) {
	cancelled, err := s.jobs.Cancel(ctx, jobIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel jobs: %w", err)
	}

	s.logger.Info("Upload jobs cancelled",
		slog.Int("cancelled", cancelled),
		slog.Int("requested", len(jobIDs)),
	)

	return cancelled, nil
}

// RetryFailed resets FAILED jobs to PENDING with a zero retry count and
// re-dispatches them. This is the only path past the retry ceiling.
// With no ids, all FAILED jobs are reset. Returns the number re-queued.
func (s *Service) RetryFailed(ctx context.Context, jobIDs []string) (int, error) {
	reset, err := s.jobs.ResetForRetry(ctx, jobIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to reset jobs for retry: %w", err)
	}

	for _, id := range reset {
		if err := s.queue.Publish(ctx, id); err != nil {
			s.logger.Error("Failed to dispatch job for manual retry",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Failed jobs re-queued for manual retry",
		slog.Int("queued", len(reset)),
	)

	return len(reset), nil
}

// RequeueStalled re-dispatches PENDING jobs that have not been touched
// for the given age. These are jobs whose queue message was lost: a
// dispatch failure at enqueue time, or a crash inside a backoff delay.
// Re-dispatching an already-queued job is harmless since the claim is a
// conditional update.
func (s *Service) RequeueStalled(ctx context.Context, age time.Duration) (int, error) {
	stalled, err := s.jobs.StalledPending(ctx, s.now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to find stalled jobs: %w", err)
	}

	requeued := 0
	for _, id := range stalled {
		if err := s.queue.Publish(ctx, id); err != nil {
			s.logger.Error("Failed to re-dispatch stalled job",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		requeued++
	}

	if requeued > 0 {
		s.logger.Info("Stalled jobs re-dispatched",
			slog.Int("requeued", requeued),
		)
	}

	return requeued, nil
}

// Status returns the current persisted state of a job.
func (s *Service) Status(ctx context.Context, jobID string) (*domain.UploadJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]domain.UploadJob, error) {
	return s.jobs.List(ctx, filter)
}
