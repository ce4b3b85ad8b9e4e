package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tudinhtu98/copee-nest/internal/backoff"
	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// Process runs one dispatched job through the state machine. Returning a
// *domain.RetryableError asks the worker pool to re-dispatch after the
// carried delay; any other outcome is terminal for this delivery.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			// Deleted by a collaborator between enqueue and dispatch.
			s.logger.Warn("Dispatched job no longer exists",
				slog.String("job_id", jobID),
			)
			return nil
		}
		return domain.NewRetryableError(
			fmt.Errorf("failed to load job: %w", err),
			backoff.Delay(1, s.config.BackoffBase, s.config.BackoffMax),
		)
	}

	// Another actor may have cancelled or finished the job between
	// enqueue and dispatch; skip with no side effect.
	if job.Status == domain.JobStatusCancelled {
		s.logger.Info("Skipping cancelled job",
			slog.String("job_id", jobID),
		)
		return nil
	}
	if job.Status != domain.JobStatusPending {
		s.logger.Warn("Skipping job not in PENDING status",
			slog.String("job_id", jobID),
			slog.String("status", job.Status),
		)
		return nil
	}

	job, err = s.jobs.Claim(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotClaimable) {
			// Lost the race: cancelled or claimed elsewhere after the
			// read above. The conditional update is what guarantees a
			// CANCELLED job never reaches PROCESSING.
			s.logger.Warn("Job claim lost, skipping",
				slog.String("job_id", jobID),
			)
			return nil
		}
		return domain.NewRetryableError(
			fmt.Errorf("failed to claim job: %w", err),
			backoff.Delay(1, s.config.BackoffBase, s.config.BackoffMax),
		)
	}

	s.logger.Info("Processing upload job",
		slog.String("job_id", job.ID),
		slog.String("product_id", job.ProductID),
		slog.String("destination_id", job.DestinationID),
		slog.Int("retry_count", job.RetryCount),
	)

	listing, err := s.publish(ctx, job)
	if err != nil {
		return s.recordFailure(ctx, job, err)
	}

	return s.recordSuccess(ctx, job, listing)
}

func (s *Service) publish(ctx context.Context, job *domain.UploadJob) (*listingOutcome, error) {
	product, err := s.products.Get(ctx, job.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	dest, err := s.destinations.Get(ctx, job.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination: %w", err)
	}

	listing, err := s.orchestrator.Publish(ctx, dest, product, job.TargetCategory)
	if err != nil {
		return nil, err
	}

	return &listingOutcome{id: listing.ID, permalink: listing.Permalink}, nil
}

type listingOutcome struct {
	id        string
	permalink string
}

// recordSuccess moves the job to SUCCESS, flips the product to UPLOADED
// and debits the upload cost. The SUCCESS transition is conditional, so
// the debit happens at most once per job even under redelivery.
func (s *Service) recordSuccess(ctx context.Context, job *domain.UploadJob, listing *listingOutcome) error {
	result := domain.JobResult{
		ListingID: listing.id,
		Permalink: listing.permalink,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}

	transitioned, err := s.jobs.MarkSuccess(ctx, job.ID, result)
	if err != nil {
		return fmt.Errorf("failed to mark job succeeded: %w", err)
	}
	if !transitioned {
		s.logger.Warn("Job already finished elsewhere, skipping debit",
			slog.String("job_id", job.ID),
		)
		return nil
	}

	if err := s.products.MarkUploaded(ctx, job.ProductID); err != nil {
		s.logger.Error("Failed to mark product uploaded",
			slog.String("job_id", job.ID),
			slog.String("product_id", job.ProductID),
			slog.String("error", err.Error()),
		)
	}

	reference := "UPLOAD:" + job.ProductID
	if _, err := s.ledger.Debit(ctx, job.UserID, s.config.UploadCost, reference, ""); err != nil {
		// The listing already exists upstream; this inconsistency must
		// be visible to operators, never retried automatically.
		s.logger.Warn("Publish succeeded but balance debit failed",
			slog.String("job_id", job.ID),
			slog.String("user_id", job.UserID),
			slog.String("listing_id", listing.id),
			slog.Int64("amount", s.config.UploadCost),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Upload job succeeded",
		slog.String("job_id", job.ID),
		slog.String("listing_id", listing.id),
	)

	return nil
}

// recordFailure increments the retry count and either re-queues the job
// with backoff or, at the ceiling, marks job and product FAILED.
func (s *Service) recordFailure(ctx context.Context, job *domain.UploadJob, cause error) error {
	retryCount := job.RetryCount + 1
	final := retryCount >= s.config.MaxRetries

	result := domain.JobResult{
		Error:     cause.Error(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}

	transitioned, err := s.jobs.MarkFailure(ctx, job.ID, result, retryCount, final, s.now())
	if err != nil {
		s.logger.Error("Failed to record job failure",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
	if err == nil && !transitioned {
		// Another actor moved the job out of PROCESSING during the
		// attempt, usually a cancel. Their transition stands; do not
		// touch the product or re-dispatch.
		s.logger.Warn("Job moved during failed attempt, dropping outcome",
			slog.String("job_id", job.ID),
			slog.String("error", cause.Error()),
		)
		return nil
	}

	if final {
		if err := s.products.MarkFailed(ctx, job.ProductID, cause.Error()); err != nil {
			s.logger.Error("Failed to mark product failed",
				slog.String("product_id", job.ProductID),
				slog.String("error", err.Error()),
			)
		}

		s.logger.Warn("Upload job failed permanently, awaiting manual retry",
			slog.String("job_id", job.ID),
			slog.Int("retry_count", retryCount),
			slog.Int("max_retries", s.config.MaxRetries),
			slog.String("error", cause.Error()),
		)
		return fmt.Errorf("job failed after %d attempts: %w", retryCount, cause)
	}

	if err := s.products.MarkRetrying(ctx, job.ProductID, cause.Error()); err != nil {
		s.logger.Error("Failed to mark product for retry",
			slog.String("product_id", job.ProductID),
			slog.String("error", err.Error()),
		)
	}

	delay := backoff.Delay(retryCount, s.config.BackoffBase, s.config.BackoffMax)

	s.logger.Info("Upload job will be retried",
		slog.String("job_id", job.ID),
		slog.Int("retry_count", retryCount),
		slog.Int("max_retries", s.config.MaxRetries),
		slog.Duration("backoff", delay),
		slog.String("error", cause.Error()),
	)

	return domain.NewRetryableError(cause, delay)
}
