package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/pipeline"
)

const jobColumns = `
	id, product_id, destination_id, user_id, target_category,
	status, retry_count, last_retry_at, result, created_at, updated_at
`

// JobStorage persists upload jobs in PostgreSQL. Status transitions are
// conditional updates so concurrent workers and cancel requests cannot
// overwrite each other.
type JobStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *sqlx.DB, logger *slog.Logger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) Create(ctx context.Context, job *domain.UploadJob) error {
	query := `
		INSERT INTO upload_jobs (
			id, product_id, destination_id, user_id, target_category,
			status, retry_count, result, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.ProductID,
		job.DestinationID,
		job.UserID,
		job.TargetCategory,
		job.Status,
		job.RetryCount,
		job.Result,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *JobStorage) Get(ctx context.Context, id string) (*domain.UploadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM upload_jobs WHERE id = $1`

	var job domain.UploadJob
	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// FindActive returns the PENDING or PROCESSING job for a
// (product, destination) pair, if one exists. Used to suppress duplicate
// enqueues.
func (s *JobStorage) FindActive(ctx context.Context, productID, destinationID string) (*domain.UploadJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM upload_jobs
		WHERE product_id = $1
		  AND destination_id = $2
		  AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`

	var job domain.UploadJob
	err := s.db.GetContext(ctx, &job, query, productID, destinationID,
		domain.JobStatusPending, domain.JobStatusProcessing)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find active job: %w", err)
	}

	return &job, nil
}

// Claim moves a PENDING job to PROCESSING using a conditional update.
// A job cancelled between dispatch and claim loses the race here, which
// is what keeps CANCELLED jobs out of PROCESSING.
func (s *JobStorage) Claim(ctx context.Context, id string) (*domain.UploadJob, error) {
	query := `
		UPDATE upload_jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND status = $3
		RETURNING ` + jobColumns

	var job domain.UploadJob
	err := s.db.GetContext(ctx, &job, query, domain.JobStatusProcessing, id, domain.JobStatusPending)
	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("Failed to claim job - not PENDING or not found",
				slog.String("job_id", id),
			)
			return nil, domain.ErrJobNotClaimable
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return &job, nil
}

// MarkSuccess moves a PROCESSING job to SUCCESS and reports whether this
// call made the transition. The caller debits the ledger only when it
// did, so redelivered messages cannot double-charge.
func (s *JobStorage) MarkSuccess(ctx context.Context, id string, result domain.JobResult) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to encode job result: %w", err)
	}

	query := `
		UPDATE upload_jobs
		SET status = $1,
		    result = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusSuccess, string(payload), id, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark job succeeded: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// MarkFailure records a failed attempt, conditional on the job still
// being PROCESSING, and reports whether this call made the transition.
// A non-final failure returns the job to PENDING so the delayed
// re-dispatch can claim it again; a final one parks it in FAILED for
// manual retry. Zero rows means another actor moved the job (a cancel
// during the attempt) and the failure must not overwrite that.
func (s *JobStorage) MarkFailure(ctx context.Context, id string, result domain.JobResult, retryCount int, final bool, at time.Time) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to encode job result: %w", err)
	}

	status := domain.JobStatusPending
	if final {
		status = domain.JobStatusFailed
	}

	query := `
		UPDATE upload_jobs
		SET status = $1,
		    result = $2,
		    retry_count = $3,
		    last_retry_at = $4,
		    updated_at = NOW()
		WHERE id = $5
		  AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query, status, string(payload), retryCount, at, id, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// Cancel marks jobs CANCELLED. With no ids, only FAILED jobs are
// touched; with ids, any job that has not already finished.
func (s *JobStorage) Cancel(ctx context.Context, ids []string) (int, error) {
	var (
		query string
		args  []interface{}
	)

	if len(ids) == 0 {
		query = `
			UPDATE upload_jobs
			SET status = $1, updated_at = NOW()
			WHERE status = $2
		`
		args = []interface{}{domain.JobStatusCancelled, domain.JobStatusFailed}
	} else {
		query = `
			UPDATE upload_jobs
			SET status = $1, updated_at = NOW()
			WHERE id = ANY($2)
			  AND status NOT IN ($3, $4)
		`
		args = []interface{}{
			domain.JobStatusCancelled,
			pq.Array(ids),
			domain.JobStatusSuccess,
			domain.JobStatusCancelled,
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel jobs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(affected), nil
}

// ResetForRetry returns FAILED jobs to PENDING with a zero retry count
// and reports which jobs were reset so the caller can re-dispatch them.
func (s *JobStorage) ResetForRetry(ctx context.Context, ids []string) ([]string, error) {
	var (
		query string
		args  []interface{}
	)

	if len(ids) == 0 {
		query = `
			UPDATE upload_jobs
			SET status = $1, retry_count = 0, updated_at = NOW()
			WHERE status = $2
			RETURNING id
		`
		args = []interface{}{domain.JobStatusPending, domain.JobStatusFailed}
	} else {
		query = `
			UPDATE upload_jobs
			SET status = $1, retry_count = 0, updated_at = NOW()
			WHERE id = ANY($2)
			  AND status = $3
			RETURNING id
		`
		args = []interface{}{domain.JobStatusPending, pq.Array(ids), domain.JobStatusFailed}
	}

	var reset []string
	if err := s.db.SelectContext(ctx, &reset, query, args...); err != nil {
		return nil, fmt.Errorf("failed to reset jobs for retry: %w", err)
	}

	return reset, nil
}

// StalledPending returns ids of PENDING jobs not updated since
// olderThan. These have lost their queue message and need re-dispatch.
func (s *JobStorage) StalledPending(ctx context.Context, olderThan time.Time) ([]string, error) {
	query := `
		SELECT id
		FROM upload_jobs
		WHERE status = $1
		  AND updated_at < $2
		ORDER BY updated_at ASC
	`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, domain.JobStatusPending, olderThan); err != nil {
		return nil, fmt.Errorf("failed to find stalled jobs: %w", err)
	}

	return ids, nil
}

func (s *JobStorage) List(ctx context.Context, filter pipeline.JobFilter) ([]domain.UploadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM upload_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.DestinationID != "" {
		query += fmt.Sprintf(" AND destination_id = $%d", argIdx)
		args = append(args, filter.DestinationID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, pageSize+1)

	var jobs []domain.UploadJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
