package domain

import "time"

// Upload job status constants
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusSuccess    = "SUCCESS"
	JobStatusFailed     = "FAILED"
	JobStatusCancelled  = "CANCELLED"
)

// UploadJob represents one publish attempt for a (product, destination) pair
type UploadJob struct {
	ID             string     `db:"id"`
	ProductID      string     `db:"product_id"`
	DestinationID  string     `db:"destination_id"`
	UserID         string     `db:"user_id"`
	TargetCategory string     `db:"target_category"`
	Status         string     `db:"status"`
	RetryCount     int        `db:"retry_count"`
	LastRetryAt    *time.Time `db:"last_retry_at"`
	Result         string     `db:"result"` // JSON string
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Terminal reports whether the job can never be dispatched again
// without an explicit manual retry.
func (j *UploadJob) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusCancelled
}

// JobSpec describes a publish request before a job row exists for it
type JobSpec struct {
	ProductID      string
	DestinationID  string
	UserID         string
	TargetCategory string
}

// JobResult is the opaque success/error payload persisted on the job row
type JobResult struct {
	ListingID string `json:"listing_id,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// JobMessage represents a job message taken off the queue
type JobMessage struct {
	JobID string `json:"job_id"`
}
