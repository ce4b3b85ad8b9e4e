package dto

// UploadItem is one (product, destination) pair to publish.
type UploadItem struct {
	ProductID      string `json:"product_id" binding:"required"`
	DestinationID  string `json:"destination_id" binding:"required"`
	TargetCategory string `json:"target_category"`
}

type CreateUploadsRequest struct {
	UserID string       `json:"user_id" binding:"required"`
	Items  []UploadItem `json:"items" binding:"required,min=1,dive"`
}

type CreateUploadsResponse struct {
	Queued int `json:"queued"`
}

// CancelUploadsRequest carries explicit job ids; an empty list cancels
// all FAILED jobs.
type CancelUploadsRequest struct {
	JobIDs []string `json:"job_ids"`
}

type CancelUploadsResponse struct {
	Cancelled int `json:"cancelled"`
}

// RetryUploadsRequest carries explicit job ids; an empty list retries
// all FAILED jobs.
type RetryUploadsRequest struct {
	JobIDs []string `json:"job_ids"`
}

type RetryUploadsResponse struct {
	Queued int `json:"queued"`
}

type ListUploadsRequest struct {
	UserID        string `form:"user_id"`
	DestinationID string `form:"destination_id"`
	Status        string `form:"status"`
	PageSize      int    `form:"page_size"`
	Cursor        string `form:"cursor"`
}

type ListUploadsResponse struct {
	Jobs       []UploadJobDTO `json:"jobs"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type UploadJobDTO struct {
	JobID          string `json:"job_id"`
	ProductID      string `json:"product_id"`
	DestinationID  string `json:"destination_id"`
	UserID         string `json:"user_id"`
	TargetCategory string `json:"target_category,omitempty"`
	Status         string `json:"status"`
	RetryCount     int    `json:"retry_count"`
	LastRetryAt    string `json:"last_retry_at,omitempty"`
	Result         string `json:"result,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
