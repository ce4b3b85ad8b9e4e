package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tudinhtu98/copee-nest/internal/api/dto"
	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/pipeline"
)

// CreateUploads handles POST /api/v1/uploads
// Queues one upload job per (product, destination) pair
func (h *UploadHandler) CreateUploads(c *gin.Context) {
	var req dto.CreateUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	specs := make([]domain.JobSpec, len(req.Items))
	for i, item := range req.Items {
		specs[i] = domain.JobSpec{
			ProductID:      item.ProductID,
			DestinationID:  item.DestinationID,
			UserID:         req.UserID,
			TargetCategory: item.TargetCategory,
		}
	}

	queued, err := h.uploads.Enqueue(c.Request.Context(), specs)
	if err != nil {
		h.logger.Error("Failed to queue uploads", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue uploads",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateUploadsResponse{
		Queued: queued,
	})
}

// GetUpload handles GET /api/v1/uploads/:job_id
// Retrieves the current persisted state of an upload job
func (h *UploadHandler) GetUpload(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.uploads.Status(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Upload job not found",
			})
			return
		}
		h.logger.Error("Failed to get upload job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get upload job",
		})
		return
	}

	c.JSON(http.StatusOK, toUploadJobDTO(job))
}

// ListUploads handles GET /api/v1/uploads
// Lists upload jobs with optional filtering and cursor pagination
func (h *UploadHandler) ListUploads(c *gin.Context) {
	var req dto.ListUploadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := pipeline.JobFilter{
		UserID:        req.UserID,
		DestinationID: req.DestinationID,
		Status:        req.Status,
		PageSize:      req.PageSize,
		Cursor:        cursor,
	}

	jobs, err := h.uploads.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list upload jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list upload jobs",
		})
		return
	}

	// One extra row was fetched to detect whether more results exist.
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.UploadJobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = toUploadJobDTO(&job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&pipeline.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListUploadsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// CancelUploads handles POST /api/v1/uploads/cancel
// Cancels jobs by id, or all FAILED jobs when no ids are given
func (h *UploadHandler) CancelUploads(c *gin.Context) {
	var req dto.CancelUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	for _, id := range req.JobIDs {
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "job_ids must be valid UUIDs",
			})
			return
		}
	}

	cancelled, err := h.uploads.Cancel(c.Request.Context(), req.JobIDs)
	if err != nil {
		h.logger.Error("Failed to cancel upload jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel upload jobs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.CancelUploadsResponse{
		Cancelled: cancelled,
	})
}

// RetryUploads handles POST /api/v1/uploads/retry
// Resets FAILED jobs and re-dispatches them
func (h *UploadHandler) RetryUploads(c *gin.Context) {
	var req dto.RetryUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	for _, id := range req.JobIDs {
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "job_ids must be valid UUIDs",
			})
			return
		}
	}

	queued, err := h.uploads.RetryFailed(c.Request.Context(), req.JobIDs)
	if err != nil {
		h.logger.Error("Failed to retry upload jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retry upload jobs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.RetryUploadsResponse{
		Queued: queued,
	})
}

func toUploadJobDTO(job *domain.UploadJob) dto.UploadJobDTO {
	out := dto.UploadJobDTO{
		JobID:          job.ID,
		ProductID:      job.ProductID,
		DestinationID:  job.DestinationID,
		UserID:         job.UserID,
		TargetCategory: job.TargetCategory,
		Status:         job.Status,
		RetryCount:     job.RetryCount,
		Result:         job.Result,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
	if job.LastRetryAt != nil {
		out.LastRetryAt = job.LastRetryAt.Format(time.RFC3339)
	}
	return out
}
