package handler

import (
	"context"
	"log/slog"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/ledger"
	"github.com/tudinhtu98/copee-nest/internal/pipeline"
)

// UploadService is the pipeline surface the HTTP handlers need.
type UploadService interface {
	Enqueue(ctx context.Context, specs []domain.JobSpec) (int, error)
	Cancel(ctx context.Context, jobIDs []string) (int, error)
	RetryFailed(ctx context.Context, jobIDs []string) (int, error)
	Status(ctx context.Context, jobID string) (*domain.UploadJob, error)
	ListJobs(ctx context.Context, filter pipeline.JobFilter) ([]domain.UploadJob, error)
}

// BalanceService is the ledger surface the HTTP handlers need.
type BalanceService interface {
	Credit(ctx context.Context, accountID string, amount int64, reference, description string) (int64, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	Entries(ctx context.Context, accountID string, filter ledger.EntryFilter) ([]ledger.Entry, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Uploads UploadService
	Ledger  BalanceService
}

// UploadHandler handles upload pipeline HTTP requests
type UploadHandler struct {
	logger  *slog.Logger
	uploads UploadService
}

// NewUploadHandler creates a new UploadHandler instance
func NewUploadHandler(deps *Dependencies) *UploadHandler {
	return &UploadHandler{
		logger:  deps.Logger,
		uploads: deps.Uploads,
	}
}

// LedgerHandler handles prepaid balance HTTP requests
type LedgerHandler struct {
	logger *slog.Logger
	ledger BalanceService
}

// NewLedgerHandler creates a new LedgerHandler instance
func NewLedgerHandler(deps *Dependencies) *LedgerHandler {
	return &LedgerHandler{
		logger: deps.Logger,
		ledger: deps.Ledger,
	}
}
