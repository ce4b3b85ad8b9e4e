package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/ledger"
)

func newTestService(t *testing.T, deps *Dependencies) *Service {
	t.Helper()

	if deps.Jobs == nil {
		deps.Jobs = newFakeJobStore()
	}
	if deps.Products == nil {
		deps.Products = newFakeProductStore()
	}
	if deps.Destinations == nil {
		deps.Destinations = newFakeDestinationStore()
	}
	if deps.Ledger == nil {
		store := ledger.NewMemoryStore()
		deps.Ledger = ledger.NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}
	if deps.Orchestrator == nil {
		deps.Orchestrator = &fakeOrchestrator{}
	}
	if deps.Queue == nil {
		deps.Queue = &fakeQueue{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return NewService(deps)
}

func TestServiceEnqueue(t *testing.T) {
	jobs := newFakeJobStore()
	queue := &fakeQueue{}
	svc := newTestService(t, &Dependencies{Jobs: jobs, Queue: queue})

	queued, err := svc.Enqueue(context.Background(), []domain.JobSpec{
		{ProductID: "prod-1", DestinationID: "dest-1", UserID: "user-1"},
		{ProductID: "prod-2", DestinationID: "dest-1", UserID: "user-1", TargetCategory: "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.Len(t, queue.publishedIDs(), 2)

	for _, id := range queue.publishedIDs() {
		job := jobs.get(id)
		require.NotNil(t, job)
		assert.Equal(t, domain.JobStatusPending, job.Status)
		assert.Zero(t, job.RetryCount)
	}
}

func TestServiceEnqueueSuppressesDuplicatePair(t *testing.T) {
	jobs := newFakeJobStore()
	queue := &fakeQueue{}
	svc := newTestService(t, &Dependencies{Jobs: jobs, Queue: queue})

	spec := domain.JobSpec{ProductID: "prod-1", DestinationID: "dest-1", UserID: "user-1"}

	queued, err := svc.Enqueue(context.Background(), []domain.JobSpec{spec})
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	// Same pair again while the first job is still PENDING.
	queued, err = svc.Enqueue(context.Background(), []domain.JobSpec{spec})
	require.NoError(t, err)
	assert.Zero(t, queued)
	assert.Len(t, queue.publishedIDs(), 1)

	// A different destination for the same product is not a duplicate.
	queued, err = svc.Enqueue(context.Background(), []domain.JobSpec{
		{ProductID: "prod-1", DestinationID: "dest-2", UserID: "user-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestServiceEnqueueSkipsFailingSpec(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.createErrs = map[string]error{"prod-1": assert.AnError}
	queue := &fakeQueue{}
	svc := newTestService(t, &Dependencies{Jobs: jobs, Queue: queue})

	queued, err := svc.Enqueue(context.Background(), []domain.JobSpec{
		{ProductID: "prod-1", DestinationID: "dest-1", UserID: "user-1"},
		{ProductID: "prod-2", DestinationID: "dest-1", UserID: "user-1"},
	})
	require.NoError(t, err)

	// The failing spec is skipped; the rest of the batch still queues.
	assert.Equal(t, 1, queued)
	require.Len(t, queue.publishedIDs(), 1)
	job := jobs.get(queue.publishedIDs()[0])
	require.NotNil(t, job)
	assert.Equal(t, "prod-2", job.ProductID)
}

func TestServiceEnqueueSurvivesDispatchFailure(t *testing.T) {
	jobs := newFakeJobStore()
	queue := &fakeQueue{failWith: assert.AnError}
	svc := newTestService(t, &Dependencies{Jobs: jobs, Queue: queue})

	queued, err := svc.Enqueue(context.Background(), []domain.JobSpec{
		{ProductID: "prod-1", DestinationID: "dest-1", UserID: "user-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	// The row exists and stays PENDING even though dispatch failed.
	listed, err := svc.ListJobs(context.Background(), JobFilter{Status: domain.JobStatusPending})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestServiceCancelWithIDs(t *testing.T) {
	jobs := newFakeJobStore()
	seedJob(t, jobs, "job-pending", domain.JobStatusPending, 0)
	seedJob(t, jobs, "job-processing", domain.JobStatusProcessing, 0)
	seedJob(t, jobs, "job-success", domain.JobStatusSuccess, 0)
	seedJob(t, jobs, "job-failed", domain.JobStatusFailed, 3)

	svc := newTestService(t, &Dependencies{Jobs: jobs})

	cancelled, err := svc.Cancel(context.Background(), []string{
		"job-pending", "job-processing", "job-success", "job-failed",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cancelled)

	assert.Equal(t, domain.JobStatusCancelled, jobs.get("job-pending").Status)
	assert.Equal(t, domain.JobStatusCancelled, jobs.get("job-processing").Status)
	assert.Equal(t, domain.JobStatusCancelled, jobs.get("job-failed").Status)
	// A finished job is never un-finished.
	assert.Equal(t, domain.JobStatusSuccess, jobs.get("job-success").Status)
}

func TestServiceCancelWithoutIDsOnlyFailed(t *testing.T) {
	jobs := newFakeJobStore()
	seedJob(t, jobs, "job-pending", domain.JobStatusPending, 0)
	seedJob(t, jobs, "job-failed-1", domain.JobStatusFailed, 3)
	seedJob(t, jobs, "job-failed-2", domain.JobStatusFailed, 3)

	svc := newTestService(t, &Dependencies{Jobs: jobs})

	cancelled, err := svc.Cancel(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled)

	assert.Equal(t, domain.JobStatusPending, jobs.get("job-pending").Status)
	assert.Equal(t, domain.JobStatusCancelled, jobs.get("job-failed-1").Status)
	assert.Equal(t, domain.JobStatusCancelled, jobs.get("job-failed-2").Status)
}

func TestServiceRetryFailedResetsAndRedispatches(t *testing.T) {
	jobs := newFakeJobStore()
	seedJob(t, jobs, "job-failed", domain.JobStatusFailed, 3)
	seedJob(t, jobs, "job-pending", domain.JobStatusPending, 1)

	queue := &fakeQueue{}
	svc := newTestService(t, &Dependencies{Jobs: jobs, Queue: queue})

	requeued, err := svc.RetryFailed(context.Background(), []string{"job-failed", "job-pending"})
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Equal(t, []string{"job-failed"}, queue.publishedIDs())

	job := jobs.get("job-failed")
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Zero(t, job.RetryCount)
}

func TestServiceRequeueStalled(t *testing.T) {
	jobs := newFakeJobStore()
	queue := &fakeQueue{}
	svc := newTestService(t, &Dependencies{Jobs: jobs, Queue: queue})

	// Zero updated_at, well past any stall threshold.
	seedJob(t, jobs, "job-stalled", domain.JobStatusPending, 0)
	seedJob(t, jobs, "job-failed", domain.JobStatusFailed, 3)

	err := jobs.Create(context.Background(), &domain.UploadJob{
		ID:            "job-fresh",
		ProductID:     "prod-fresh",
		DestinationID: "dest-1",
		UserID:        "user-1",
		Status:        domain.JobStatusPending,
		UpdatedAt:     time.Now(),
	})
	require.NoError(t, err)

	requeued, err := svc.RequeueStalled(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Equal(t, []string{"job-stalled"}, queue.publishedIDs())
}

func TestServiceStatusNotFound(t *testing.T) {
	svc := newTestService(t, &Dependencies{})

	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func seedJob(t *testing.T, jobs *fakeJobStore, id, status string, retryCount int) {
	t.Helper()
	err := jobs.Create(context.Background(), &domain.UploadJob{
		ID:            id,
		ProductID:     "prod-" + id,
		DestinationID: "dest-1",
		UserID:        "user-1",
		Status:        status,
		RetryCount:    retryCount,
	})
	require.NoError(t, err)
}
