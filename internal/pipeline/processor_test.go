package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/ledger"
	"github.com/tudinhtu98/copee-nest/internal/publisher"
)

type processorFixture struct {
	service      *Service
	jobs         *fakeJobStore
	products     *fakeProductStore
	orchestrator *fakeOrchestrator
	ledger       *ledger.Service
	store        *ledger.MemoryStore
}

func newProcessorFixture(t *testing.T, outcomes ...error) *processorFixture {
	t.Helper()

	jobs := newFakeJobStore()
	products := newFakeProductStore(&domain.Product{
		ID:     "prod-1",
		UserID: "user-1",
		Title:  "Wireless Mouse",
		Status: domain.ProductStatusReady,
	})
	destinations := newFakeDestinationStore(&domain.Destination{
		ID:          "dest-1",
		BaseURL:     "https://shop.example.com",
		ConsumerKey: "ck", ConsumerSecret: "cs",
	})
	orchestrator := &fakeOrchestrator{outcomes: outcomes}
	store := ledger.NewMemoryStore()
	store.Open("user-1", 10000)
	ledgerSvc := ledger.NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc := newTestService(t, &Dependencies{
		Jobs:         jobs,
		Products:     products,
		Destinations: destinations,
		Ledger:       ledgerSvc,
		Orchestrator: orchestrator,
		Queue:        &fakeQueue{},
	})

	return &processorFixture{
		service:      svc,
		jobs:         jobs,
		products:     products,
		orchestrator: orchestrator,
		ledger:       ledgerSvc,
		store:        store,
	}
}

func (f *processorFixture) seedJob(t *testing.T, id string) {
	t.Helper()
	err := f.jobs.Create(context.Background(), &domain.UploadJob{
		ID:            id,
		ProductID:     "prod-1",
		DestinationID: "dest-1",
		UserID:        "user-1",
		Status:        domain.JobStatusPending,
	})
	require.NoError(t, err)
}

func (f *processorFixture) balance(t *testing.T) int64 {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	return balance
}

// cancellingOrchestrator cancels the job while its attempt is in flight,
// then fails the attempt.
type cancellingOrchestrator struct {
	jobs  *fakeJobStore
	jobID string
}

func (o *cancellingOrchestrator) Publish(ctx context.Context, dest *domain.Destination, product *domain.Product, targetCategory string) (*publisher.Listing, error) {
	if _, err := o.jobs.Cancel(ctx, []string{o.jobID}); err != nil {
		return nil, err
	}
	return nil, assert.AnError
}

func TestProcessCancelDuringAttemptStaysCancelled(t *testing.T) {
	jobs := newFakeJobStore()
	products := newFakeProductStore(&domain.Product{
		ID:     "prod-1",
		UserID: "user-1",
		Status: domain.ProductStatusReady,
	})
	destinations := newFakeDestinationStore(&domain.Destination{
		ID:          "dest-1",
		BaseURL:     "https://shop.example.com",
		ConsumerKey: "ck", ConsumerSecret: "cs",
	})

	svc := newTestService(t, &Dependencies{
		Jobs:         jobs,
		Products:     products,
		Destinations: destinations,
		Orchestrator: &cancellingOrchestrator{jobs: jobs, jobID: "job-1"},
		Queue:        &fakeQueue{},
	})

	err := jobs.Create(context.Background(), &domain.UploadJob{
		ID:            "job-1",
		ProductID:     "prod-1",
		DestinationID: "dest-1",
		UserID:        "user-1",
		Status:        domain.JobStatusPending,
	})
	require.NoError(t, err)

	// The attempt fails, but the cancel landed first: the failed attempt
	// must not move the job back to PENDING or ask for a re-dispatch.
	err = svc.Process(context.Background(), "job-1")
	require.NoError(t, err)

	job := jobs.get("job-1")
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Zero(t, job.RetryCount)
	assert.Equal(t, domain.ProductStatusReady, products.get("prod-1").Status)
}

func TestProcessSuccess(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedJob(t, "job-1")

	err := f.service.Process(context.Background(), "job-1")
	require.NoError(t, err)

	job := f.jobs.get("job-1")
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.Zero(t, job.RetryCount)
	assert.Equal(t, domain.ProductStatusUploaded, f.products.get("prod-1").Status)
	assert.Equal(t, int64(9000), f.balance(t))

	entries, err := f.ledger.Entries(context.Background(), "user-1", ledger.EntryFilter{Kind: ledger.KindDebit})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "UPLOAD:prod-1", entries[0].Reference)
	assert.Equal(t, int64(-1000), entries[0].Amount)
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	f := newProcessorFixture(t,
		&domain.UpstreamError{StatusCode: 502},
		&domain.UpstreamError{StatusCode: 502},
		nil,
	)
	f.seedJob(t, "job-1")

	var delays []time.Duration
	for attempt := 0; attempt < 3; attempt++ {
		err := f.service.Process(context.Background(), "job-1")
		if attempt < 2 {
			var retryable *domain.RetryableError
			require.ErrorAs(t, err, &retryable)
			delays = append(delays, retryable.Delay)
			continue
		}
		require.NoError(t, err)
	}

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)

	job := f.jobs.get("job-1")
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, 3, f.orchestrator.callCount())

	// Two failed attempts cost nothing; the one success debits once.
	assert.Equal(t, int64(9000), f.balance(t))
}

func TestProcessFailsPermanentlyAtRetryCeiling(t *testing.T) {
	f := newProcessorFixture(t,
		&domain.UpstreamError{StatusCode: 500},
		&domain.UpstreamError{StatusCode: 500},
		&domain.UpstreamError{StatusCode: 500},
	)
	f.seedJob(t, "job-1")

	var terminal error
	for attempt := 0; attempt < 3; attempt++ {
		terminal = f.service.Process(context.Background(), "job-1")
	}

	require.Error(t, terminal)
	var retryable *domain.RetryableError
	assert.False(t, errors.As(terminal, &retryable), "terminal failure must not ask for re-dispatch")

	job := f.jobs.get("job-1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.RetryCount)
	assert.Equal(t, domain.ProductStatusFailed, f.products.get("prod-1").Status)

	// No attempt succeeded, so the balance is untouched.
	assert.Equal(t, int64(10000), f.balance(t))
}

func TestProcessSkipsCancelledJob(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedJob(t, "job-1")

	_, err := f.jobs.Cancel(context.Background(), []string{"job-1"})
	require.NoError(t, err)

	require.NoError(t, f.service.Process(context.Background(), "job-1"))

	assert.Equal(t, domain.JobStatusCancelled, f.jobs.get("job-1").Status)
	assert.Zero(t, f.orchestrator.callCount())
	assert.Equal(t, int64(10000), f.balance(t))
}

func TestProcessSkipsAlreadyClaimedJob(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedJob(t, "job-1")

	_, err := f.jobs.Claim(context.Background(), "job-1")
	require.NoError(t, err)

	// Redelivery of a job another worker holds is a no-op.
	require.NoError(t, f.service.Process(context.Background(), "job-1"))
	assert.Zero(t, f.orchestrator.callCount())
	assert.Equal(t, domain.JobStatusProcessing, f.jobs.get("job-1").Status)
}

func TestProcessMissingJobIsDropped(t *testing.T) {
	f := newProcessorFixture(t)

	require.NoError(t, f.service.Process(context.Background(), "never-created"))
	assert.Zero(t, f.orchestrator.callCount())
}

func TestProcessRedeliveryAfterSuccessDebitsOnce(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedJob(t, "job-1")

	require.NoError(t, f.service.Process(context.Background(), "job-1"))
	// The broker redelivers the same message.
	require.NoError(t, f.service.Process(context.Background(), "job-1"))

	assert.Equal(t, 1, f.orchestrator.callCount())
	assert.Equal(t, int64(9000), f.balance(t))
}

func TestProcessManualRetryAfterPermanentFailure(t *testing.T) {
	f := newProcessorFixture(t,
		&domain.UpstreamError{StatusCode: 500},
		&domain.UpstreamError{StatusCode: 500},
		&domain.UpstreamError{StatusCode: 500},
		nil,
	)
	f.seedJob(t, "job-1")

	for attempt := 0; attempt < 3; attempt++ {
		_ = f.service.Process(context.Background(), "job-1")
	}
	require.Equal(t, domain.JobStatusFailed, f.jobs.get("job-1").Status)

	requeued, err := f.service.RetryFailed(context.Background(), []string{"job-1"})
	require.NoError(t, err)
	require.Equal(t, 1, requeued)
	assert.Zero(t, f.jobs.get("job-1").RetryCount)

	require.NoError(t, f.service.Process(context.Background(), "job-1"))

	job := f.jobs.get("job-1")
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.Zero(t, job.RetryCount)
	assert.Equal(t, int64(9000), f.balance(t), "the whole sequence debits exactly once")
}

func TestProcessDebitFailureDoesNotUndoSuccess(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedJob(t, "job-1")

	// Drain the balance below the upload cost first.
	_, err := f.ledger.Debit(context.Background(), "user-1", 9500, "DRAIN", "")
	require.NoError(t, err)

	require.NoError(t, f.service.Process(context.Background(), "job-1"))

	// The listing exists upstream, so SUCCESS stands and the shortfall
	// is left for operators; the balance must not go negative.
	assert.Equal(t, domain.JobStatusSuccess, f.jobs.get("job-1").Status)
	assert.Equal(t, domain.ProductStatusUploaded, f.products.get("prod-1").Status)
	assert.Equal(t, int64(500), f.balance(t))
}
