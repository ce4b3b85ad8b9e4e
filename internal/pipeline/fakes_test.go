package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/internal/publisher"
)

// fakeJobStore is an in-memory JobStore with the same conditional-update
// semantics as the SQL implementation.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.UploadJob

	createErrs map[string]error // by product id, injected create failures
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*domain.UploadJob)}
}

func (s *fakeJobStore) get(id string) *domain.UploadJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job == nil {
		return nil
	}
	copied := *job
	return &copied
}

func (s *fakeJobStore) Create(ctx context.Context, job *domain.UploadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErrs[job.ProductID]; err != nil {
		return err
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, id string) (*domain.UploadJob, error) {
	job := s.get(id)
	if job == nil {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeJobStore) FindActive(ctx context.Context, productID, destinationID string) (*domain.UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ProductID == productID && job.DestinationID == destinationID &&
			(job.Status == domain.JobStatusPending || job.Status == domain.JobStatusProcessing) {
			copied := *job
			return &copied, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (s *fakeJobStore) Claim(ctx context.Context, id string) (*domain.UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job == nil || job.Status != domain.JobStatusPending {
		return nil, domain.ErrJobNotClaimable
	}
	job.Status = domain.JobStatusProcessing
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) MarkSuccess(ctx context.Context, id string, result domain.JobResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job == nil || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	job.Status = domain.JobStatusSuccess
	job.Result = result.ListingID
	return true, nil
}

func (s *fakeJobStore) MarkFailure(ctx context.Context, id string, result domain.JobResult, retryCount int, final bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job == nil || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	if final {
		job.Status = domain.JobStatusFailed
	} else {
		job.Status = domain.JobStatusPending
	}
	job.RetryCount = retryCount
	job.LastRetryAt = &at
	job.Result = result.Error
	return true, nil
}

func (s *fakeJobStore) Cancel(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := 0
	if len(ids) == 0 {
		for _, job := range s.jobs {
			if job.Status == domain.JobStatusFailed {
				job.Status = domain.JobStatusCancelled
				cancelled++
			}
		}
		return cancelled, nil
	}
	for _, id := range ids {
		job := s.jobs[id]
		if job == nil || job.Status == domain.JobStatusSuccess || job.Status == domain.JobStatusCancelled {
			continue
		}
		job.Status = domain.JobStatusCancelled
		cancelled++
	}
	return cancelled, nil
}

func (s *fakeJobStore) ResetForRetry(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reset []string
	match := func(id string) bool {
		if len(ids) == 0 {
			return true
		}
		for _, want := range ids {
			if want == id {
				return true
			}
		}
		return false
	}
	for id, job := range s.jobs {
		if job.Status == domain.JobStatusFailed && match(id) {
			job.Status = domain.JobStatusPending
			job.RetryCount = 0
			reset = append(reset, id)
		}
	}
	return reset, nil
}

func (s *fakeJobStore) StalledPending(ctx context.Context, olderThan time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, job := range s.jobs {
		if job.Status == domain.JobStatusPending && job.UpdatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeJobStore) List(ctx context.Context, filter JobFilter) ([]domain.UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UploadJob
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

type fakeProductStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newFakeProductStore(products ...*domain.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[string]*domain.Product)}
	for _, p := range products {
		copied := *p
		s.products[p.ID] = &copied
	}
	return s
}

func (s *fakeProductStore) get(id string) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

func (s *fakeProductStore) Get(ctx context.Context, id string) (*domain.Product, error) {
	p := s.get(id)
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *fakeProductStore) MarkUploaded(ctx context.Context, id string) error {
	return s.setStatus(id, domain.ProductStatusUploaded, "")
}

func (s *fakeProductStore) MarkRetrying(ctx context.Context, id, errorMessage string) error {
	return s.setStatus(id, domain.ProductStatusDraft, errorMessage)
}

func (s *fakeProductStore) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return s.setStatus(id, domain.ProductStatusFailed, errorMessage)
}

func (s *fakeProductStore) setStatus(id, status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	if p == nil {
		return domain.ErrProductNotFound
	}
	p.Status = status
	p.ErrorMessage = errorMessage
	return nil
}

type fakeDestinationStore struct {
	destinations map[string]*domain.Destination
}

func newFakeDestinationStore(dests ...*domain.Destination) *fakeDestinationStore {
	s := &fakeDestinationStore{destinations: make(map[string]*domain.Destination)}
	for _, d := range dests {
		s.destinations[d.ID] = d
	}
	return s
}

func (s *fakeDestinationStore) Get(ctx context.Context, id string) (*domain.Destination, error) {
	d, ok := s.destinations[id]
	if !ok {
		return nil, domain.ErrDestinationNotFound
	}
	return d, nil
}

// fakeOrchestrator returns scripted outcomes per call, in order. A nil
// entry means success.
type fakeOrchestrator struct {
	mu       sync.Mutex
	outcomes []error
	calls    int
	listing  publisher.Listing
}

func (o *fakeOrchestrator) Publish(ctx context.Context, dest *domain.Destination, product *domain.Product, targetCategory string) (*publisher.Listing, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	call := o.calls
	o.calls++
	if call < len(o.outcomes) && o.outcomes[call] != nil {
		return nil, o.outcomes[call]
	}
	listing := o.listing
	if listing.ID == "" {
		listing.ID = "listing-1"
	}
	return &listing, nil
}

func (o *fakeOrchestrator) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// fakeQueue records publishes instead of dispatching them.
type fakeQueue struct {
	mu        sync.Mutex
	published []string
	delays    []time.Duration
	failWith  error
}

func (q *fakeQueue) Publish(ctx context.Context, jobID string) error {
	return q.PublishAfter(ctx, jobID, 0)
}

func (q *fakeQueue) PublishAfter(ctx context.Context, jobID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failWith != nil {
		return q.failWith
	}
	q.published = append(q.published, jobID)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *fakeQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	return nil, fmt.Errorf("fakeQueue does not consume")
}

func (q *fakeQueue) publishedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.published...)
}
