package dispatcher

import (
	"context"
	"sync"

	"paflow/internal/models"
)

// MockDispatcher records enqueued jobs in memory for testing.
type MockDispatcher struct {
	mu          sync.Mutex
	jobs        []*models.ProcessingJob
	deadLetters []*models.DeadLetterJob

	// EnqueueErr, when set, is returned by Enqueue. Used to simulate
	// queue faults.
	EnqueueErr error
}

// NewMockDispatcher creates an empty MockDispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (d *MockDispatcher) Enqueue(ctx context.Context, job *models.ProcessingJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.EnqueueErr != nil {
		return d.EnqueueErr
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *MockDispatcher) EnqueueDeadLetter(ctx context.Context, job *models.DeadLetterJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deadLetters = append(d.deadLetters, job)
	return nil
}

func (d *MockDispatcher) Close() error { return nil }

// Jobs returns the jobs enqueued so far.
func (d *MockDispatcher) Jobs() []*models.ProcessingJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.ProcessingJob, len(d.jobs))
	copy(out, d.jobs)
	return out
}

// DeadLetters returns the dead-lettered jobs so far.
func (d *MockDispatcher) DeadLetters() []*models.DeadLetterJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.DeadLetterJob, len(d.deadLetters))
	copy(out, d.deadLetters)
	return out
}

var _ Dispatcher = (*MockDispatcher)(nil)
