package consumer

import (
	"context"
	"errors"
	"log"

	"paflow/internal/models"
)

// MockConsumer serves jobs from an in-memory channel for testing.
type MockConsumer struct {
	logger *log.Logger
	jobs   chan *models.ProcessingJob
}

// NewMockConsumer creates a MockConsumer with the given buffer capacity.
func NewMockConsumer(capacity int, logger *log.Logger) *MockConsumer {
	return &MockConsumer{
		logger: logger,
		jobs:   make(chan *models.ProcessingJob, capacity),
	}
}

// Add queues a job for consumption.
func (m *MockConsumer) Add(job *models.ProcessingJob) {
	m.jobs <- job
}

// Consume reads jobs from the channel.
func (m *MockConsumer) Consume(ctx context.Context) (*models.ProcessingJob, func(success bool), error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case job := <-m.jobs:
		if job == nil {
			return nil, nil, errors.New("job channel closed")
		}
		ackCallback := func(success bool) {
			if !success {
				select {
				case m.jobs <- job:
				default:
					m.logger.Printf("[MockConsumer] Warning: Failed to re-queue job (channel full?): job_uuid=%s", job.JobUUID)
				}
			}
		}
		return job, ackCallback, nil
	}
}

// Close closes the job channel.
func (m *MockConsumer) Close() error {
	close(m.jobs)
	return nil
}

var _ Consumer = (*MockConsumer)(nil)
