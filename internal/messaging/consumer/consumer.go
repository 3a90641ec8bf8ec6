package consumer

import (
	"context"

	"paflow/internal/models"
)

// Consumer defines the interface for receiving processing jobs from the
// work queue.
type Consumer interface {
	// Consume blocks until a job is received, the poll times out, or the
	// context is cancelled. A (nil, nil, nil) return means the poll timed
	// out with no job available.
	// The ack callback: ack(true) for successful processing;
	// ack(false) for failure (the job is pushed back for redelivery where
	// the backend supports it).
	Consume(ctx context.Context) (job *models.ProcessingJob, ack func(success bool), err error)

	// Close gracefully shuts down the consumer connection.
	Close() error
}
