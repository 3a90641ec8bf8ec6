package dispatcher

import (
	"context"

	"paflow/internal/models"
)

// Dispatcher defines the interface for handing processing jobs to the
// durable work queue.
type Dispatcher interface {
	// Enqueue pushes a processing job onto the work queue.
	Enqueue(ctx context.Context, job *models.ProcessingJob) error

	// EnqueueDeadLetter pushes an exhausted job onto the dead-letter queue.
	EnqueueDeadLetter(ctx context.Context, job *models.DeadLetterJob) error

	// Close closes the dispatcher connection.
	Close() error
}
