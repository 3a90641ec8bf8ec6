package processing

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"paflow/audit"
	"paflow/config"
	"paflow/internal/messaging/consumer"
	"paflow/internal/messaging/dispatcher"
	"paflow/internal/models"
	"paflow/storage/store"
)

// Worker consumes processing jobs from the work queue and drives each one
// through the processor, retrying transient failures and dead-lettering
// jobs that exhaust their attempts.
type Worker struct {
	workerConfig       config.WorkerPoolConfig
	consumerRetryDelay time.Duration // Parsed from workerConfig.ConsumerRetryDelay
	processTimeout     time.Duration // Parsed from workerConfig.ProcessTimeout

	maxJobRetries int // Business rule for maximum delivery attempts
	logger        *log.Logger
	store         store.Store
	ledger        *audit.Ledger
	consumer      consumer.Consumer
	dispatcher    dispatcher.Dispatcher
	processor     Processor
}

// New creates a new Worker instance
func New(cfg config.WorkerPoolConfig, maxJobRetries int, logger *log.Logger, s store.Store, l *audit.Ledger, c consumer.Consumer, d dispatcher.Dispatcher, p Processor) *Worker {
	consumerRetryDelay, err := time.ParseDuration(cfg.ConsumerRetryDelay)
	if err != nil {
		logger.Printf("Warning: Invalid consumer_retry_delay '%s', using default 5s", cfg.ConsumerRetryDelay)
		consumerRetryDelay = 5 * time.Second
	}

	processTimeout, err := time.ParseDuration(cfg.ProcessTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid process_timeout '%s', using default 30s", cfg.ProcessTimeout)
		processTimeout = 30 * time.Second
	}

	return &Worker{
		workerConfig:       cfg,
		consumerRetryDelay: consumerRetryDelay,
		processTimeout:     processTimeout,
		maxJobRetries:      maxJobRetries,
		logger:             logger,
		store:              s,
		ledger:             l,
		consumer:           c,
		dispatcher:         d,
		processor:          p,
	}
}

// Run starts the worker pool and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Printf("Starting worker pool with concurrency: %d, max retries: %d",
		w.workerConfig.Concurrency, w.maxJobRetries)
	var wg sync.WaitGroup
	for i := 0; i < w.workerConfig.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.logger.Printf("Worker %d started", workerID)
			w.consumeLoop(ctx, workerID)
			w.logger.Printf("Worker %d stopped", workerID)
		}(i + 1)
	}
	wg.Wait()
	w.logger.Println("Worker pool stopped.")
}

// consumeLoop is the main loop for a worker goroutine
func (w *Worker) consumeLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("Worker %d: Context cancelled, stopping.", workerID)
			return
		default:
			job, ack, err := w.consumer.Consume(ctx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.Printf("Worker %d: Consumer error: %v", workerID, err)
				time.Sleep(w.consumerRetryDelay)
				continue
			}
			if job == nil {
				continue // poll timed out
			}
			w.handleJob(ctx, workerID, job, ack)
		}
	}
}

// handleJob processes one delivery of a job: it records the attempt,
// invokes the processor, and on failure either re-enqueues with an
// incremented attempt count or dead-letters. The delivery is always acked;
// retry redelivery happens through the fresh enqueue, not the queue's own
// redelivery.
func (w *Worker) handleJob(ctx context.Context, workerID int, job *models.ProcessingJob, ack func(success bool)) {
	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	w.logger.Printf("Worker %d: Processing document=%d, attempt=%d", workerID, job.DocumentID, attempt)

	if err := w.store.UpsertProcessingJob(ctx, job.JobUUID, job.DocumentID, store.JobStatusProcessing, attempt, ""); err != nil {
		w.logger.Printf("Worker %d: Failed to record processing job %s: %v", workerID, job.JobUUID, err)
	}

	procCtx, cancel := context.WithTimeout(ctx, w.processTimeout)
	err := w.processor.Process(procCtx, job)
	cancel()

	if err == nil {
		if err := w.store.UpsertProcessingJob(ctx, job.JobUUID, job.DocumentID, store.JobStatusSuccess, attempt, ""); err != nil {
			w.logger.Printf("Worker %d: Failed to record job success %s: %v", workerID, job.JobUUID, err)
		}
		ack(true)
		return
	}

	w.logger.Printf("Worker %d: Error processing document=%d, attempt=%d, error=%v", workerID, job.DocumentID, attempt, err)

	if attempt >= w.maxJobRetries {
		w.sendToDeadLetter(ctx, job, attempt, err)
	} else {
		w.retryJob(ctx, job, attempt)
	}
	// The delivery itself is handled either way.
	ack(true)
}

// retryJob re-enqueues the job with an incremented attempt count.
func (w *Worker) retryJob(ctx context.Context, job *models.ProcessingJob, attempt int) {
	retried := *job
	retried.Attempt = attempt + 1

	if err := w.dispatcher.Enqueue(ctx, &retried); err != nil {
		w.logger.Printf("CRITICAL: Failed to re-enqueue job %s for retry: %v", job.JobUUID, err)
		return
	}

	if err := w.store.UpsertProcessingJob(ctx, job.JobUUID, job.DocumentID, store.JobStatusFailed, attempt, "Retrying job"); err != nil {
		w.logger.Printf("Failed to record job retry %s: %v", job.JobUUID, err)
	}

	w.ledger.Append(ctx, job.PaRequestID, WorkerActor, audit.ActionJobRetried, map[string]interface{}{
		"document_id": job.DocumentID,
		"attempt":     attempt + 1,
	})

	w.logger.Printf("Retrying document=%d, attempt=%d", job.DocumentID, attempt+1)
}

// sendToDeadLetter records the exhausted job and pushes it onto the DLQ.
func (w *Worker) sendToDeadLetter(ctx context.Context, job *models.ProcessingJob, attempt int, procErr error) {
	dead := &models.DeadLetterJob{
		ProcessingJob: *job,
		Error:         procErr.Error(),
		FailedAt:      time.Now().Unix(),
	}

	if err := w.dispatcher.EnqueueDeadLetter(ctx, dead); err != nil {
		w.logger.Printf("CRITICAL: Failed to push job %s to DLQ: %v", job.JobUUID, err)
	}

	w.ledger.Append(ctx, job.PaRequestID, WorkerActor, audit.ActionJobSentToDLQ, map[string]interface{}{
		"document_id": job.DocumentID,
		"attempts":    attempt,
		"error":       procErr.Error(),
	})

	if err := w.store.UpsertProcessingJob(ctx, job.JobUUID, job.DocumentID, store.JobStatusFailed, attempt, procErr.Error()); err != nil {
		w.logger.Printf("Failed to record job failure %s: %v", job.JobUUID, err)
	}

	if err := w.store.UpdateDocumentStatus(ctx, job.DocumentID, store.DocStatusFailed, WorkerActor); err != nil {
		w.logger.Printf("Failed to mark document %d failed: %v", job.DocumentID, err)
	}
	w.ledger.Append(ctx, job.PaRequestID, WorkerActor, audit.ActionDocumentProcessingFailed, map[string]interface{}{
		"document_id": job.DocumentID,
		"error":       procErr.Error(),
	})

	payload, err := json.Marshal(dead)
	if err != nil {
		w.logger.Printf("Failed to serialize dead letter payload for job %s: %v", job.JobUUID, err)
		payload = nil
	}
	if err := w.store.InsertDeadLetterJob(ctx, job.JobUUID, job.DocumentID, procErr.Error(), payload); err != nil {
		w.logger.Printf("CRITICAL: Failed to record dead letter job %s: %v", job.JobUUID, err)
	}

	w.logger.Printf("Document=%d sent to DLQ after %d attempts", job.DocumentID, attempt)
}
