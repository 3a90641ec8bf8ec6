package processing

import (
	"context"
	"fmt"
	"log"

	"paflow/audit"
	"paflow/internal/models"
	"paflow/storage/store"
)

// WorkerActor is the audit actor tag for system-driven actions.
const WorkerActor = "WORKER"

// Processor handles the document work for a single job. The evidence
// extraction and policy decision engine live behind this boundary, outside
// this service.
type Processor interface {
	Process(ctx context.Context, job *models.ProcessingJob) error
}

// LifecycleProcessor advances the document lifecycle for a job: it marks
// the document as processing, verifies the sensitive payload is present,
// and marks it processed. Downstream evidence work is delegated to
// whatever Processor is wired in its place in richer deployments.
type LifecycleProcessor struct {
	store  store.Store
	ledger *audit.Ledger
	logger *log.Logger
}

// NewLifecycleProcessor creates a LifecycleProcessor.
func NewLifecycleProcessor(s store.Store, l *audit.Ledger, logger *log.Logger) *LifecycleProcessor {
	return &LifecycleProcessor{store: s, ledger: l, logger: logger}
}

// Process runs the lifecycle steps for one job.
func (p *LifecycleProcessor) Process(ctx context.Context, job *models.ProcessingJob) error {
	if err := p.store.UpdateDocumentStatus(ctx, job.DocumentID, store.DocStatusProcessing, WorkerActor); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}
	p.ledger.Append(ctx, job.PaRequestID, WorkerActor, audit.ActionDocumentProcessingStart, map[string]interface{}{
		"document_id": job.DocumentID,
	})

	text, err := p.store.FetchDocumentText(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to fetch document text: %w", err)
	}
	if text == "" {
		return fmt.Errorf("document %d has empty text", job.DocumentID)
	}

	if err := p.store.UpdateDocumentStatus(ctx, job.DocumentID, store.DocStatusProcessed, WorkerActor); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	p.ledger.Append(ctx, job.PaRequestID, WorkerActor, audit.ActionDocumentProcessed, map[string]interface{}{
		"document_id": job.DocumentID,
	})

	return nil
}

var _ Processor = (*LifecycleProcessor)(nil)
