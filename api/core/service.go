package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"paflow/audit"
	"paflow/internal/messaging/dispatcher"
	"paflow/internal/models"
	"paflow/storage/store"
)

// Service is the workflow orchestrator for PA requests. It coordinates the
// store, the audit ledger, and the job dispatcher; no single transaction
// spans the steps, so the workflow itself provides the consistency
// guarantees (idempotent acceptance, best-effort audit, queue handoff).
type Service struct {
	store      store.Store
	ledger     *audit.Ledger
	dispatcher dispatcher.Dispatcher
	logger     *log.Logger
}

// NewService creates a new Service instance.
func NewService(s store.Store, l *audit.Ledger, d dispatcher.Dispatcher, logger *log.Logger) *Service {
	return &Service{store: s, ledger: l, dispatcher: d, logger: logger}
}

// actorTag formats a caller identity for the audit ledger, distinguishing
// human callers from system actors.
func actorTag(actor string) string {
	if actor == "" {
		actor = "anonymous"
	}
	return "USER:" + actor
}

// CreatePaRequest creates a PA request and returns its external identity.
// The audit append is best-effort: a ledger failure does not undo the
// creation.
func (s *Service) CreatePaRequest(ctx context.Context, actor string) (string, error) {
	if actor == "" {
		return "", ErrUnauthorized
	}

	ref, err := s.store.InsertPaRequest(ctx, store.PaStatusCreated, actor)
	if err != nil {
		return "", fmt.Errorf("failed to create PA request: %w", err)
	}

	s.ledger.Append(ctx, ref.ID, actorTag(actor), audit.ActionPaCreated, nil)

	return ref.RequestUUID, nil
}

// SubmitDocumentInput carries a document submission.
type SubmitDocumentInput struct {
	RequestUUID    string
	DocumentText   string
	IdempotencyKey string
	Actor          string
}

// SubmitDocumentResult is the caller-visible outcome of a submission.
// Status is always "processing", on both the fresh and the
// idempotent-replay path; the replay path does not read back the true
// current document status.
type SubmitDocumentResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// SubmitDocument attaches a document to a PA request and hands a
// processing job to the work queue. Retries with the same idempotency key
// return the original document id without duplicating side effects.
//
// The durable writes commit independently; a failure part-way leaves
// earlier writes in place (no compensating rollback). An enqueue failure
// surfaces as a generic failure even though the document already
// committed.
func (s *Service) SubmitDocument(ctx context.Context, in *SubmitDocumentInput) (*SubmitDocumentResult, error) {
	if in.Actor == "" {
		return nil, ErrUnauthorized
	}

	// 1. Resolve the PA request by external identity.
	pa, err := s.store.ResolvePaRequest(ctx, in.RequestUUID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PA request: %w", err)
	}

	// 2. Idempotency check: replays short-circuit without re-inserting,
	// re-auditing, or re-enqueueing.
	existing, err := s.store.FindDocumentByKey(ctx, pa.ID, in.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if existing != nil {
		return &SubmitDocumentResult{
			DocumentID: existing.DocumentUUID,
			Status:     store.DocStatusProcessing,
		}, nil
	}

	// 3. Create the document. Two concurrent submissions with the same key
	// can both miss the lookup above; the store's uniqueness constraint
	// picks the winner, and the loser recovers the idempotent response.
	doc, err := s.store.InsertDocument(ctx, pa.ID, in.IdempotencyKey, store.DocStatusUploaded, in.Actor)
	if errors.Is(err, store.ErrDuplicateDocument) {
		winner, findErr := s.store.FindDocumentByKey(ctx, pa.ID, in.IdempotencyKey)
		if findErr != nil || winner == nil {
			return nil, fmt.Errorf("failed to recover existing document after duplicate key: %w", findErr)
		}
		return &SubmitDocumentResult{
			DocumentID: winner.DocumentUUID,
			Status:     store.DocStatusProcessing,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	// 4. Store the sensitive payload apart from the metadata.
	if err := s.store.InsertDocumentText(ctx, doc.ID, in.DocumentText, in.Actor); err != nil {
		return nil, fmt.Errorf("failed to store document text: %w", err)
	}

	// 5. Move the PA request into processing. Sparse patch, last write
	// wins; transition legality is not enforced here.
	processing := store.PaStatusProcessing
	err = s.store.UpdatePaRequest(ctx, pa.ID, store.PaRequestPatch{
		Status:     &processing,
		ModifiedBy: in.Actor,
		ModifiedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update PA request status: %w", err)
	}

	// 6. Audit, best-effort.
	s.ledger.Append(ctx, pa.ID, actorTag(in.Actor), audit.ActionDocumentUploaded, map[string]interface{}{
		"document_id": doc.ID,
	})

	// 7. Hand the processing job to the work queue.
	job := &models.ProcessingJob{
		JobUUID:      uuid.NewString(),
		DocumentID:   doc.ID,
		DocumentUUID: doc.DocumentUUID,
		PaRequestID:  pa.ID,
		RequestUUID:  in.RequestUUID,
	}
	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		// The document and status writes already committed; the caller
		// still sees a failure. Accepted risk of the no-transaction design.
		return nil, fmt.Errorf("failed to enqueue processing job: %w", err)
	}

	return &SubmitDocumentResult{
		DocumentID: doc.DocumentUUID,
		Status:     store.DocStatusProcessing,
	}, nil
}

// PaRequestView is the read model returned to callers fetching a PA
// request by external id.
type PaRequestView struct {
	ID                 string                     `json:"id"`
	Status             string                     `json:"status"`
	CreatedAt          time.Time                  `json:"created_at"`
	LatestEvidencePack *store.EvidencePackSummary `json:"latest_evidence_pack"`
}

// FetchPaRequest reads a PA request and its most recent evidence pack
// summary.
func (s *Service) FetchPaRequest(ctx context.Context, requestUUID string) (*PaRequestView, error) {
	detail, err := s.store.FetchPaRequestByUUID(ctx, requestUUID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaRequestUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PA request: %w", err)
	}

	return &PaRequestView{
		ID:                 detail.RequestUUID,
		Status:             detail.Status,
		CreatedAt:          detail.CreatedAt,
		LatestEvidencePack: detail.LatestEvidencePack,
	}, nil
}

// FetchAuditLogs returns one page of audit entries for a PA request.
func (s *Service) FetchAuditLogs(ctx context.Context, requestUUID string, limit, page int) ([]store.AuditLogEntry, error) {
	entries, err := s.ledger.Fetch(ctx, requestUUID, limit, page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return entries, nil
}
