package store

import (
	"context"
	"errors"
	"time"
)

// PA request lifecycle statuses
const (
	PaStatusCreated    = "created"
	PaStatusProcessing = "processing"
	PaStatusComplete   = "complete"
	PaStatusFailed     = "failed"
)

// Document lifecycle statuses
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusProcessed  = "processed"
	DocStatusFailed     = "failed"
)

// Processing job statuses
const (
	JobStatusProcessing = "processing"
	JobStatusSuccess    = "success"
	JobStatusFailed     = "failed"
)

// ErrNotFound is returned when a PA request or document does not resolve.
var ErrNotFound = errors.New("not found")

// ErrDuplicateDocument is returned by InsertDocument when the
// (pa_request_id, idempotency_key) uniqueness constraint rejects the row.
// The constraint is the source of truth for idempotency: callers must treat
// this error as "already exists" and fall back to the idempotent-return path.
var ErrDuplicateDocument = errors.New("document already exists for idempotency key")

// PaRequestRef carries both identities of a PA request: the internal
// numeric id (never exposed to callers) and the external UUID.
type PaRequestRef struct {
	ID          int64
	RequestUUID string
}

// DocumentRef carries both identities of a document.
type DocumentRef struct {
	ID           int64
	DocumentUUID string
}

// EvidencePackSummary is the most recent evidence pack for a PA request,
// produced by the downstream worker pipeline.
type EvidencePackSummary struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Decision  *string   `json:"decision"`
	CreatedAt time.Time `json:"created_at"`
}

// PaRequestDetail is the read model for fetching a PA request by external id.
type PaRequestDetail struct {
	RequestUUID        string
	Status             string
	CreatedAt          time.Time
	LatestEvidencePack *EvidencePackSummary // nil when no pack exists yet
}

// PaRequestPatch is a sparse update: only non-nil fields are written.
// ModifiedBy and ModifiedAt are always stamped.
type PaRequestPatch struct {
	Status     *string
	ModifiedBy string
	ModifiedAt time.Time
}

// AuditLogInsert is the write model for an audit ledger entry.
type AuditLogInsert struct {
	PaRequestID int64
	Actor       string
	Action      string
	Metadata    map[string]interface{}
}

// AuditLogEntry is the read model for an audit ledger entry.
type AuditLogEntry struct {
	ID        int64                  `json:"id"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// Store defines the persistence contract for the PA workflow. No business
// policy lives here; the orchestrator owns the workflow semantics.
type Store interface {
	// PA requests
	InsertPaRequest(ctx context.Context, status, createdBy string) (*PaRequestRef, error)
	ResolvePaRequest(ctx context.Context, requestUUID string) (*PaRequestRef, error)
	FetchPaRequestByUUID(ctx context.Context, requestUUID string) (*PaRequestDetail, error)
	UpdatePaRequest(ctx context.Context, paRequestID int64, patch PaRequestPatch) error

	// Documents. FindDocumentByKey returns (nil, nil) when no document
	// exists for the key; InsertDocument returns ErrDuplicateDocument when
	// the uniqueness constraint rejects a concurrent duplicate.
	FindDocumentByKey(ctx context.Context, paRequestID int64, idempotencyKey string) (*DocumentRef, error)
	InsertDocument(ctx context.Context, paRequestID int64, idempotencyKey, status, createdBy string) (*DocumentRef, error)
	UpdateDocumentStatus(ctx context.Context, documentID int64, status, modifiedBy string) error

	// Sensitive document text, stored apart from document metadata.
	InsertDocumentText(ctx context.Context, documentID int64, text, createdBy string) error
	FetchDocumentText(ctx context.Context, documentID int64) (string, error)

	// Audit ledger rows (append-only)
	InsertAuditLog(ctx context.Context, entry *AuditLogInsert) error
	FetchAuditLogs(ctx context.Context, requestUUID string, limit, page int) ([]AuditLogEntry, error)

	// Worker-side job bookkeeping
	UpsertProcessingJob(ctx context.Context, jobUUID string, documentID int64, status string, attempt int, lastError string) error
	InsertDeadLetterJob(ctx context.Context, jobUUID string, documentID int64, reason string, payload []byte) error

	Close()
}
