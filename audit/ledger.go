// Package audit provides the append-only ledger of actions taken against a
// PA request. Appends are best-effort: a ledger failure is logged locally
// and never surfaced to the caller, so the primary operation is unaffected.
package audit

import (
	"context"
	"log"

	"paflow/storage/store"
)

// Closed enumeration of lifecycle actions recorded in the ledger.
const (
	ActionPaCreated       = "pa_created"
	ActionPaStatusUpdated = "pa_status_updated"
	ActionPaDecided       = "pa_decided"

	ActionDocumentUploaded         = "document_uploaded"
	ActionDocumentReprocessed      = "document_reprocessed"
	ActionDocumentProcessingStart  = "document_processing_started"
	ActionDocumentProcessed        = "document_processed"
	ActionDocumentProcessingFailed = "document_processing_failed"

	ActionEvidencePackCreated = "evidence_pack_created"
	ActionEvidenceReady       = "evidence_ready"

	ActionJobEnqueued  = "job_enqueued"
	ActionJobRetried   = "job_retried"
	ActionJobSentToDLQ = "job_sent_to_dlq"
)

// Ledger records and reads audit entries for PA requests.
type Ledger struct {
	store  store.Store
	logger *log.Logger
}

// NewLedger creates a Ledger backed by the given store.
func NewLedger(s store.Store, l *log.Logger) *Ledger {
	return &Ledger{store: s, logger: l}
}

// Append records an action against a PA request. It never returns an error:
// ledger writes must not fail the operation that triggered them.
func (l *Ledger) Append(ctx context.Context, paRequestID int64, actor, action string, metadata map[string]interface{}) {
	err := l.store.InsertAuditLog(ctx, &store.AuditLogInsert{
		PaRequestID: paRequestID,
		Actor:       actor,
		Action:      action,
		Metadata:    metadata,
	})
	if err != nil {
		l.logger.Printf("Audit append failed (pa_request_id: %d, action: %s): %v", paRequestID, action, err)
	}
}

// Fetch returns one page of audit entries for a PA request, ordered by
// creation time. An unknown request UUID yields an empty page.
func (l *Ledger) Fetch(ctx context.Context, requestUUID string, limit, page int) ([]store.AuditLogEntry, error) {
	return l.store.FetchAuditLogs(ctx, requestUUID, limit, page)
}
