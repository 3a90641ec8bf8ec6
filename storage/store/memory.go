package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// It mirrors the Postgres adapter's contract, including the uniqueness
// constraint on (pa_request_id, idempotency_key).
type MemoryStore struct {
	mu sync.Mutex

	paSeq    int64
	docSeq   int64
	auditSeq int64

	paByID   map[int64]*memPaRequest
	paByUUID map[string]int64

	docs      map[int64]*memDocument
	docsByKey map[string]int64 // "<pa_request_id>|<idempotency_key>"

	texts map[int64]string

	audits []memAuditEntry

	jobs        map[string]*memJob
	deadLetters []string // job UUIDs

	packs map[int64]*EvidencePackSummary // keyed by pa_request_id

	// AuditInsertErr, when set, is returned by InsertAuditLog. Used to
	// simulate ledger faults.
	AuditInsertErr error
}

type memPaRequest struct {
	id          int64
	requestUUID string
	status      string
	createdBy   string
	createdAt   time.Time
	modifiedBy  string
	modifiedAt  time.Time
}

type memDocument struct {
	id             int64
	documentUUID   string
	paRequestID    int64
	idempotencyKey string
	status         string
	createdBy      string
}

type memAuditEntry struct {
	entry       AuditLogEntry
	paRequestID int64
}

type memJob struct {
	jobUUID    string
	documentID int64
	status     string
	attempt    int
	lastError  string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		paByID:    make(map[int64]*memPaRequest),
		paByUUID:  make(map[string]int64),
		docs:      make(map[int64]*memDocument),
		docsByKey: make(map[string]int64),
		texts:     make(map[int64]string),
		jobs:      make(map[string]*memJob),
		packs:     make(map[int64]*EvidencePackSummary),
	}
}

func docKey(paRequestID int64, idempotencyKey string) string {
	return fmt.Sprintf("%d|%s", paRequestID, idempotencyKey)
}

func (m *MemoryStore) InsertPaRequest(ctx context.Context, status, createdBy string) (*PaRequestRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paSeq++
	pa := &memPaRequest{
		id:          m.paSeq,
		requestUUID: uuid.NewString(),
		status:      status,
		createdBy:   createdBy,
		createdAt:   time.Now(),
		modifiedBy:  createdBy,
		modifiedAt:  time.Now(),
	}
	m.paByID[pa.id] = pa
	m.paByUUID[pa.requestUUID] = pa.id

	return &PaRequestRef{ID: pa.id, RequestUUID: pa.requestUUID}, nil
}

func (m *MemoryStore) ResolvePaRequest(ctx context.Context, requestUUID string) (*PaRequestRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.paByUUID[requestUUID]
	if !ok {
		return nil, ErrNotFound
	}
	return &PaRequestRef{ID: id, RequestUUID: requestUUID}, nil
}

func (m *MemoryStore) FetchPaRequestByUUID(ctx context.Context, requestUUID string) (*PaRequestDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.paByUUID[requestUUID]
	if !ok {
		return nil, ErrNotFound
	}
	pa := m.paByID[id]
	detail := &PaRequestDetail{
		RequestUUID: pa.requestUUID,
		Status:      pa.status,
		CreatedAt:   pa.createdAt,
	}
	if pack, ok := m.packs[id]; ok {
		copied := *pack
		detail.LatestEvidencePack = &copied
	}
	return detail, nil
}

func (m *MemoryStore) UpdatePaRequest(ctx context.Context, paRequestID int64, patch PaRequestPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pa, ok := m.paByID[paRequestID]
	if !ok {
		return ErrNotFound
	}
	// Last-write-wins, no transition legality check.
	if patch.Status != nil {
		pa.status = *patch.Status
	}
	pa.modifiedBy = patch.ModifiedBy
	pa.modifiedAt = patch.ModifiedAt
	return nil
}

func (m *MemoryStore) FindDocumentByKey(ctx context.Context, paRequestID int64, idempotencyKey string) (*DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.docsByKey[docKey(paRequestID, idempotencyKey)]
	if !ok {
		return nil, nil
	}
	doc := m.docs[id]
	return &DocumentRef{ID: doc.id, DocumentUUID: doc.documentUUID}, nil
}

func (m *MemoryStore) InsertDocument(ctx context.Context, paRequestID int64, idempotencyKey, status, createdBy string) (*DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := docKey(paRequestID, idempotencyKey)
	if _, exists := m.docsByKey[key]; exists {
		return nil, ErrDuplicateDocument
	}

	m.docSeq++
	doc := &memDocument{
		id:             m.docSeq,
		documentUUID:   uuid.NewString(),
		paRequestID:    paRequestID,
		idempotencyKey: idempotencyKey,
		status:         status,
		createdBy:      createdBy,
	}
	m.docs[doc.id] = doc
	m.docsByKey[key] = doc.id

	return &DocumentRef{ID: doc.id, DocumentUUID: doc.documentUUID}, nil
}

func (m *MemoryStore) UpdateDocumentStatus(ctx context.Context, documentID int64, status, modifiedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.status = status
	return nil
}

func (m *MemoryStore) InsertDocumentText(ctx context.Context, documentID int64, text, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.texts[documentID] = text
	return nil
}

func (m *MemoryStore) FetchDocumentText(ctx context.Context, documentID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.texts[documentID]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (m *MemoryStore) InsertAuditLog(ctx context.Context, entry *AuditLogInsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AuditInsertErr != nil {
		return m.AuditInsertErr
	}

	m.auditSeq++
	m.audits = append(m.audits, memAuditEntry{
		paRequestID: entry.PaRequestID,
		entry: AuditLogEntry{
			ID:        m.auditSeq,
			Actor:     entry.Actor,
			Action:    entry.Action,
			Metadata:  entry.Metadata,
			CreatedAt: time.Now(),
		},
	})
	return nil
}

func (m *MemoryStore) FetchAuditLogs(ctx context.Context, requestUUID string, limit, page int) ([]AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]AuditLogEntry, 0, limit)
	id, ok := m.paByUUID[requestUUID]
	if !ok {
		return entries, nil // unresolved PA yields an empty page
	}

	matched := 0
	skip := page * limit
	for _, a := range m.audits {
		if a.paRequestID != id {
			continue
		}
		if matched < skip {
			matched++
			continue
		}
		matched++
		entries = append(entries, a.entry)
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func (m *MemoryStore) UpsertProcessingJob(ctx context.Context, jobUUID string, documentID int64, status string, attempt int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[jobUUID] = &memJob{
		jobUUID:    jobUUID,
		documentID: documentID,
		status:     status,
		attempt:    attempt,
		lastError:  lastError,
	}
	return nil
}

func (m *MemoryStore) InsertDeadLetterJob(ctx context.Context, jobUUID string, documentID int64, reason string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadLetters = append(m.deadLetters, jobUUID)
	return nil
}

func (m *MemoryStore) Close() {}

// Test inspection helpers.

// DocumentCount returns the number of persisted documents.
func (m *MemoryStore) DocumentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// TextCount returns the number of persisted document text rows.
func (m *MemoryStore) TextCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

// AuditCount returns the number of audit entries appended.
func (m *MemoryStore) AuditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audits)
}

// PaStatus returns the current status of a PA request, or "" if unknown.
func (m *MemoryStore) PaStatus(requestUUID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.paByUUID[requestUUID]
	if !ok {
		return ""
	}
	return m.paByID[id].status
}

// DocumentStatus returns the current status of a document, or "" if unknown.
func (m *MemoryStore) DocumentStatus(documentID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return ""
	}
	return doc.status
}

// JobStatus returns the recorded status and attempt count of a processing job.
func (m *MemoryStore) JobStatus(jobUUID string) (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobUUID]
	if !ok {
		return "", 0
	}
	return job.status, job.attempt
}

// DeadLetterCount returns the number of dead-lettered jobs.
func (m *MemoryStore) DeadLetterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deadLetters)
}

// SetEvidencePack attaches an evidence pack summary to a PA request.
func (m *MemoryStore) SetEvidencePack(paRequestID int64, pack EvidencePackSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packs[paRequestID] = &pack
}

var _ Store = (*MemoryStore)(nil)
