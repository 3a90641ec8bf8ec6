package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"paflow/config"
)

// Postgres unique_violation error code
const pgUniqueViolation = "23505"

// PostgresStore implements the Store interface against PostgreSQL using a
// process-wide pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgresStore creates a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MinConns = int32(cfg.MinConnections)
	if d, err := time.ParseDuration(cfg.MaxIdleTime); err == nil {
		poolCfg.MaxConnIdleTime = d
	} else {
		logger.Printf("Warning: invalid database.max_idle_time '%s', using pgx default", cfg.MaxIdleTime)
	}
	if d, err := time.ParseDuration(cfg.MaxLifetime); err == nil {
		poolCfg.MaxConnLifetime = d
	} else {
		logger.Printf("Warning: invalid database.max_lifetime '%s', using pgx default", cfg.MaxLifetime)
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Printf("Database pool created (max_conns: %d, min_conns: %d)", cfg.MaxConnections, cfg.MinConnections)

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// InsertPaRequest creates a PA request; the database generates both the
// internal id and the external request_uuid.
func (s *PostgresStore) InsertPaRequest(ctx context.Context, status, createdBy string) (*PaRequestRef, error) {
	var ref PaRequestRef
	err := s.pool.QueryRow(ctx, `
		INSERT INTO core.pa_requests
			(status, created_by, modified_by)
		VALUES
			($1, $2, $2)
		RETURNING id, request_uuid`,
		status, createdBy,
	).Scan(&ref.ID, &ref.RequestUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert PA request: %w", err)
	}
	return &ref, nil
}

// ResolvePaRequest maps an external request UUID to its internal identity.
func (s *PostgresStore) ResolvePaRequest(ctx context.Context, requestUUID string) (*PaRequestRef, error) {
	var ref PaRequestRef
	err := s.pool.QueryRow(ctx, `
		SELECT id, request_uuid
		FROM core.pa_requests
		WHERE request_uuid = $1`,
		requestUUID,
	).Scan(&ref.ID, &ref.RequestUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PA request: %w", err)
	}
	return &ref, nil
}

// FetchPaRequestByUUID reads a PA request together with its most recent
// evidence pack, if one exists.
func (s *PostgresStore) FetchPaRequestByUUID(ctx context.Context, requestUUID string) (*PaRequestDetail, error) {
	var (
		detail        PaRequestDetail
		packID        *int64
		packStatus    *string
		packDecision  *string
		packCreatedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		WITH latest_evidence_pack AS (
			SELECT DISTINCT ON (pa_request_id)
				id, pa_request_id, status, decision, created_at
			FROM core.evidence_packs
			ORDER BY pa_request_id, created_at DESC
		)
		SELECT
			pr.request_uuid,
			pr.status,
			pr.created_at,
			lep.id,
			lep.status,
			lep.decision,
			lep.created_at
		FROM core.pa_requests pr
		LEFT JOIN latest_evidence_pack lep
			ON lep.pa_request_id = pr.id
		WHERE pr.request_uuid = $1`,
		requestUUID,
	).Scan(&detail.RequestUUID, &detail.Status, &detail.CreatedAt,
		&packID, &packStatus, &packDecision, &packCreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PA request: %w", err)
	}

	if packID != nil {
		detail.LatestEvidencePack = &EvidencePackSummary{
			ID:        *packID,
			Status:    *packStatus,
			Decision:  packDecision,
			CreatedAt: *packCreatedAt,
		}
	}
	return &detail, nil
}

// UpdatePaRequest applies a sparse patch: only supplied fields are written.
func (s *PostgresStore) UpdatePaRequest(ctx context.Context, paRequestID int64, patch PaRequestPatch) error {
	var err error
	if patch.Status != nil {
		_, err = s.pool.Exec(ctx, `
			UPDATE core.pa_requests
			SET status = $2, modified_by = $3, modified_at = $4
			WHERE id = $1`,
			paRequestID, *patch.Status, patch.ModifiedBy, patch.ModifiedAt)
	} else {
		_, err = s.pool.Exec(ctx, `
			UPDATE core.pa_requests
			SET modified_by = $2, modified_at = $3
			WHERE id = $1`,
			paRequestID, patch.ModifiedBy, patch.ModifiedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to update PA request %d: %w", paRequestID, err)
	}
	return nil
}

// FindDocumentByKey looks up a document by its idempotency key scoped to a
// PA request. Returns (nil, nil) when no document exists.
func (s *PostgresStore) FindDocumentByKey(ctx context.Context, paRequestID int64, idempotencyKey string) (*DocumentRef, error) {
	var ref DocumentRef
	err := s.pool.QueryRow(ctx, `
		SELECT id, document_uuid
		FROM core.documents
		WHERE pa_request_id = $1
		  AND idempotency_key = $2`,
		paRequestID, idempotencyKey,
	).Scan(&ref.ID, &ref.DocumentUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document by idempotency key: %w", err)
	}
	return &ref, nil
}

// InsertDocument creates a document row. A unique violation on
// (pa_request_id, idempotency_key) is reported as ErrDuplicateDocument so
// callers can recover the idempotent response.
func (s *PostgresStore) InsertDocument(ctx context.Context, paRequestID int64, idempotencyKey, status, createdBy string) (*DocumentRef, error) {
	var ref DocumentRef
	err := s.pool.QueryRow(ctx, `
		INSERT INTO core.documents
			(pa_request_id, idempotency_key, status, created_by, modified_by)
		VALUES
			($1, $2, $3, $4, $4)
		RETURNING id, document_uuid`,
		paRequestID, idempotencyKey, status, createdBy,
	).Scan(&ref.ID, &ref.DocumentUUID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateDocument
		}
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return &ref, nil
}

// UpdateDocumentStatus updates the lifecycle status of a document.
func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, documentID int64, status, modifiedBy string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE core.documents
		SET status = $2, modified_by = $3, modified_at = NOW()
		WHERE id = $1`,
		documentID, status, modifiedBy)
	if err != nil {
		return fmt.Errorf("failed to update document %d status: %w", documentID, err)
	}
	return nil
}

// InsertDocumentText stores the sensitive payload in the phi schema, apart
// from document metadata. Written once, never updated.
func (s *PostgresStore) InsertDocumentText(ctx context.Context, documentID int64, text, createdBy string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO phi.document_text
			(document_id, text, created_by, modified_by)
		VALUES
			($1, $2, $3, $3)`,
		documentID, text, createdBy)
	if err != nil {
		return fmt.Errorf("failed to insert document text: %w", err)
	}
	return nil
}

// FetchDocumentText reads the sensitive payload for a document.
func (s *PostgresStore) FetchDocumentText(ctx context.Context, documentID int64) (string, error) {
	var text string
	err := s.pool.QueryRow(ctx, `
		SELECT text
		FROM phi.document_text
		WHERE document_id = $1`,
		documentID,
	).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch document text: %w", err)
	}
	return text, nil
}

// InsertAuditLog appends an audit ledger row.
func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry *AuditLogInsert) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize audit metadata: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO core.audit_logs
			(pa_request_id, actor, action, metadata, created_by, modified_by)
		VALUES
			($1, $2, $3, $4, $5, $5)`,
		entry.PaRequestID, entry.Actor, entry.Action, metadata, entry.Actor)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// FetchAuditLogs returns one page of audit entries for a PA request,
// ordered by creation time. An unresolved request UUID yields an empty page
// rather than an error.
func (s *PostgresStore) FetchAuditLogs(ctx context.Context, requestUUID string, limit, page int) ([]AuditLogEntry, error) {
	offset := page * limit

	rows, err := s.pool.Query(ctx, `
		WITH pa_request AS (
			SELECT id
			FROM core.pa_requests
			WHERE request_uuid = $1
		)
		SELECT al.id, al.actor, al.action, al.metadata, al.created_at
		FROM core.audit_logs al
		JOIN pa_request pr
			ON al.pa_request_id = pr.id
		ORDER BY al.created_at ASC
		LIMIT $2 OFFSET $3`,
		requestUUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditLogEntry, 0, limit)
	for rows.Next() {
		var (
			e   AuditLogEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Metadata); err != nil {
				s.logger.Printf("Warning: audit log %d has malformed metadata: %v", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log rows: %w", err)
	}
	return entries, nil
}

// UpsertProcessingJob records the current state of a queue job, keyed by
// job_uuid, so redeliveries update the same row.
func (s *PostgresStore) UpsertProcessingJob(ctx context.Context, jobUUID string, documentID int64, status string, attempt int, lastError string) error {
	var lastErr *string
	if lastError != "" {
		lastErr = &lastError
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO core.processing_jobs
			(job_uuid, document_id, status, attempt_count, last_error, created_by, modified_by)
		VALUES
			($1, $2, $3, $4, $5, 'worker', 'worker')
		ON CONFLICT (job_uuid)
		DO UPDATE SET
			status = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			last_error = EXCLUDED.last_error,
			modified_at = NOW(),
			modified_by = 'worker'`,
		jobUUID, documentID, status, attempt, lastErr)
	if err != nil {
		return fmt.Errorf("failed to upsert processing job %s: %w", jobUUID, err)
	}
	return nil
}

// InsertDeadLetterJob records a job that exhausted its retries.
func (s *PostgresStore) InsertDeadLetterJob(ctx context.Context, jobUUID string, documentID int64, reason string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO core.dead_letter_jobs
			(job_uuid, document_id, reason, payload, created_by, modified_by)
		VALUES
			($1, $2, $3, $4, 'worker', 'worker')`,
		jobUUID, documentID, reason, payload)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter job %s: %w", jobUUID, err)
	}
	return nil
}

// Close drains the connection pool.
func (s *PostgresStore) Close() {
	s.logger.Println("Closing database pool...")
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil) // Compile-time interface check
