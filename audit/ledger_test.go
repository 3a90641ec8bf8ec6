package audit

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"

	"paflow/storage/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	return NewLedger(mem, log.New(os.Stdout, "[TEST] ", log.LstdFlags)), mem
}

func TestAppendAndFetch(t *testing.T) {
	ledger, mem := newTestLedger(t)

	pa, err := mem.InsertPaRequest(context.Background(), store.PaStatusCreated, "alice")
	if err != nil {
		t.Fatalf("InsertPaRequest failed: %v", err)
	}

	ledger.Append(context.Background(), pa.ID, "USER:alice", ActionPaCreated, nil)
	ledger.Append(context.Background(), pa.ID, "WORKER", ActionDocumentProcessed, map[string]interface{}{
		"document_id": int64(1),
	})

	entries, err := ledger.Fetch(context.Background(), pa.RequestUUID, 20, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Action != ActionPaCreated || entries[1].Action != ActionDocumentProcessed {
		t.Errorf("actions = %q, %q; want creation then processed", entries[0].Action, entries[1].Action)
	}
	if entries[1].Metadata["document_id"] != int64(1) {
		t.Errorf("metadata document_id = %v, want 1", entries[1].Metadata["document_id"])
	}
}

func TestAppendSwallowsStoreFailure(t *testing.T) {
	ledger, mem := newTestLedger(t)
	mem.AuditInsertErr = errors.New("ledger down")

	// Append has no error return; the failure must not panic and must not
	// leave a partial entry behind.
	ledger.Append(context.Background(), 1, "USER:alice", ActionPaCreated, nil)

	if mem.AuditCount() != 0 {
		t.Errorf("entries recorded despite store failure: %d", mem.AuditCount())
	}
}

func TestFetchUnknownRequestYieldsEmptyPage(t *testing.T) {
	ledger, _ := newTestLedger(t)

	entries, err := ledger.Fetch(context.Background(), uuid.NewString(), 20, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}
