package processing

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"paflow/audit"
	"paflow/config"
	"paflow/internal/messaging/consumer"
	"paflow/internal/messaging/dispatcher"
	"paflow/internal/models"
	"paflow/storage/store"
)

type fixture struct {
	worker     *Worker
	store      *store.MemoryStore
	dispatcher *dispatcher.MockDispatcher
	job        *models.ProcessingJob
	requestID  string
}

// failingProcessor fails every job with a fixed error.
type failingProcessor struct {
	err error
}

func (p *failingProcessor) Process(ctx context.Context, job *models.ProcessingJob) error {
	return p.err
}

func newFixture(t *testing.T, p Processor) *fixture {
	t.Helper()
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	mem := store.NewMemoryStore()
	disp := dispatcher.NewMockDispatcher()
	ledger := audit.NewLedger(mem, logger)

	pa, err := mem.InsertPaRequest(context.Background(), store.PaStatusProcessing, "alice")
	if err != nil {
		t.Fatalf("InsertPaRequest failed: %v", err)
	}
	doc, err := mem.InsertDocument(context.Background(), pa.ID, "key-1", store.DocStatusUploaded, "alice")
	if err != nil {
		t.Fatalf("InsertDocument failed: %v", err)
	}
	if err := mem.InsertDocumentText(context.Background(), doc.ID, "clinical summary", "alice"); err != nil {
		t.Fatalf("InsertDocumentText failed: %v", err)
	}

	if p == nil {
		p = NewLifecycleProcessor(mem, ledger, logger)
	}

	cfg := config.WorkerPoolConfig{
		Concurrency:        1,
		PollTimeout:        "1s",
		ConsumerRetryDelay: "10ms",
		ProcessTimeout:     "5s",
	}
	w := New(cfg, 3, logger, mem, ledger, nil, disp, p)

	return &fixture{
		worker:     w,
		store:      mem,
		dispatcher: disp,
		requestID:  pa.RequestUUID,
		job: &models.ProcessingJob{
			JobUUID:      uuid.NewString(),
			DocumentID:   doc.ID,
			DocumentUUID: doc.DocumentUUID,
			PaRequestID:  pa.ID,
			RequestUUID:  pa.RequestUUID,
		},
	}
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()
	entries, err := f.store.FetchAuditLogs(context.Background(), f.requestID, 50, 0)
	if err != nil {
		t.Fatalf("FetchAuditLogs failed: %v", err)
	}
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestHandleJobSuccess(t *testing.T) {
	f := newFixture(t, nil)

	acked := false
	f.worker.handleJob(context.Background(), 1, f.job, func(success bool) {
		acked = success
	})

	if !acked {
		t.Error("delivery was not acked")
	}
	if status, attempt := f.store.JobStatus(f.job.JobUUID); status != store.JobStatusSuccess || attempt != 1 {
		t.Errorf("job status = %q attempt %d, want %q attempt 1", status, attempt, store.JobStatusSuccess)
	}
	if got := f.store.DocumentStatus(f.job.DocumentID); got != store.DocStatusProcessed {
		t.Errorf("document status = %q, want %q", got, store.DocStatusProcessed)
	}
	if len(f.dispatcher.Jobs()) != 0 {
		t.Errorf("jobs re-enqueued on success: %d", len(f.dispatcher.Jobs()))
	}

	actions := f.auditActions(t)
	want := []string{audit.ActionDocumentProcessingStart, audit.ActionDocumentProcessed}
	if len(actions) != len(want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("audit action[%d] = %q, want %q", i, actions[i], want[i])
		}
	}
}

func TestHandleJobRetry(t *testing.T) {
	f := newFixture(t, &failingProcessor{err: errors.New("transient failure")})

	f.worker.handleJob(context.Background(), 1, f.job, func(bool) {})

	requeued := f.dispatcher.Jobs()
	if len(requeued) != 1 {
		t.Fatalf("re-enqueued jobs = %d, want 1", len(requeued))
	}
	if requeued[0].Attempt != 2 {
		t.Errorf("re-enqueued attempt = %d, want 2", requeued[0].Attempt)
	}
	if requeued[0].JobUUID != f.job.JobUUID {
		t.Errorf("re-enqueued job uuid = %q, want %q", requeued[0].JobUUID, f.job.JobUUID)
	}
	if status, _ := f.store.JobStatus(f.job.JobUUID); status != store.JobStatusFailed {
		t.Errorf("job status = %q, want %q", status, store.JobStatusFailed)
	}
	if f.store.DeadLetterCount() != 0 {
		t.Errorf("dead letters recorded before retries exhausted: %d", f.store.DeadLetterCount())
	}

	actions := f.auditActions(t)
	found := false
	for _, a := range actions {
		if a == audit.ActionJobRetried {
			found = true
		}
		if a == audit.ActionJobSentToDLQ {
			t.Errorf("job dead-lettered on first failure; actions = %v", actions)
		}
	}
	if !found {
		t.Errorf("missing %q audit entry; actions = %v", audit.ActionJobRetried, actions)
	}
}

func TestHandleJobExhaustedToDeadLetter(t *testing.T) {
	f := newFixture(t, &failingProcessor{err: errors.New("permanent failure")})
	f.job.Attempt = 3 // final delivery

	f.worker.handleJob(context.Background(), 1, f.job, func(bool) {})

	if len(f.dispatcher.Jobs()) != 0 {
		t.Errorf("exhausted job re-enqueued: %d", len(f.dispatcher.Jobs()))
	}
	dead := f.dispatcher.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("DLQ pushes = %d, want 1", len(dead))
	}
	if dead[0].JobUUID != f.job.JobUUID {
		t.Errorf("dead letter job uuid = %q, want %q", dead[0].JobUUID, f.job.JobUUID)
	}
	if dead[0].Error != "permanent failure" {
		t.Errorf("dead letter error = %q, want %q", dead[0].Error, "permanent failure")
	}
	if dead[0].FailedAt == 0 {
		t.Error("dead letter failed_at not set")
	}

	if f.store.DeadLetterCount() != 1 {
		t.Errorf("dead letter rows = %d, want 1", f.store.DeadLetterCount())
	}
	if status, attempt := f.store.JobStatus(f.job.JobUUID); status != store.JobStatusFailed || attempt != 3 {
		t.Errorf("job status = %q attempt %d, want %q attempt 3", status, attempt, store.JobStatusFailed)
	}
	if got := f.store.DocumentStatus(f.job.DocumentID); got != store.DocStatusFailed {
		t.Errorf("document status = %q, want %q", got, store.DocStatusFailed)
	}

	actions := f.auditActions(t)
	wantDLQ, wantFailed := false, false
	for _, a := range actions {
		switch a {
		case audit.ActionJobSentToDLQ:
			wantDLQ = true
		case audit.ActionDocumentProcessingFailed:
			wantFailed = true
		}
	}
	if !wantDLQ || !wantFailed {
		t.Errorf("audit actions = %v, want both %q and %q",
			actions, audit.ActionJobSentToDLQ, audit.ActionDocumentProcessingFailed)
	}
}

func TestHandleJobZeroAttemptTreatedAsFirst(t *testing.T) {
	f := newFixture(t, &failingProcessor{err: errors.New("boom")})
	f.job.Attempt = 0

	f.worker.handleJob(context.Background(), 1, f.job, func(bool) {})

	requeued := f.dispatcher.Jobs()
	if len(requeued) != 1 {
		t.Fatalf("re-enqueued jobs = %d, want 1", len(requeued))
	}
	if requeued[0].Attempt != 2 {
		t.Errorf("re-enqueued attempt = %d, want 2", requeued[0].Attempt)
	}
}

func TestRunConsumesQueuedJobs(t *testing.T) {
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	mem := store.NewMemoryStore()
	disp := dispatcher.NewMockDispatcher()
	ledger := audit.NewLedger(mem, logger)
	cons := consumer.NewMockConsumer(4, logger)

	pa, err := mem.InsertPaRequest(context.Background(), store.PaStatusProcessing, "alice")
	if err != nil {
		t.Fatalf("InsertPaRequest failed: %v", err)
	}
	doc, err := mem.InsertDocument(context.Background(), pa.ID, "key-1", store.DocStatusUploaded, "alice")
	if err != nil {
		t.Fatalf("InsertDocument failed: %v", err)
	}
	if err := mem.InsertDocumentText(context.Background(), doc.ID, "clinical summary", "alice"); err != nil {
		t.Fatalf("InsertDocumentText failed: %v", err)
	}

	cfg := config.WorkerPoolConfig{
		Concurrency:        2,
		PollTimeout:        "100ms",
		ConsumerRetryDelay: "10ms",
		ProcessTimeout:     "5s",
	}
	w := New(cfg, 3, logger, mem, ledger, cons, disp, NewLifecycleProcessor(mem, ledger, logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cons.Add(&models.ProcessingJob{
		JobUUID:      uuid.NewString(),
		DocumentID:   doc.ID,
		DocumentUUID: doc.DocumentUUID,
		PaRequestID:  pa.ID,
		RequestUUID:  pa.RequestUUID,
	})

	deadline := time.After(5 * time.Second)
	for mem.DocumentStatus(doc.ID) != store.DocStatusProcessed {
		select {
		case <-deadline:
			t.Fatalf("document never reached %q, status = %q",
				store.DocStatusProcessed, mem.DocumentStatus(doc.ID))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool did not stop after cancellation")
	}
}

func TestLifecycleProcessorMissingText(t *testing.T) {
	f := newFixture(t, nil)

	// A job whose document has no stored text fails processing.
	orphan := &models.ProcessingJob{
		JobUUID:     uuid.NewString(),
		DocumentID:  999,
		PaRequestID: f.job.PaRequestID,
		RequestUUID: f.job.RequestUUID,
	}
	// UpdateDocumentStatus on an unknown document fails first.
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	p := NewLifecycleProcessor(f.store, audit.NewLedger(f.store, logger), logger)
	if err := p.Process(context.Background(), orphan); err == nil {
		t.Fatal("Process should fail for unknown document")
	}
}
