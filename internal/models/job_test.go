package models

import (
	"encoding/json"
	"testing"
)

// The job payload is a cross-service wire contract shared with queue
// consumers; its key names must stay stable.
func TestProcessingJobWireFormat(t *testing.T) {
	job := ProcessingJob{
		JobUUID:      "6f1f3f9a-0000-0000-0000-000000000001",
		DocumentID:   42,
		DocumentUUID: "6f1f3f9a-0000-0000-0000-000000000002",
		PaRequestID:  7,
		RequestUUID:  "6f1f3f9a-0000-0000-0000-000000000003",
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshaling job: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshaling job: %v", err)
	}

	for _, key := range []string{"job_uuid", "document_id", "document_uuid", "pa_request_id", "request_uuid"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing wire key %q in %s", key, data)
		}
	}
	// A first delivery omits the attempt counter entirely.
	if _, ok := raw["attempt"]; ok {
		t.Errorf("attempt should be omitted when zero: %s", data)
	}

	job.Attempt = 2
	data, err = json.Marshal(job)
	if err != nil {
		t.Fatalf("marshaling retried job: %v", err)
	}
	raw = nil
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshaling retried job: %v", err)
	}
	if raw["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", raw["attempt"])
	}
}

func TestDeadLetterJobWireFormat(t *testing.T) {
	dead := DeadLetterJob{
		ProcessingJob: ProcessingJob{
			JobUUID:    "6f1f3f9a-0000-0000-0000-000000000001",
			DocumentID: 42,
			Attempt:    3,
		},
		Error:    "processing failed",
		FailedAt: 1756500000,
	}

	data, err := json.Marshal(dead)
	if err != nil {
		t.Fatalf("marshaling dead letter: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshaling dead letter: %v", err)
	}
	for _, key := range []string{"job_uuid", "document_id", "attempt", "error", "failed_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing wire key %q in %s", key, data)
		}
	}
}
