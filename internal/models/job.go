package models

// ProcessingJob is the queue message describing a document to be processed.
// Produced by the API service, consumed by the worker. The JSON field names
// are the wire contract and must stay stable.
type ProcessingJob struct {
	JobUUID      string `json:"job_uuid"`
	DocumentID   int64  `json:"document_id"`   // internal id
	DocumentUUID string `json:"document_uuid"` // external id
	PaRequestID  int64  `json:"pa_request_id"` // internal id
	RequestUUID  string `json:"request_uuid"`  // external id

	// Attempt counts deliveries; zero-valued on first enqueue, incremented
	// by the worker when it re-enqueues for retry.
	Attempt int `json:"attempt,omitempty"`
}

// DeadLetterJob wraps a job that exhausted its retries for the DLQ.
type DeadLetterJob struct {
	ProcessingJob
	Error    string `json:"error"`
	FailedAt int64  `json:"failed_at"` // unix seconds
}
