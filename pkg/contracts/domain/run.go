package domain

import "time"

// RunReport summarizes one aggregation run
type RunReport struct {
	RunID          string            `json:"run_id"`
	InputDir       string            `json:"input_dir"`
	Header         []string          `json:"header,omitempty"`
	HeaderSource   string            `json:"header_source,omitempty"`
	Documents      []DocumentReport  `json:"documents"`
	Skipped        []SkippedDocument `json:"skipped,omitempty"`
	RecordsWritten int               `json:"records_written"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// Duration is the wall time of the run
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DocumentReport describes what was taken from one document
type DocumentReport struct {
	Path           string `json:"path"`
	Label          string `json:"label"`
	Provenance     string `json:"provenance"`
	HeaderFound    bool   `json:"header_found"`
	HeaderRow      int    `json:"header_row"`
	TableEndRow    int    `json:"table_end_row"`
	RemarksRow     int    `json:"remarks_row"`
	Records        int    `json:"records"`
	Width          int    `json:"width"`
	SchemaMismatch bool   `json:"schema_mismatch,omitempty"`
}

// SkippedDocument is a document that could not be decoded
type SkippedDocument struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RunEventType names a progress event
type RunEventType string

const (
	EventRunStarted      RunEventType = "run:started"
	EventDocumentDone    RunEventType = "run:document"
	EventDocumentSkipped RunEventType = "run:skipped"
	EventRunCompleted    RunEventType = "run:completed"
	EventRunFailed       RunEventType = "run:failed"
)

// RunEvent is published while a run progresses
type RunEvent struct {
	Type      RunEventType `json:"type"`
	RunID     string       `json:"run_id"`
	Document  string       `json:"document,omitempty"`
	Records   int          `json:"records,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
