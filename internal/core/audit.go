package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "post.ingest")
	Action string `json:"action"`

	// Principal identifies who made the request
	Principal *Principal `json:"principal,omitempty"`

	// SourceID is the submission identity the action was about
	SourceID string `json:"source_id,omitempty"`

	// Outcome and PostID are set on success
	Outcome Outcome `json:"outcome,omitempty"`
	PostID  string  `json:"post_id,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
