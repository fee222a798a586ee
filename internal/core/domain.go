package core

import "time"

// Principal represents the authenticated caller of a request.
// It is produced by the token verifier and lives for the duration of one request.
type Principal struct {
	// Subject is the identity provider's user id (sub claim).
	Subject string `json:"sub"`

	// Email is the verified email address of the caller (email claim).
	Email string `json:"email"`

	// Claims holds every other claim of the token. They are not interpreted by
	// the ingestion pipeline and are passed through as is.
	Claims map[string]any `json:"claims,omitempty"`
}

// PostStatus is the lifecycle state of a stored post.
type PostStatus string

const (
	// PostStatusPending is assigned to every freshly ingested post.
	PostStatusPending    PostStatus = "PENDING"
	PostStatusProcessing PostStatus = "PROCESSING"
	PostStatusDone       PostStatus = "DONE"
	PostStatusFailed     PostStatus = "FAILED"
)

// PostMeta is stored as a structured blob next to the post.
type PostMeta struct {
	OriginalURL string   `json:"original_url"`
	RawImages   []string `json:"raw_images"`
}

// Post is a single ingested submission as persisted in the posts table.
type Post struct {
	// ID is generated by the store on insert.
	ID string `json:"id"`

	// SourceID is the caller supplied identity of the submission.
	// At most one post exists per SourceID.
	SourceID string `json:"source_id"`

	RawText string     `json:"raw_text"`
	UserID  string     `json:"user_id"`
	Status  PostStatus `json:"status"`
	Meta    PostMeta   `json:"meta"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IngestionRequest is the validated input of a single ingest call.
type IngestionRequest struct {
	SourceID    string
	OriginalURL string
	RawText     string
	// RawImages is optional, nil is stored as an empty list.
	RawImages []string
}

// Outcome describes what an ingest call did.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
)

// IngestionResult is the result of a successful ingest call.
type IngestionResult struct {
	Outcome Outcome `json:"outcome"`
	PostID  string  `json:"post_id"`
}
