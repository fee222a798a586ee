package core

import (
	"context"
	"errors"
)

// ErrDuplicateSourceID is returned by a PostStore when a post with the same
// source id already exists. Every PostStore implementation must enforce this,
// the ingestion service relies on it to stay idempotent under concurrent
// duplicate submissions.
var ErrDuplicateSourceID = errors.New("post with this source_id already exists")

// TokenVerifier turns a raw bearer token into an authenticated Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// PostStore is the narrow contract the ingestion service has with the backing store.
type PostStore interface {
	// FindBySourceID returns the post with the given source id, or (nil, nil) if none exists.
	FindBySourceID(ctx context.Context, sourceID string) (*Post, error)

	// Insert stores a new post and returns its generated id.
	// It returns an error wrapping ErrDuplicateSourceID if the source id is taken.
	Insert(ctx context.Context, post *Post) (string, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
