package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string

	findQuery   string
	insertQuery string

	// clientIDs makes the store generate ids and timestamps instead of the database.
	clientIDs bool

	isDuplicate func(error) bool
	schema      []string
}

var _ Store = (*SQLPostStore)(nil)

// SQLPostStore stores posts in a relational database through database/sql.
// Uniqueness of source_id is enforced by a UNIQUE constraint.
type SQLPostStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLPostStore(db *sql.DB, d dialect) *SQLPostStore {
	return &SQLPostStore{db: db, dialect: d, now: time.Now}
}

// DB exposes the underlying pool, e.g. for migrations.
func (s *SQLPostStore) DB() *sql.DB {
	return s.db
}

func (s *SQLPostStore) Dialect() string {
	return s.dialect.name
}

func (s *SQLPostStore) FindBySourceID(ctx context.Context, sourceID string) (*core.Post, error) {
	var (
		post    core.Post
		status  string
		rawMeta []byte
	)
	err := s.db.QueryRowContext(ctx, s.dialect.findQuery, sourceID).Scan(
		&post.ID,
		&post.SourceID,
		&post.RawText,
		&post.UserID,
		&status,
		&rawMeta,
		&post.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying post by source id: %w", err)
	}

	post.Status = core.PostStatus(status)
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &post.Meta); err != nil {
			return nil, fmt.Errorf("decoding post meta: %w", err)
		}
	}
	return &post, nil
}

func (s *SQLPostStore) Insert(ctx context.Context, post *core.Post) (string, error) {
	meta, err := json.Marshal(post.Meta)
	if err != nil {
		return "", fmt.Errorf("encoding post meta: %w", err)
	}

	if s.dialect.clientIDs {
		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, s.dialect.insertQuery,
			id, post.SourceID, post.RawText, post.UserID, string(post.Status), string(meta), s.now().UTC())
		if err != nil {
			return "", s.insertError(post.SourceID, err)
		}
		return id, nil
	}

	var id string
	err = s.db.QueryRowContext(ctx, s.dialect.insertQuery,
		post.SourceID, post.RawText, post.UserID, string(post.Status), string(meta),
	).Scan(&id)
	if err != nil {
		return "", s.insertError(post.SourceID, err)
	}
	return id, nil
}

func (s *SQLPostStore) insertError(sourceID string, err error) error {
	if s.dialect.isDuplicate(err) {
		return fmt.Errorf("source id %q: %w", sourceID, core.ErrDuplicateSourceID)
	}
	return fmt.Errorf("inserting post: %w", err)
}

func (s *SQLPostStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the posts table if it does not exist.
func (s *SQLPostStore) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range s.dialect.schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

func (s *SQLPostStore) Close() error {
	return s.db.Close()
}
