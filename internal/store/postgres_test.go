package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

var (
	findPattern   = regexp.QuoteMeta("SELECT id, source_id, raw_text, user_id, status, meta, created_at")
	insertPattern = regexp.QuoteMeta("INSERT INTO posts (source_id, raw_text, user_id, status, meta)")

	postColumnNames = []string{"id", "source_id", "raw_text", "user_id", "status", "meta", "created_at"}
)

func newMockPostgres(t *testing.T) (*SQLPostStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresPostStore(db), mock
}

func TestPostgresStore_FindBySourceID(t *testing.T) {
	ctx := context.Background()

	t.Run("Absent", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery(findPattern).WithArgs("fb_1").WillReturnRows(sqlmock.NewRows(postColumnNames))

		got, err := s.FindBySourceID(ctx, "fb_1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Present", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		rows := sqlmock.NewRows(postColumnNames).
			AddRow("post-1", "fb_1", "hello", "user-1", "PENDING",
				[]byte(`{"original_url":"https://example.com","raw_images":["https://example.com/a.png"]}`), created)
		mock.ExpectQuery(findPattern).WithArgs("fb_1").WillReturnRows(rows)

		got, err := s.FindBySourceID(ctx, "fb_1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "post-1", got.ID)
		assert.Equal(t, core.PostStatusPending, got.Status)
		assert.Equal(t, []string{"https://example.com/a.png"}, got.Meta.RawImages)
		assert.Equal(t, created, got.CreatedAt)
	})

	t.Run("Error", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery(findPattern).WithArgs("fb_1").WillReturnError(errors.New("connection reset"))

		_, err := s.FindBySourceID(ctx, "fb_1")
		assert.Error(t, err)
	})
}

func TestPostgresStore_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("Created", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery(insertPattern).
			WithArgs("fb_1", "hello", "user-1", "PENDING", `{"original_url":"https://facebook.com/posts/1","raw_images":[]}`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("post-9"))

		id, err := s.Insert(ctx, samplePost("fb_1"))
		require.NoError(t, err)
		assert.Equal(t, "post-9", id)
	})

	t.Run("Unique Violation", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery(insertPattern).
			WillReturnError(&pq.Error{Code: pgUniqueViolation, Message: "duplicate key value violates unique constraint"})

		_, err := s.Insert(ctx, samplePost("fb_1"))
		assert.ErrorIs(t, err, core.ErrDuplicateSourceID)
	})

	t.Run("Other Error", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery(insertPattern).
			WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})

		_, err := s.Insert(ctx, samplePost("fb_1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrDuplicateSourceID)
	})
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS posts")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS posts_user_id_idx")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background()))
}
