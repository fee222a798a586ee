package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

func openTestSQLite(t *testing.T) *SQLPostStore {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQLite(ctx, SQLiteOptions{Path: filepath.Join(t.TempDir(), "posts.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	require.NoError(t, s.Ping(ctx))

	got, err := s.FindBySourceID(ctx, "fb_123")
	require.NoError(t, err)
	assert.Nil(t, got)

	post := samplePost("fb_123")
	post.Meta.RawImages = []string{"https://cdn.example.com/a.jpg"}
	id, err := s.Insert(ctx, post)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err = s.FindBySourceID(ctx, "fb_123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, core.PostStatusPending, got.Status)
	assert.Equal(t, post.Meta, got.Meta)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_DuplicateSourceID(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	_, err := s.Insert(ctx, samplePost("fb_dup"))
	require.NoError(t, err)

	_, err = s.Insert(ctx, samplePost("fb_dup"))
	assert.ErrorIs(t, err, core.ErrDuplicateSourceID)
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := openTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
	assert.Equal(t, "sqlite", s.Dialect())
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteOptions{})
	assert.Error(t, err)
}
