package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/config"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()

	s, err := Build(ctx, config.StoreConfig{Type: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryPostStore{}, s)

	s, err = Build(ctx, config.StoreConfig{
		Type: config.StoreSQLite,
		Options: map[string]any{
			"path":         filepath.Join(t.TempDir(), "posts.db"),
			"auto_migrate": "true",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// the schema exists, so a lookup succeeds
	got, err := s.FindBySourceID(ctx, "nothing")
	require.NoError(t, err)
	assert.Nil(t, got)

	s, err = Build(ctx, config.StoreConfig{
		Type:    config.StorePostgREST,
		Options: map[string]any{"url": "https://project.supabase.co", "service_key": "k", "timeout": "3s"},
	})
	require.NoError(t, err)
	assert.IsType(t, &PostgRESTPostStore{}, s)

	_, err = Build(ctx, config.StoreConfig{Type: config.StorePostgres})
	assert.Error(t, err, "dsn is required")

	_, err = Build(ctx, config.StoreConfig{Type: "cassandra"})
	assert.Error(t, err)
}
