package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/config"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

func TestInMemoryAuditor_Ring(t *testing.T) {
	a := NewInMemoryAuditor(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, a.Log(core.AuditEntry{ID: id, SourceID: "src-" + id}))
	}

	var ids []string
	for _, e := range a.Recent(0) {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "d", "e"}, ids)

	recent := a.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].ID)

	assert.Len(t, a.BySourceID("src-e"), 1)
	assert.Empty(t, a.BySourceID("src-a"))
}

func TestInMemoryAuditor_PartiallyFilled(t *testing.T) {
	a := NewInMemoryAuditor(10)
	require.NoError(t, a.Log(core.AuditEntry{ID: "only"}))
	assert.Len(t, a.Recent(0), 1)
}

func TestFileAuditor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	a, err := NewFileAuditor(path)
	require.NoError(t, err)

	require.NoError(t, a.Log(core.AuditEntry{ID: "1", Action: "post.ingest", Success: true}))
	require.NoError(t, a.Log(core.AuditEntry{ID: "2", Action: "post.ingest", Error: "boom"}))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Error(t, a.Log(core.AuditEntry{ID: "3"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []core.AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e core.AuditEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].Success)
	assert.Equal(t, "boom", got[1].Error)
}

func TestNew(t *testing.T) {
	a, err := New(config.AuditConfig{})
	require.NoError(t, err)
	assert.IsType(t, &NoopAuditor{}, a)

	a, err = New(config.AuditConfig{Enabled: true, Type: TypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryAuditor{}, a)

	_, err = New(config.AuditConfig{Enabled: true, Type: TypeFile})
	assert.Error(t, err)

	_, err = New(config.AuditConfig{Enabled: true, Type: "kafka"})
	assert.Error(t, err)
}
