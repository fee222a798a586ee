package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

func newTestPostgREST(t *testing.T, handler http.HandlerFunc) *PostgRESTPostStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewPostgRESTPostStore(PostgRESTOptions{URL: srv.URL, ServiceKey: "service-key"}, srv.Client())
	require.NoError(t, err)
	return s
}

func TestPostgRESTStore_FindBySourceID(t *testing.T) {
	s := newTestPostgREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/posts", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("source_id") {
		case "eq.fb_123":
			_, _ = io.WriteString(w, `[{"id":"post-1","source_id":"fb_123","raw_text":"hi","user_id":"u","status":"PENDING",
				"meta":{"original_url":"https://example.com","raw_images":[]},"created_at":"2025-01-02T03:04:05.123456+00:00"}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})
	ctx := context.Background()

	got, err := s.FindBySourceID(ctx, "fb_123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "post-1", got.ID)
	assert.Equal(t, "https://example.com", got.Meta.OriginalURL)

	got, err = s.FindBySourceID(ctx, "fb_404")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgRESTStore_Insert(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	s := newTestPostgREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"post-2"}]`)
	})

	id, err := s.Insert(context.Background(), samplePost("fb_1"))
	require.NoError(t, err)
	assert.Equal(t, "post-2", id)

	body := <-bodies
	assert.Equal(t, "fb_1", body["source_id"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, map[string]any{
		"original_url": "https://facebook.com/posts/1",
		"raw_images":   []any{},
	}, body["meta"])
}

func TestPostgRESTStore_InsertErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantDup bool
	}{
		{name: "Conflict", status: http.StatusConflict, body: `{"code":"23505","message":"duplicate key"}`, wantDup: true},
		{name: "Unique Code On 400", status: http.StatusBadRequest, body: `{"code":"23505"}`, wantDup: true},
		{name: "Server Error", status: http.StatusInternalServerError, body: `{"message":"oops"}`},
		{name: "Forbidden", status: http.StatusForbidden, body: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestPostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := s.Insert(context.Background(), samplePost("fb_1"))
			require.Error(t, err)
			assert.Equal(t, tt.wantDup, errors.Is(err, core.ErrDuplicateSourceID))
		})
	}
}

func TestPostgRESTStore_InsertWithoutRepresentation(t *testing.T) {
	s := newTestPostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[]`)
	})
	id, err := s.Insert(context.Background(), samplePost("fb_1"))
	require.NoError(t, err)
	assert.Empty(t, id, "an empty id is passed on for the caller to reject")
}

func TestPostgRESTStore_Ping(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	s := newTestPostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})
	assert.NoError(t, s.Ping(context.Background()))
	healthy.Store(false)
	assert.Error(t, s.Ping(context.Background()))
}

func TestNewPostgRESTPostStore_Validation(t *testing.T) {
	_, err := NewPostgRESTPostStore(PostgRESTOptions{ServiceKey: "k"}, nil)
	assert.Error(t, err)
	_, err = NewPostgRESTPostStore(PostgRESTOptions{URL: "https://x.supabase.co"}, nil)
	assert.Error(t, err)
	_, err = NewPostgRESTPostStore(PostgRESTOptions{URL: "not a url", ServiceKey: "k"}, nil)
	assert.Error(t, err)
}
