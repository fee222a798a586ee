package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/audit"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/metrics"
	"github.com/KatnessChen/MaraMap-Backend/internal/requestctx"
	"github.com/KatnessChen/MaraMap-Backend/internal/store"
)

// fakeStore records calls and lets tests inject results.
type fakeStore struct {
	mu sync.Mutex

	existing  *core.Post
	findErr   error
	insertID  string
	insertErr error

	finds    int
	inserted []*core.Post
}

func (f *fakeStore) FindBySourceID(context.Context, string) (*core.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	return f.existing, f.findErr
}

func (f *fakeStore) Insert(_ context.Context, post *core.Post) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, post)
	return f.insertID, f.insertErr
}

func (f *fakeStore) Ping(context.Context) error { return nil }

var alice = &core.Principal{Subject: "user-alice", Email: "alice@example.com"}

func fbRequest() core.IngestionRequest {
	return core.IngestionRequest{
		SourceID:    "fb_123",
		OriginalURL: "https://facebook.com/posts/123",
		RawText:     "hello world",
	}
}

func TestIngestService_Ingest(t *testing.T) {
	tests := []struct {
		name        string
		store       *fakeStore
		wantResult  *core.IngestionResult
		wantFailure bool
		wantInserts int
	}{
		{
			name:        "Created",
			store:       &fakeStore{insertID: "post-1"},
			wantResult:  &core.IngestionResult{Outcome: core.OutcomeCreated, PostID: "post-1"},
			wantInserts: 1,
		},
		{
			name:        "Already Exists",
			store:       &fakeStore{existing: &core.Post{ID: "post-0", SourceID: "fb_123"}},
			wantResult:  &core.IngestionResult{Outcome: core.OutcomeAlreadyExists, PostID: "post-0"},
			wantInserts: 0,
		},
		{
			name:        "Read Failure Skips Insert",
			store:       &fakeStore{findErr: errors.New("connection refused")},
			wantFailure: true,
			wantInserts: 0,
		},
		{
			name:        "Insert Failure",
			store:       &fakeStore{insertErr: errors.New("disk full")},
			wantFailure: true,
			wantInserts: 1,
		},
		{
			name:        "Lost Race",
			store:       &fakeStore{insertErr: fmt.Errorf("x: %w", core.ErrDuplicateSourceID)},
			wantFailure: true,
			wantInserts: 1,
		},
		{
			name:        "Empty ID",
			store:       &fakeStore{insertID: ""},
			wantFailure: true,
			wantInserts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := audit.NewInMemoryAuditor(10)
			svc := NewIngestService(tt.store, auditor)
			ctx := requestctx.WithCorrelationID(context.Background(), "corr-1")

			got, err := svc.Ingest(ctx, fbRequest(), alice)

			assert.Len(t, tt.store.inserted, tt.wantInserts)
			assert.Equal(t, 1, tt.store.finds)

			entries := auditor.Recent(0)
			require.Len(t, entries, 1)
			assert.Equal(t, "corr-1", entries[0].ID)
			assert.Equal(t, ActionIngest, entries[0].Action)
			assert.Equal(t, "fb_123", entries[0].SourceID)

			if tt.wantFailure {
				require.Error(t, err)
				assert.Nil(t, got)

				var ingestErr *IngestError
				require.ErrorAs(t, err, &ingestErr)
				assert.Equal(t, KindPersistenceFailure, ingestErr.Kind)

				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

				assert.False(t, entries[0].Success)
				assert.NotEmpty(t, entries[0].Error)
				return
			}

			require.NoError(t, err)
			if diff := cmp.Diff(tt.wantResult, got); diff != "" {
				t.Errorf("Ingest() mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, entries[0].Success)
			assert.Equal(t, got.PostID, entries[0].PostID)
		})
	}
}

func TestIngestService_InsertedRecord(t *testing.T) {
	fs := &fakeStore{insertID: "post-1"}
	svc := NewIngestService(fs, audit.NewNoopAuditor())

	req := fbRequest()
	req.RawImages = []string{"https://cdn.example.com/1.jpg"}
	_, err := svc.Ingest(context.Background(), req, alice)
	require.NoError(t, err)

	want := &core.Post{
		SourceID: "fb_123",
		RawText:  "hello world",
		UserID:   "user-alice",
		Status:   core.PostStatusPending,
		Meta: core.PostMeta{
			OriginalURL: "https://facebook.com/posts/123",
			RawImages:   []string{"https://cdn.example.com/1.jpg"},
		},
	}
	require.Len(t, fs.inserted, 1)
	if diff := cmp.Diff(want, fs.inserted[0]); diff != "" {
		t.Errorf("inserted post mismatch (-want +got):\n%s", diff)
	}
}

func TestIngestService_NilImagesStoredAsEmpty(t *testing.T) {
	fs := &fakeStore{insertID: "post-1"}
	svc := NewIngestService(fs, audit.NewNoopAuditor())

	_, err := svc.Ingest(context.Background(), fbRequest(), alice)
	require.NoError(t, err)
	require.Len(t, fs.inserted, 1)
	assert.NotNil(t, fs.inserted[0].Meta.RawImages)
	assert.Empty(t, fs.inserted[0].Meta.RawImages)
}

func TestIngestService_RequiresPrincipal(t *testing.T) {
	fs := &fakeStore{}
	svc := NewIngestService(fs, audit.NewNoopAuditor())

	unauthenticated := promtest.ToFloat64(metrics.IngestTotal.WithLabelValues(OutcomeUnauthenticated))
	persistence := promtest.ToFloat64(metrics.IngestTotal.WithLabelValues(string(KindPersistenceFailure)))

	_, err := svc.Ingest(context.Background(), fbRequest(), nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Zero(t, fs.finds)

	assert.Equal(t, unauthenticated+1, promtest.ToFloat64(metrics.IngestTotal.WithLabelValues(OutcomeUnauthenticated)))
	assert.Equal(t, persistence, promtest.ToFloat64(metrics.IngestTotal.WithLabelValues(string(KindPersistenceFailure))),
		"a missing principal is not a store failure")
}

func TestFailureOutcome(t *testing.T) {
	assert.Equal(t, string(KindPersistenceFailure), failureOutcome(persistenceFailure(OpFind, errors.New("down"))))
	assert.Equal(t, OutcomeUnauthenticated, failureOutcome(httpError(http.StatusUnauthorized, errors.New("no principal"))))
}

func TestIngestService_Idempotent(t *testing.T) {
	s := store.NewMemoryPostStore()
	svc := NewIngestService(s, audit.NewNoopAuditor())
	ctx := context.Background()

	first, err := svc.Ingest(ctx, fbRequest(), alice)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCreated, first.Outcome)

	// a different caller resubmitting the same source id gets the same post
	bob := &core.Principal{Subject: "user-bob", Email: "bob@example.com"}
	second, err := svc.Ingest(ctx, fbRequest(), bob)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAlreadyExists, second.Outcome)
	assert.Equal(t, first.PostID, second.PostID)

	stored, err := s.FindBySourceID(ctx, "fb_123")
	require.NoError(t, err)
	assert.Equal(t, "user-alice", stored.UserID)
	assert.Equal(t, 1, s.Len())
}

func TestIngestService_ConcurrentDuplicates(t *testing.T) {
	s := store.NewMemoryPostStore()
	svc := NewIngestService(s, audit.NewNoopAuditor())
	ctx := context.Background()

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[string]struct{})
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Ingest(ctx, fbRequest(), alice)
			if err != nil {
				var ingestErr *IngestError
				assert.ErrorAs(t, err, &ingestErr)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Outcome == core.OutcomeCreated {
				created++
			}
			ids[res.PostID] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, s.Len())
}
