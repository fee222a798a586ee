package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/api"
	"github.com/KatnessChen/MaraMap-Backend/internal/audit"
	"github.com/KatnessChen/MaraMap-Backend/internal/auth"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/engine"
	"github.com/KatnessChen/MaraMap-Backend/internal/keys"
	"github.com/KatnessChen/MaraMap-Backend/internal/store"
	"github.com/KatnessChen/MaraMap-Backend/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *testutil.IdP) {
	t.Helper()
	idp := testutil.NewIdP(t)
	resolver, err := keys.NewResolver(keys.Config{JWKSURL: idp.JWKSURL()})
	require.NoError(t, err)
	adminPolicy, err := engine.Compile(core.Condition{Expr: `sub == "admin-1"`})
	require.NoError(t, err)

	srv := api.NewServer(
		auth.NewVerifier(resolver),
		store.NewMemoryPostStore(),
		audit.NewInMemoryAuditor(10),
		resolver,
		nil,
		api.Options{Admin: adminPolicy},
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, idp
}

func TestClient_Ingest(t *testing.T) {
	ts, idp := newTestServer(t)
	token := idp.Mint(t, testutil.ECKeyID, testutil.Claims("user-alice", "alice@example.com"))

	c, err := New(ts.URL+"/", WithAuthToken(token), WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	payload := api.IngestPayload{
		SourceID:    "fb_123",
		OriginalURL: "https://facebook.com/posts/123",
		RawText:     "hello world",
	}
	first, correlation, err := c.Ingest(ctx, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, correlation)
	assert.True(t, Created(first))

	second, _, err := c.Ingest(ctx, payload)
	require.NoError(t, err)
	assert.False(t, Created(second))
	assert.Equal(t, first.PostID, second.PostID)

	audits, _, err := c.ListAudits(ctx, ListAuditsOpts{SourceID: "fb_123"})
	var apiErr APIError
	require.ErrorAs(t, err, &apiErr, "user-alice is not an admin")
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Nil(t, audits)
}

func TestClient_Errors(t *testing.T) {
	ts, idp := newTestServer(t)
	ctx := context.Background()

	anonymous, err := New(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	_, correlation, err := anonymous.Ingest(ctx, api.IngestPayload{SourceID: "fb_1"})
	var apiErr APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Message)
	assert.Equal(t, correlation, apiErr.CorrelationID)

	token := idp.Mint(t, testutil.ECKeyID, testutil.Claims("user-alice", "alice@example.com"))
	authed, err := New(ts.URL, WithAuthToken(token), WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	_, _, err = authed.Ingest(ctx, api.IngestPayload{SourceID: "fb_1"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Details)
}

func TestClient_AdminAndInfo(t *testing.T) {
	ts, idp := newTestServer(t)
	token := idp.Mint(t, testutil.ECKeyID, testutil.Claims("admin-1", "admin@example.com"))
	c, err := New(ts.URL, WithAuthToken(token), WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	health, _, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	_, err = c.Ready(ctx)
	require.NoError(t, err)

	info, _, err := c.Info(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, info.Version)

	keysResp, _, err := c.ListKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keysResp.Keys, 2)

	list, err := c.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = c.TriggerTask(ctx, "jwks.prefetch")
	var apiErr APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestURLBuilder(t *testing.T) {
	c, err := New("https://api.example.com/base/")
	require.NoError(t, err)

	got := c.url().
		setPath(api.LogsForTaskRoute).
		setPathParam("name", "jwks prefetch").
		addQueryParam("limit", 5).
		build()
	assert.Equal(t, "https://api.example.com/base/api/v1/admin/tasks/jwks%20prefetch/logs?limit=5", got)

	_, err = New("not-a-url")
	assert.Error(t, err)
}
