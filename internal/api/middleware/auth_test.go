package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/auth"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/engine"
	"github.com/KatnessChen/MaraMap-Backend/internal/requestctx"
)

type fakeVerifier struct {
	calls int
	want  string
	err   error
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*core.Principal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if token != f.want {
		return nil, &auth.Error{Reason: auth.ReasonMalformed}
	}
	return &core.Principal{Subject: "user-1", Email: "u@example.com"}, nil
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "BEARER   abc  ", want: "abc", ok: true},
		{header: "", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer ", ok: false},
		{header: "Basic dXNlcjpwYXNz", ok: false},
		{header: "abc.def.ghi", ok: false},
		{header: "Bearer a b", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		verifierErr   error
		wantStatus    int
		wantVerifyHit bool
	}{
		{name: "Valid Token", header: "Bearer good", wantStatus: http.StatusOK, wantVerifyHit: true},
		{name: "Missing Header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "Wrong Scheme", header: "Token good", wantStatus: http.StatusUnauthorized},
		{name: "Empty Token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "Garbage Token", header: "Bearer garbage", wantStatus: http.StatusUnauthorized, wantVerifyHit: true},
		{
			name:          "Keys Unavailable",
			header:        "Bearer good",
			verifierErr:   &auth.Error{Reason: auth.ReasonKeyUnavailable, Err: errors.New("down")},
			wantStatus:    http.StatusUnauthorized,
			wantVerifyHit: true,
		},
		{
			name:          "Untyped Verifier Error",
			header:        "Bearer good",
			verifierErr:   errors.New("whatever"),
			wantStatus:    http.StatusUnauthorized,
			wantVerifyHit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{want: "good", err: tt.verifierErr}

			var reached bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				p, ok := auth.PrincipalFromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, "user-1", p.Subject)
				w.WriteHeader(http.StatusOK)
			})

			h := CorrelationIDMiddleware(Authenticate(verifier)(next))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantVerifyHit, verifier.calls == 1)
			assert.Equal(t, tt.wantStatus == http.StatusOK, reached)

			if tt.wantStatus == http.StatusUnauthorized {
				var body presenter.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				// the body never reveals why the token was rejected
				assert.Equal(t, UnauthorizedMessage, body.Error)
				assert.Empty(t, body.Details)
				assert.NotEmpty(t, body.CorrelationID)
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	h := CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestctx.CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "from-caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "from-caller", seen)
	assert.Equal(t, "from-caller", rec.Header().Get(CorrelationIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "from-caller", seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "from-proxy")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "from-proxy", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "has space")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "has space", seen)
}

func TestRequirePolicy(t *testing.T) {
	policy, err := engine.Compile(core.Condition{Key: "role", Operator: core.OpEqual, Value: "service_role"})
	require.NoError(t, err)

	var reached bool
	h := RequirePolicy(policy)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))
	serve := func(principal *core.Principal) int {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if principal != nil {
			req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.False(t, reached)

	assert.Equal(t, http.StatusForbidden, serve(&core.Principal{Subject: "u", Claims: map[string]any{"role": "authenticated"}}))
	assert.False(t, reached)

	assert.Equal(t, http.StatusOK, serve(&core.Principal{Subject: "u", Claims: map[string]any{"role": "service_role"}}))
	assert.True(t, reached)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
