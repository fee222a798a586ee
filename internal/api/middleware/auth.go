package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/auth"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/engine"
	"github.com/KatnessChen/MaraMap-Backend/internal/metrics"
)

// UnauthorizedMessage is the body of every 401, whatever the cause.
const UnauthorizedMessage = "unauthorized"

// Authenticate rejects requests without a valid bearer token before they reach next.
// The verified principal is stored in the request context.
func Authenticate(verifier core.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := log.Ctx(ctx)

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, auth.ReasonUnauthenticated, errors.New("missing or malformed Authorization header"))
				return
			}

			principal, err := verifier.Verify(ctx, token)
			if err != nil {
				reason := auth.ReasonUnauthenticated
				var authErr *auth.Error
				if errors.As(err, &authErr) {
					reason = authErr.Reason
				}
				reject(w, r, reason, err)
				return
			}

			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("sub", principal.Subject)
			})
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
		})
	}
}

// BearerToken extracts the token of an Authorization header value.
// The scheme is matched case-insensitively and the token must not be empty.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func reject(w http.ResponseWriter, r *http.Request, reason auth.Reason, err error) {
	metrics.RecordAuthFailure(string(reason))

	ev := log.Ctx(r.Context()).Warn()
	if reason == auth.ReasonKeyUnavailable {
		ev = log.Ctx(r.Context()).Error()
	}
	ev.Err(err).Str("reason", string(reason)).Msg("auth.rejected")

	w.Header().Set("WWW-Authenticate", `Bearer realm="maramap"`)
	presenter.Error(w, r, UnauthorizedMessage, http.StatusUnauthorized)
}

// RequirePolicy only lets principals satisfying policy through.
// It must run after Authenticate.
func RequirePolicy(policy *engine.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				reject(w, r, auth.ReasonUnauthenticated, errors.New("no principal in context"))
				return
			}
			result := policy.Evaluate(principal)
			if !result.Matched {
				logger := log.Ctx(r.Context())
				logger.Warn().Msg("admin access denied")
				if logger.GetLevel() <= zerolog.DebugLevel {
					logger.Debug().Msg("policy trace:\n" + engine.Explain(result))
				}
				presenter.Error(w, r, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
