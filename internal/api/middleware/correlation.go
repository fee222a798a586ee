package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/KatnessChen/MaraMap-Backend/internal/requestctx"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"

	// requestIDHeader is what most proxies set. It is used when the caller sent no correlation id.
	requestIDHeader = "X-Request-ID"

	maxCorrelationIDLen = 128
)

// CorrelationIDMiddleware gives every request an id, echoes it in the response
// and stores it in the request context.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = r.Header.Get(requestIDHeader)
		}
		if !validCorrelationID(id) {
			id = xid.New().String()
		}
		w.Header().Set(CorrelationIDHeader, id)

		ctx := requestctx.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validCorrelationID accepts short ids made of visible ASCII, so they are safe
// to log and to echo back in a header.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
