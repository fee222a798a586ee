package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/metrics"
	"github.com/KatnessChen/MaraMap-Backend/internal/requestctx"
)

// probe endpoints are only logged when they fail
var quietPaths = map[string]bool{
	"/healthz":      true,
	"/readyz":       true,
	"/health-check": true,
	"/metrics":      true,
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// create a logger to wrap request info
		l := log.With().
			Str("correlation_id", requestctx.CorrelationID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger()

		ctx := l.WithContext(r.Context())
		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(ctx))

		took := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, ww.statusCode, took)

		if quietPaths[r.URL.Path] && ww.statusCode < 400 {
			return
		}

		// handlers may have added fields (e.g. sub) to the context logger
		logger := log.Ctx(ctx)
		ev := logger.Info()
		switch {
		case ww.statusCode >= 500:
			ev = logger.Error()
		case ww.statusCode >= 400:
			ev = logger.Warn()
		}
		ev.Int("status", ww.statusCode).
			Int64("bytes", ww.written).
			Str("user_agent", r.UserAgent()).
			Dur("duration", took).
			Msg("request.handled")
	})
}

func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Ctx(r.Context()).Error().
					Interface("panic", err).
					Bytes("stack", debug.Stack()).
					Msg("panic.recovered")

				presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
