// Package metrics provides Prometheus metrics for the ingestion service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maramap"

// JWKS refresh results.
const (
	RefreshOK          = "ok"
	RefreshError       = "error"
	RefreshRateLimited = "rate_limited"
)

var (
	// IngestTotal counts ingest calls by outcome: created, already_exists, persistence_failure or unauthenticated.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of ingest calls by outcome",
		},
		[]string{"outcome"},
	)

	// IngestDuration tracks how long the check-then-insert sequence takes.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Duration of ingest calls including store round trips",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// AuthFailures counts rejected requests by verification failure reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of rejected bearer tokens by reason",
		},
		[]string{"reason"},
	)

	// JWKSRefreshes counts outbound key set fetches by result.
	JWKSRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwks",
			Name:      "refreshes_total",
			Help:      "Total number of JWKS refresh attempts by result",
		},
		[]string{"result"},
	)

	// HTTPRequests counts handled requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	// HTTPDuration tracks request latency by method.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// TaskRuns counts background job executions by job and result ("ok", "failed").
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "runs_total",
			Help:      "Total number of background job runs by result",
		},
		[]string{"task", "result"},
	)

	// JWKSCachedKeys reports the number of signing keys currently cached.
	JWKSCachedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jwks",
			Name:      "cached_keys",
			Help:      "Number of signing keys currently held in the cache",
		},
	)
)

// RecordIngest records the outcome and duration of a single ingest call.
func RecordIngest(outcome string, took time.Duration) {
	IngestTotal.WithLabelValues(outcome).Inc()
	IngestDuration.Observe(took.Seconds())
}

// RecordAuthFailure records a rejected token.
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// RecordJWKSRefresh records the result of a key set refresh.
func RecordJWKSRefresh(result string) {
	JWKSRefreshes.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a handled request.
func RecordHTTPRequest(method string, status int, took time.Duration) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method).Observe(took.Seconds())
}

// RecordTaskRun records a finished background job run.
func RecordTaskRun(task string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	TaskRuns.WithLabelValues(task, result).Inc()
}
