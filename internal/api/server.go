package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/middleware"
	"github.com/KatnessChen/MaraMap-Backend/internal/audit"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/engine"
	"github.com/KatnessChen/MaraMap-Backend/internal/keys"
	"github.com/KatnessChen/MaraMap-Backend/internal/service"
	"github.com/KatnessChen/MaraMap-Backend/internal/tasks"
)

const DefaultMaxBodyBytes = 1 << 20

type Options struct {
	// MaxBodyBytes bounds ingest request bodies. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Admin guards the admin routes. Nil leaves them unmounted.
	Admin *engine.Policy
}

type Server struct {
	verifier      core.TokenVerifier
	ingestService *service.IngestService
	store         core.PostStore
	auditor       core.Auditor
	resolver      *keys.Resolver
	taskManager   *tasks.Manager
	opts          Options
}

// NewServer wires the HTTP surface. resolver and taskManager may be nil,
// their admin routes then answer 501.
func NewServer(
	verifier core.TokenVerifier,
	store core.PostStore,
	auditor core.Auditor,
	resolver *keys.Resolver,
	taskManager *tasks.Manager,
	opts Options,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		verifier:      verifier,
		ingestService: service.NewIngestService(store, auditor),
		store:         store,
		auditor:       auditor,
		resolver:      resolver,
		taskManager:   taskManager,
		opts:          opts,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealthCheck)
	mux.HandleFunc("GET "+LivenessRoute, s.handleLiveness)
	mux.HandleFunc("GET "+ReadinessRoute, s.handleReadiness)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.Handle("GET "+MetricsRoute, promhttp.Handler())

	authenticate := middleware.Authenticate(s.verifier)
	mux.Handle("POST "+IngestRoute, authenticate(http.HandlerFunc(s.handleIngest)))

	// admin routes
	if s.opts.Admin != nil {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
		adminMux.HandleFunc("GET "+ListKeysRoute, s.handleAdminKeys)
		adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
		adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
		adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
		mux.Handle(AdminParent, authenticate(middleware.RequirePolicy(s.opts.Admin)(adminMux)))
	}

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
