package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/buildinfo"
)

// TimestampLayout is UTC with millisecond precision, e.g. 2025-01-02T03:04:05.000Z
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type HealthCheckResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// handleHealthCheck reports that the process is up. It never touches the store.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, HealthCheckResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(TimestampLayout),
	}, http.StatusOK)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReadiness reports whether the store can be reached.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("store is not reachable")
		presenter.Error(w, r, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}
