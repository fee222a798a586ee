package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

// auditReader is implemented by auditors that retain entries.
type auditReader interface {
	Recent(limit int) []core.AuditEntry
	BySourceID(sourceID string) []core.AuditEntry
}

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	reader, ok := s.auditor.(auditReader)
	if !ok {
		presenter.Error(w, r, "configured auditor does not retain entries", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")
	filterSourceID := q.Get("source_id")
	filterCorrelationID := q.Get("correlation_id")
	filterSubject := q.Get("sub")

	limit := 50
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEntry
	if filterSourceID != "" {
		entries = reader.BySourceID(filterSourceID)
	} else {
		entries = reader.Recent(0)
	}

	filtered := make([]core.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		if filterCorrelationID != "" && entry.ID != filterCorrelationID {
			continue
		}
		if filterSubject != "" && (entry.Principal == nil || entry.Principal.Subject != filterSubject) {
			continue
		}
		filtered = append(filtered, entry)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	presenter.JSON(w, r, filtered, http.StatusOK)
}

type KeyInfo struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	Use       string `json:"use,omitempty"`
	Type      string `json:"kty"`
}

type KeysResponse struct {
	JWKSURL string    `json:"jwks_url"`
	Keys    []KeyInfo `json:"keys"`
}

// handleAdminKeys lists the signing keys currently held by the resolver.
func (s *Server) handleAdminKeys(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		presenter.Error(w, r, "key resolver not configured", http.StatusNotImplemented)
		return
	}
	resp := KeysResponse{JWKSURL: s.resolver.URL(), Keys: []KeyInfo{}}
	for _, key := range s.resolver.Keys() {
		resp.Keys = append(resp.Keys, KeyInfo{
			KeyID:     key.KeyID,
			Algorithm: key.Algorithm,
			Use:       key.Use,
			Type:      key.KeyType(),
		})
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}
