package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/auth"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/validation"
)

const (
	MessageAccepted      = "Ingestion accepted"
	MessageAlreadyExists = "Already exists"
)

type IngestPayload struct {
	SourceID    string   `json:"source_id"`
	OriginalURL string   `json:"original_url"`
	RawText     string   `json:"raw_text"`
	RawImages   []string `json:"raw_images,omitempty"`
}

type IngestResponse struct {
	Message string `json:"message"`
	PostID  string `json:"postId"`
}

var errUnsupportedContentType = errors.New("unsupported content type")

// DecodePayload decodes a single JSON document into dest, rejecting unknown fields.
func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return errUnsupportedContentType
		}
	}

	// strict encoding for JSON
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if !errors.Is(err, io.EOF) || !allowEmpty {
			return err
		}
	}
	// ensure there's no extra data, including stray closing delimiters
	_, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return errors.New("extra data in request body")
}

// handleIngest records a submission for the authenticated caller.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		// Authenticate always runs first
		logger.Error().Msg("ingest reached without a principal")
		presenter.Error(w, r, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var payload IngestPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode ingest payload")

		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			presenter.Error(w, r, "request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, errUnsupportedContentType):
			presenter.Error(w, r, "unsupported content type", http.StatusBadRequest)
		default:
			presenter.Error(w, r, "invalid request payload", http.StatusBadRequest, err.Error())
		}
		return
	}

	req := core.IngestionRequest{
		SourceID:    payload.SourceID,
		OriginalURL: payload.OriginalURL,
		RawText:     payload.RawText,
		RawImages:   payload.RawImages,
	}
	if err := validation.ValidateIngestion(req); err != nil {
		logger.Warn().Err(err).Msg("ingest payload failed validation")

		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			presenter.Error(w, r, "validation failed", http.StatusBadRequest, fieldErrs.Messages()...)
			return
		}
		presenter.Error(w, r, "validation failed", http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.ingestService.Ingest(ctx, req, principal)
	if err != nil {
		presenter.Err(w, r, err, "failed to ingest post")
		return
	}

	message := MessageAccepted
	if result.Outcome == core.OutcomeAlreadyExists {
		message = MessageAlreadyExists
	}
	presenter.JSON(w, r, IngestResponse{
		Message: message,
		PostID:  result.PostID,
	}, http.StatusAccepted)
}
