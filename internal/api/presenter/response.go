package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/requestctx"
	"github.com/KatnessChen/MaraMap-Backend/internal/service"
)

type ErrorResponse struct {
	Error         string   `json:"error"`
	Details       []string `json:"details,omitempty"`
	CorrelationID string   `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int, details ...string) {
	resp := ErrorResponse{
		Error:         msg,
		Details:       details,
		CorrelationID: requestctx.CorrelationID(r.Context()),
	}
	JSON(w, r, resp, status)
}

// Err writes err with the status carried by a wrapped service.HTTPError.
// Server side failures only expose short, the cause stays in the logs.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	status := http.StatusBadRequest // generic default status
	var httpError *service.HTTPError
	if errors.As(err, &httpError) {
		status = httpError.StatusCode
	}
	if status >= http.StatusInternalServerError {
		Error(w, r, short, status)
		return
	}
	Error(w, r, short+": "+err.Error(), status)
}
