package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/service"
)

const contentTypeJSON = "application/json"

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the shared error envelope. Anything that is not
// a RequestError is logged and reported as internal_error.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	reqErr := models.AsRequestError(err)
	if reqErr.Reason == models.ReasonInternalError {
		logger.Error().Err(err).Msg("request failed")
	}
	for key, value := range reqErr.Headers {
		w.Header().Set(key, value)
	}
	writeJSON(w, reqErr.Status, reqErr.ToWire())
}

// writeResult renders a successful orchestrator result
func writeResult(w http.ResponseWriter, res *service.Result) {
	if res.Location != "" {
		w.Header().Set("Location", res.Location)
	}
	if res.Status == http.StatusNoContent || res.Payload == nil {
		w.WriteHeader(res.Status)
		return
	}
	writeJSON(w, res.Status, res.Payload)
}
