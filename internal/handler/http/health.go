package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ReadinessCheck is one named dependency probed by /ready
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler returns a liveness check (always OK)
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}

// ReadyHandler runs every check and reports 503 if any fails
func ReadyHandler(checks []ReadinessCheck, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ready", http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Error().Err(err).Str("check", c.Name).Msg("readiness check failed")
				results[c.Name] = "failed"
				status, code = "unavailable", http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}

		writeJSON(w, code, map[string]any{
			"status": status,
			"checks": results,
		})
	}
}
