package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

// Mounter registers a group of routes
type Mounter interface {
	Routes(r chi.Router)
}

// RouterConfig holds everything the HTTP router serves
type RouterConfig struct {
	Mounts   []Mounter
	Ready    []ReadinessCheck
	Gatherer prometheus.Gatherer // nil means the default registry
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// NewRouter builds the HTTP handler for one process role
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(observeMiddleware(cfg.Metrics, logger))
	r.Use(recoverMiddleware(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, logger, models.NewError(http.StatusNotFound, models.ReasonNotFound,
			"The requested URL was not found on the server", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, logger, methodNotAllowed())
	})

	r.Get("/health", HealthHandler())
	r.Get("/ready", ReadyHandler(cfg.Ready, logger))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	for _, m := range cfg.Mounts {
		m.Routes(r)
	}
	return r
}
