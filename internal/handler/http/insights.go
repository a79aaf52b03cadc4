package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/service"
)

// InsightsHandler exposes the author, category and usage services
type InsightsHandler struct {
	insights service.InsightsService
	logger   zerolog.Logger
}

// NewInsightsHandler creates a new insights handler
func NewInsightsHandler(insights service.InsightsService, logger zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		insights: insights,
		logger:   logger.With().Str("component", "insights_handler").Logger(),
	}
}

// Routes mounts /services. Every endpoint accepts POST only.
func (h *InsightsHandler) Routes(r chi.Router) {
	r.Route("/services", func(r chi.Router) {
		r.HandleFunc("/author", h.postOnly(h.insights.LookupAuthor))
		r.HandleFunc("/category", h.postOnly(h.insights.Categorize))
		r.HandleFunc("/usage", h.postOnly(h.insights.Usage))
	})
}

func (h *InsightsHandler) postOnly(op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, methodNotAllowed().WithHeader("Allow", http.MethodPost))
			return
		}
		serve(w, r, h.logger, op)
	}
}

func methodNotAllowed() *models.RequestError {
	return models.NewError(http.StatusMethodNotAllowed, models.ReasonUnsupportedMethod,
		"The method is not allowed for the requested URL", nil)
}
