package http

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/service"
)

// operation is an orchestrator call bound to its path parameters
type operation func(ctx context.Context, req *service.Request) (*service.Result, error)

// serve decodes the request, runs op and renders its outcome
func serve(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, op operation) {
	req, err := buildRequest(r)
	if err != nil {
		writeError(w, logger, err)
		return
	}
	res, err := op(r.Context(), req)
	if err != nil {
		writeError(w, logger.With().Str("request_id", req.RequestID).Logger(), err)
		return
	}
	writeResult(w, res)
}
