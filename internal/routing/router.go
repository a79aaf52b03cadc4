// Package routing decides whether a book request is served by this shard or
// by the sibling that owns its language.
package routing

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

// DefaultServiceTemplate names the service that owns a shard
const DefaultServiceTemplate = "{shard}-books-service"

// Decision is the outcome of Route
type Decision struct {
	Local  bool
	Shard  string
	Target string
	Path   string
}

// Config describes this shard's place in the federation
type Config struct {
	Local           string
	Known           []string
	Fallback        string
	ServiceTemplate string
}

// Router routes by shard key
type Router struct {
	cfg     Config
	caller  client.Caller
	policy  client.RetryPolicy
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewRouter creates a router. policy is used for every delegated call.
func NewRouter(cfg Config, caller client.Caller, policy client.RetryPolicy, metrics *observability.Metrics, logger zerolog.Logger) *Router {
	if cfg.ServiceTemplate == "" {
		cfg.ServiceTemplate = DefaultServiceTemplate
	}
	return &Router{
		cfg:     cfg,
		caller:  caller,
		policy:  policy,
		metrics: metrics,
		logger:  logger.With().Str("component", "shard_router").Str("shard", cfg.Local).Logger(),
	}
}

// LocalShard returns this shard's key
func (r *Router) LocalShard() string { return r.cfg.Local }

// IsFallback reports whether this shard resolves misses by probing siblings
func (r *Router) IsFallback() bool {
	return r.cfg.Fallback != "" && strings.EqualFold(r.cfg.Local, r.cfg.Fallback)
}

// IsLocal reports whether key is served here
func (r *Router) IsLocal(key string) bool {
	return key == "" || strings.EqualFold(key, r.cfg.Local)
}

// IsKnown reports whether key names a configured shard
func (r *Router) IsKnown(key string) bool {
	return slices.ContainsFunc(r.cfg.Known, func(k string) bool { return strings.EqualFold(k, key) })
}

// ServiceFor returns the service name owning key
func (r *Router) ServiceFor(key string) string {
	return strings.ReplaceAll(r.cfg.ServiceTemplate, "{shard}", strings.ToLower(key))
}

// Route decides where a request for key and path is served. Unknown keys
// stay local; this shard has no authority to send them anywhere.
func (r *Router) Route(key, path string) Decision {
	if r.IsLocal(key) || !r.IsKnown(key) {
		return Decision{Local: true, Shard: r.cfg.Local, Path: path}
	}
	shard := strings.ToLower(key)
	return Decision{Shard: shard, Target: r.ServiceFor(shard), Path: path}
}

// ForShard targets shard directly, without consulting the known list. An
// empty or local shard stays local.
func (r *Router) ForShard(shard, path string) Decision {
	if r.IsLocal(shard) {
		return Decision{Local: true, Shard: r.cfg.Local, Path: path}
	}
	shard = strings.ToLower(shard)
	return Decision{Shard: shard, Target: r.ServiceFor(shard), Path: path}
}

// Delegate forwards a request to the shard chosen by d
func (r *Router) Delegate(ctx context.Context, d Decision, method string, header http.Header, body any) (*client.RemoteResult, error) {
	r.metrics.DelegationsTotal.WithLabelValues(d.Shard, "delegate").Inc()
	r.logger.Debug().Str("target", d.Target).Str("method", method).Str("path", d.Path).Msg("delegating to shard")

	return r.caller.Call(ctx, client.Request{
		Method:  method,
		Service: d.Target,
		Path:    requestPath(d),
		Header:  header,
		Body:    body,
	}, r.policy)
}

func requestPath(d Decision) string {
	if d.Path == "" {
		return "/"
	}
	return d.Path
}

// Probe asks every other known shard for path in configured order. The
// first answer that is not a 404, success or error, is returned together
// with the shard that gave it. When every shard misses the result is a
// local not_found built by notFound.
func (r *Router) Probe(ctx context.Context, path string, header http.Header, notFound func() error) (*client.RemoteResult, string, error) {
	for _, shard := range r.cfg.Known {
		if strings.EqualFold(shard, r.cfg.Local) {
			continue
		}
		shard = strings.ToLower(shard)
		r.metrics.DelegationsTotal.WithLabelValues(shard, "probe").Inc()

		res, err := r.caller.Call(ctx, client.Request{
			Method:  http.MethodGet,
			Service: r.ServiceFor(shard),
			Path:    path,
			Header:  header,
		}, r.policy)
		if err == nil {
			return res, shard, nil
		}
		if models.AsRequestError(err).Status != http.StatusNotFound {
			r.logger.Info().Str("probed", shard).Err(err).Msg("probe stopped on error")
			return nil, shard, err
		}
	}
	return nil, "", notFound()
}
