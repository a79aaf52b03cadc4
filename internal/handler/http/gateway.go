package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

// GatewayConfig names the upstreams the gateway forwards to
type GatewayConfig struct {
	BooksUpstream     string
	CustomersUpstream string
	Timeout           time.Duration
	RateLimit         float64 // requests per second, 0 disables
	Burst             int
}

// Gateway is the public entry point proxying to the resource services
type Gateway struct {
	books     *httputil.ReverseProxy
	customers *httputil.ReverseProxy
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewGateway builds the reverse proxies for cfg
func NewGateway(cfg GatewayConfig, metrics *observability.Metrics, logger zerolog.Logger) (*Gateway, error) {
	g := &Gateway{
		metrics: metrics,
		logger:  logger.With().Str("component", "gateway").Logger(),
	}

	var err error
	if g.books, err = g.proxy(cfg.BooksUpstream, cfg.Timeout); err != nil {
		return nil, err
	}
	if g.customers, err = g.proxy(cfg.CustomersUpstream, cfg.Timeout); err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g, nil
}

func (g *Gateway) proxy(upstream string, timeout time.Duration) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", upstream)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	proxy := httputil.NewSingleHostReverseProxy(target)
	direct := proxy.Director
	proxy.Director = func(req *http.Request) {
		direct(req)
		req.Host = target.Host
	}
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Error().
			Err(err).
			Str("upstream", target.Host).
			Str("path", r.URL.Path).
			Msg("upstream request failed")
		writeError(w, zerolog.Nop(), models.InternalError())
	}
	return proxy, nil
}

// Routes mounts the proxied resource paths
func (g *Gateway) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(g.rateLimit)
		r.Handle("/books", g.books)
		r.Handle("/books/*", g.books)
		r.Handle("/customers", g.customers)
		r.Handle("/customers/*", g.customers)
	})
}

func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limiter != nil && !g.limiter.Allow() {
			if g.metrics != nil {
				g.metrics.GatewayRejectedTotal.Inc()
			}
			writeError(w, g.logger, tooManyRequests().WithHeader("Retry-After", "1"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tooManyRequests() *models.RequestError {
	return models.NewError(http.StatusTooManyRequests, models.ReasonRateLimited,
		"Too many requests, try again later", nil)
}
