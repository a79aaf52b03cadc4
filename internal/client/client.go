// Package client calls sibling services over HTTP with a bounded retry
// policy and folds every remote failure into a models.RequestError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

// DefaultURLTemplate resolves a service name to its base address
const DefaultURLTemplate = "http://{service}:5000"

const maxResponseBytes = 10 << 20

// RetryPolicy bounds how a call is repeated. Total attempts never exceed
// MaxRetries+1. Timeout applies to each attempt; zero means none.
type RetryPolicy struct {
	MaxRetries      int
	Backoff         time.Duration
	RetryableStatus int
	Timeout         time.Duration
}

// NoRetry performs exactly one attempt
func NoRetry(timeout time.Duration) RetryPolicy {
	return RetryPolicy{Timeout: timeout}
}

// Request describes one logical outbound call. Service is either a name
// resolved through the URL template or an absolute base URL.
type Request struct {
	Method  string
	Service string
	Path    string
	Header  http.Header
	Body    any
}

// RemoteResult is a successful peer response
type RemoteResult struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into v
func (r *RemoteResult) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode peer response: %w", err)
	}
	return nil
}

// Fields decodes the body as a JSON object
func (r *RemoteResult) Fields() (models.Fields, error) {
	out := models.Fields{}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Config holds client configuration
type Config struct {
	URLTemplate string
	HTTPClient  *http.Client
}

// Caller performs peer calls. *Client is the production implementation.
type Caller interface {
	Call(ctx context.Context, req Request, policy RetryPolicy) (*RemoteResult, error)
}

// Client issues calls to peer services
type Client struct {
	httpClient  *http.Client
	urlTemplate string
	metrics     *observability.Metrics
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// New creates a new peer client
func New(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	template := cfg.URLTemplate
	if template == "" {
		template = DefaultURLTemplate
	}
	return &Client{
		httpClient:  httpClient,
		urlTemplate: template,
		metrics:     metrics,
		logger:      logger.With().Str("component", "peer_client").Logger(),
		tracer:      otel.Tracer("bookshop-service/client"),
	}
}

// ResolveURL builds the absolute URL for service and path
func (c *Client) ResolveURL(service, path string) string {
	base := service
	if !strings.HasPrefix(service, "http://") && !strings.HasPrefix(service, "https://") {
		base = strings.ReplaceAll(c.urlTemplate, "{service}", service)
	}
	return strings.TrimRight(base, "/") + path
}

// Call performs req under policy. A 2xx response yields a RemoteResult; any
// other outcome yields a *models.RequestError and a nil result.
func (c *Client) Call(ctx context.Context, req Request, policy RetryPolicy) (*RemoteResult, error) {
	var payload []byte
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = raw
	}

	url := c.ResolveURL(req.Service, req.Path)
	start := time.Now()
	defer func() {
		c.metrics.PeerCallDuration.WithLabelValues(req.Service).Observe(time.Since(start).Seconds())
	}()

	var (
		resp    *attemptResult
		lastErr error
	)
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.PeerRetriesTotal.WithLabelValues(req.Service).Inc()
			c.logger.Warn().
				Str("service", req.Service).
				Str("url", url).
				Int("attempt", attempt+1).
				Msg("retrying peer call")
			if err := sleep(ctx, policy.Backoff); err != nil {
				lastErr = err
				break
			}
		}

		resp, lastErr = c.attempt(ctx, req, url, payload, policy.Timeout, attempt)
		if !retryable(resp, lastErr, policy) {
			break
		}
	}

	if lastErr != nil {
		c.metrics.PeerCallsTotal.WithLabelValues(req.Service, "transport_error").Inc()
		c.logger.Error().Err(lastErr).Str("service", req.Service).Str("url", url).Msg("peer unreachable")
		return nil, models.InternalError()
	}

	c.metrics.PeerCallsTotal.WithLabelValues(req.Service, strconv.Itoa(resp.status)).Inc()
	if resp.status >= 200 && resp.status < 300 {
		return &RemoteResult{Status: resp.status, Header: resp.header, Body: resp.body}, nil
	}

	translated := TranslateError(resp.status, resp.body)
	c.logger.Info().
		Str("service", req.Service).
		Str("url", url).
		Int("status", resp.status).
		Str("reason", translated.Reason).
		Msg("peer returned error")
	return nil, translated
}

type attemptResult struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) attempt(ctx context.Context, req Request, url string, payload []byte, timeout time.Duration, n int) (*attemptResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, req.Method+" "+req.Service,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", url),
			attribute.String("peer.service", req.Service),
			attribute.Int("bookshop.attempt", n+1),
		),
	)
	defer span.End()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	c.logger.Debug().Str("method", req.Method).Str("url", url).Int("attempt", n+1).Msg("calling peer")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s %s: %w", req.Method, url, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
	if httpResp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(httpResp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return &attemptResult{status: httpResp.StatusCode, header: httpResp.Header, body: raw}, nil
}

func retryable(resp *attemptResult, err error, policy RetryPolicy) bool {
	if err != nil {
		return true
	}
	return policy.RetryableStatus != 0 && resp.status == policy.RetryableStatus
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
