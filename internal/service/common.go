package service

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/config"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/messaging"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
	"github.com/cypherlabdev/bookshop-service/internal/repository"
)

// Policies are the retry policies used for dependency calls
type Policies struct {
	// Dependency covers author, category and usage calls
	Dependency client.RetryPolicy
	// BookCheck covers the book lookups made while placing an order
	BookCheck client.RetryPolicy
}

// Peers names the services an orchestrator calls
type Peers struct {
	BooksService    string
	InsightsService string
	UsageURL        string
}

// Dependencies wires an orchestrator to its collaborators
type Dependencies struct {
	Store     repository.Store
	Caller    client.Caller
	Faults    fault.Policy
	Publisher messaging.Publisher
	Rules     config.RulesConfig
	Policies  Policies
	Peers     Peers
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// DefaultPolicies derives the retry policies from client configuration
func DefaultPolicies(cfg config.ClientConfig) Policies {
	return Policies{
		Dependency: client.NoRetry(cfg.DependencyTimeout),
		BookCheck: client.RetryPolicy{
			MaxRetries:      cfg.MaxRetries,
			Backoff:         cfg.Backoff,
			RetryableStatus: http.StatusServiceUnavailable,
			Timeout:         cfg.DependencyTimeout,
		},
	}
}

func (d *Dependencies) withDefaults() {
	if d.Faults == nil {
		d.Faults = fault.Never{}
	}
	if d.Publisher == nil {
		d.Publisher = messaging.NoopPublisher{}
	}
}

// track records the outcome of one orchestrated operation
func (d *Dependencies) track(resource, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = models.AsRequestError(err).Reason
	}
	d.Metrics.OperationsTotal.WithLabelValues(resource, operation, outcome).Inc()
	d.Metrics.OperationDuration.WithLabelValues(resource, operation).Observe(time.Since(start).Seconds())
}

// publish emits a resource event. Failures are logged and never change the
// outcome of the request.
func (d *Dependencies) publish(ctx context.Context, logger zerolog.Logger, eventType, resource, id, shard string, payload models.Fields) {
	event := models.ResourceEvent{
		Type:       eventType,
		Resource:   resource,
		ID:         id,
		Shard:      shard,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
	if err := d.Publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event_type", eventType).Str("id", id).Msg("failed to publish event")
	}
}

// requireJSON is the Content-Type check shared by every write
func requireJSON(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return models.UnsupportedContentType()
	}
	return nil
}

// bodyNotObject reports an unusable body. It runs after the auth check so an
// unauthenticated caller sees 401 whatever it sent.
func bodyNotObject(req *Request) *models.RequestError {
	if req.BodyTooLarge {
		return models.InvalidInput("The request body is too large", nil)
	}
	return models.InvalidInput("The request body must be a JSON object", nil)
}

// checkBodyID rejects a body identifier that disagrees with the path
func checkBodyID(body models.Fields, field, pathID, message string) error {
	if !body.Has(field) || body[field] == nil {
		return nil
	}
	if id, ok := body.String(field); ok && id == pathID {
		return nil
	}
	return models.IdentifierMismatch(message, field)
}

// envelope wraps a record under its resource key
func envelope(key string, record models.Fields) map[string]any {
	return map[string]any{key: record}
}

// unwrap reads the record nested under key in a peer response
func unwrap(res *client.RemoteResult, key string) (models.Fields, error) {
	body, err := res.Fields()
	if err != nil {
		return nil, models.InternalError()
	}
	record, ok := body[key].(map[string]any)
	if !ok {
		return nil, models.InternalError()
	}
	return models.Fields(record), nil
}

func location(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + id
}
