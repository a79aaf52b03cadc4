package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

// ErrOutboxFull is returned when the buffer cannot take another event
var ErrOutboxFull = errors.New("outbox buffer is full")

type pendingEvent struct {
	event   models.ResourceEvent
	retries int
}

// OutboxPublisher buffers events in memory and hands them to the next
// publisher from a background loop, so a slow broker never holds up a
// request. Events still buffered on shutdown get one flush attempt.
type OutboxPublisher struct {
	next         Publisher
	queue        chan pendingEvent
	metrics      *observability.Metrics
	logger       zerolog.Logger
	maxRetries   int
	retryBackoff time.Duration
	done         chan struct{}
}

// NewOutboxPublisher creates a new outbox publisher in front of next
func NewOutboxPublisher(next Publisher, bufferSize int, metrics *observability.Metrics, logger zerolog.Logger) *OutboxPublisher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &OutboxPublisher{
		next:         next,
		queue:        make(chan pendingEvent, bufferSize),
		metrics:      metrics,
		logger:       logger.With().Str("component", "outbox_publisher").Logger(),
		maxRetries:   3,
		retryBackoff: 100 * time.Millisecond,
		done:         make(chan struct{}),
	}
}

// Publish enqueues event without blocking
func (p *OutboxPublisher) Publish(_ context.Context, event models.ResourceEvent) error {
	select {
	case p.queue <- pendingEvent{event: event}:
		return nil
	default:
		p.metrics.EventsFailed.WithLabelValues(event.Type).Inc()
		return ErrOutboxFull
	}
}

// Pending returns the number of buffered events
func (p *OutboxPublisher) Pending() int {
	return len(p.queue)
}

// Done is closed once Start has returned and the final flush is over
func (p *OutboxPublisher) Done() <-chan struct{} {
	return p.done
}

// Start drains the buffer until ctx is cancelled, then flushes what is left.
// It must be called at most once.
func (p *OutboxPublisher) Start(ctx context.Context) {
	defer close(p.done)
	p.logger.Info().Msg("outbox publisher started")

	for {
		select {
		case pending := <-p.queue:
			p.publishEvent(ctx, pending)
		case <-ctx.Done():
			p.logger.Info().Int("pending", len(p.queue)).Msg("outbox publisher stopping")
			p.flush()
			return
		}
	}
}

func (p *OutboxPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case pending := <-p.queue:
			p.deliver(ctx, pending.event)
		default:
			return
		}
	}
}

// publishEvent publishes a single event, requeueing it on failure until the
// retry budget is spent
func (p *OutboxPublisher) publishEvent(ctx context.Context, pending pendingEvent) {
	for {
		err := p.deliver(ctx, pending.event)
		if err == nil {
			return
		}
		pending.retries++
		if pending.retries > p.maxRetries {
			p.logger.Error().
				Err(err).
				Str("event_type", pending.event.Type).
				Str("id", pending.event.ID).
				Msg("dropping event after retries")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryBackoff):
		}
	}
}

func (p *OutboxPublisher) deliver(ctx context.Context, event models.ResourceEvent) error {
	if err := p.next.Publish(ctx, event); err != nil {
		p.metrics.EventsFailed.WithLabelValues(event.Type).Inc()
		p.logger.Warn().Err(err).Str("event_type", event.Type).Str("id", event.ID).Msg("failed to publish event")
		return err
	}
	p.metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}
