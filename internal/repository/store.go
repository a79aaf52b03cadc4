package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

// ErrEmptyID is returned when a record is addressed without an identifier
var ErrEmptyID = errors.New("record id is empty")

// Store defines the interface for record persistence. Each call is atomic
// for a single record; concurrent writers to the same record race and the
// last write wins.
type Store interface {
	// Get returns the record and whether it exists
	Get(ctx context.Context, table, id string) (models.Fields, bool, error)

	// Put creates or replaces the record
	Put(ctx context.Context, table, id string, record models.Fields) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, table, id string) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}

// InstrumentedStore records latency and errors for every call to next
type InstrumentedStore struct {
	next    Store
	backend string
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewInstrumentedStore wraps next with metrics labelled by backend
func NewInstrumentedStore(next Store, backend string, metrics *observability.Metrics, logger zerolog.Logger) *InstrumentedStore {
	return &InstrumentedStore{
		next:    next,
		backend: backend,
		metrics: metrics,
		logger:  logger.With().Str("component", "record_store").Str("backend", backend).Logger(),
	}
}

func (s *InstrumentedStore) observe(op, table, id string, start time.Time, err error) {
	s.metrics.StoreOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues(s.backend, op).Inc()
		s.logger.Error().Err(err).Str("operation", op).Str("table", table).Str("id", id).Msg("store operation failed")
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, table, id string) (models.Fields, bool, error) {
	start := time.Now()
	record, ok, err := s.next.Get(ctx, table, id)
	s.observe("get", table, id, start, err)
	return record, ok, err
}

func (s *InstrumentedStore) Put(ctx context.Context, table, id string, record models.Fields) error {
	start := time.Now()
	err := s.next.Put(ctx, table, id, record)
	s.observe("put", table, id, start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, table, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, table, id)
	s.observe("delete", table, id, start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
