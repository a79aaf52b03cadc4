package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bookshop services
type Metrics struct {
	// Inbound HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Orchestrator outcomes
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Outbound peer calls
	PeerCallsTotal   *prometheus.CounterVec
	PeerRetriesTotal *prometheus.CounterVec
	PeerCallDuration *prometheus.HistogramVec

	// Shard routing
	DelegationsTotal *prometheus.CounterVec

	// Fault injection
	FaultsInjectedTotal *prometheus.CounterVec

	// Store
	StoreOperationDuration *prometheus.HistogramVec
	StoreErrors            *prometheus.CounterVec

	// Resource events
	EventsPublished *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec

	// Gateway
	GatewayRejectedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics with a custom registry (useful for testing)
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshop_http_request_duration_seconds",
				Help:    "Duration of inbound HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_operations_total",
				Help: "Total number of orchestrated operations by outcome",
			},
			[]string{"resource", "operation", "outcome"}, // outcome: success or reason code
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshop_operation_duration_seconds",
				Help:    "Duration of orchestrated operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "operation"},
		),
		PeerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_peer_calls_total",
				Help: "Total number of outbound peer calls",
			},
			[]string{"service", "status"},
		),
		PeerRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_peer_retries_total",
				Help: "Total number of retried outbound attempts",
			},
			[]string{"service"},
		),
		PeerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshop_peer_call_duration_seconds",
				Help:    "Duration of outbound peer calls including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		DelegationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_shard_delegations_total",
				Help: "Total number of requests delegated to a sibling shard",
			},
			[]string{"shard", "kind"}, // kind: delegate, probe
		),
		FaultsInjectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_faults_injected_total",
				Help: "Total number of injected faults",
			},
			[]string{"checkpoint"},
		),
		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshop_store_operation_duration_seconds",
				Help:    "Duration of record store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"}, // get, put, delete
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_store_errors_total",
				Help: "Total number of record store errors",
			},
			[]string{"backend", "operation"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_events_published_total",
				Help: "Total number of resource events successfully published",
			},
			[]string{"event_type"},
		),
		EventsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshop_events_failed_total",
				Help: "Total number of resource events failed to publish",
			},
			[]string{"event_type"},
		),
		GatewayRejectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bookshop_gateway_rate_limited_total",
				Help: "Total number of gateway requests rejected by the rate limiter",
			},
		),
	}
}
