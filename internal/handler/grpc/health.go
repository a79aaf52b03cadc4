package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cypherlabdev/bookshop-service/internal/handler/grpc/interceptors"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthMonitor publishes the readiness of this process through the
// standard gRPC health protocol
type HealthMonitor struct {
	server   *health.Server
	service  string
	checks   map[string]Check
	interval time.Duration
	logger   zerolog.Logger
}

// NewHealthMonitor creates a monitor reporting under service and the
// empty overall name. Both start as NOT_SERVING until the first probe.
func NewHealthMonitor(service string, checks map[string]Check, interval time.Duration, logger zerolog.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m := &HealthMonitor{
		server:   health.NewServer(),
		service:  service,
		checks:   checks,
		interval: interval,
		logger:   logger.With().Str("component", "grpc_health").Logger(),
	}
	m.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return m
}

// NewServer builds a gRPC server with the standard interceptor chain and
// the health service registered
func NewServer(monitor *HealthMonitor, logger zerolog.Logger) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryInterceptor(logger),
			interceptors.LoggingInterceptor(logger),
			interceptors.TracingInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(server, monitor.server)
	return server
}

// Probe runs every check once and updates the reported status
func (m *HealthMonitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for name, check := range m.checks {
		if err := check(ctx); err != nil {
			m.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
			m.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	m.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Start probes on every interval until ctx is cancelled
func (m *HealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING to every watcher
func (m *HealthMonitor) Shutdown() {
	m.server.Shutdown()
}

func (m *HealthMonitor) set(status healthpb.HealthCheckResponse_ServingStatus) {
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(m.service, status)
}
