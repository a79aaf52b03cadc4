package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/config"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	grpcHandler "github.com/cypherlabdev/bookshop-service/internal/handler/grpc"
	httpHandler "github.com/cypherlabdev/bookshop-service/internal/handler/http"
	"github.com/cypherlabdev/bookshop-service/internal/messaging"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
	"github.com/cypherlabdev/bookshop-service/internal/repository"
	"github.com/cypherlabdev/bookshop-service/internal/routing"
	"github.com/cypherlabdev/bookshop-service/internal/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: cfg.Service.Name,
	})
	logger.Info().
		Str("service", cfg.Service.Name).
		Str("role", cfg.Service.Role).
		Str("environment", cfg.Service.Environment).
		Msg("bookshop service starting")

	// 3. Initialize metrics
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup := func() {}

	// 4. Assemble the HTTP surface for this role
	var (
		mounts []httpHandler.Mounter
		checks = map[string]grpcHandler.Check{}
	)
	if cfg.Service.Role == config.RoleGateway {
		gateway, err := httpHandler.NewGateway(httpHandler.GatewayConfig{
			BooksUpstream:     cfg.Gateway.BooksUpstream,
			CustomersUpstream: cfg.Gateway.CustomersUpstream,
			Timeout:           cfg.Client.ProxyTimeout,
			RateLimit:         cfg.Gateway.RateLimit,
			Burst:             cfg.Gateway.Burst,
		}, metrics, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure gateway")
		}
		mounts = append(mounts, gateway)
	} else {
		var deps service.Dependencies
		deps, cleanup = buildDependencies(ctx, cfg, metrics, logger)
		checks["store"] = deps.Store.Ping
		mounts = append(mounts, resourceHandlers(cfg, deps, logger)...)
	}

	ready := make([]httpHandler.ReadinessCheck, 0, len(checks))
	for name, check := range checks {
		ready = append(ready, httpHandler.ReadinessCheck{Name: name, Check: check})
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpHandler.NewRouter(httpHandler.RouterConfig{
			Mounts:  mounts,
			Ready:   ready,
			Metrics: metrics,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Create gRPC server exposing the health protocol
	monitor := grpcHandler.NewHealthMonitor(cfg.Service.Name, checks, 10*time.Second, logger)
	grpcServer := grpcHandler.NewServer(monitor, logger)
	go monitor.Start(ctx)

	// 6. Start servers
	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to listen on gRPC port")
		}
		logger.Info().Int("port", cfg.GRPC.Port).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// 7. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// 8. Graceful shutdown
	monitor.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info().Msg("gRPC server stopped")

	cancel() // stops the outbox and the health monitor
	cleanup()
	logger.Info().Msg("shutdown complete")
}

// buildDependencies connects the store, the event publisher and the fault
// policy shared by every orchestrator. cleanup releases them in reverse order.
func buildDependencies(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (service.Dependencies, func()) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Record store
	var store repository.Store
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := repository.ConnectPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		closers = append(closers, pool.Close)
		store = repository.NewPostgresStore(pool, logger)
		logger.Info().Msg("database connection established")
	case "redis":
		rdb, err := repository.ConnectRedis(cfg.Store.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		closers = append(closers, func() { _ = rdb.Close() })
		store = repository.NewRedisStore(rdb, logger)
		logger.Info().Str("addr", cfg.Store.RedisAddr).Msg("redis connection established")
	default:
		store = repository.NewMemoryStore()
	}
	store = repository.NewInstrumentedStore(store, cfg.Store.Backend, metrics, logger)

	// Resource events
	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := messaging.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create Kafka producer")
		}
		kafka := messaging.NewKafkaPublisher(producer, cfg.Kafka.TopicPrefix, logger)
		outbox := messaging.NewOutboxPublisher(kafka, cfg.Kafka.BufferSize, metrics, logger)
		go outbox.Start(ctx)

		// the producer outlives the outbox flush that runs once ctx is cancelled
		closers = append(closers, func() {
			select {
			case <-outbox.Done():
			case <-time.After(10 * time.Second):
				logger.Warn().Int("pending", outbox.Pending()).Msg("outbox flush did not finish before shutdown")
			}
			_ = kafka.Close()
		})
		publisher = outbox
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka publisher started")
	}

	// Fault injection
	var faults fault.Policy = fault.Never{}
	if cfg.Fault.Mode == "random" {
		rates := make(map[fault.Checkpoint]float64, len(cfg.Fault.Rates))
		for name, rate := range cfg.Fault.Rates {
			rates[fault.Checkpoint(name)] = rate
		}
		faults = fault.NewRandom(cfg.Fault.Seed, cfg.Fault.Rate, rates)
		logger.Warn().Float64("rate", cfg.Fault.Rate).Msg("random fault injection enabled")
	}
	faults = fault.Instrumented(faults, metrics.FaultsInjectedTotal, logger)

	caller := client.New(client.Config{URLTemplate: cfg.Peers.URLTemplate}, metrics, logger)

	return service.Dependencies{
		Store:     store,
		Caller:    caller,
		Faults:    faults,
		Publisher: publisher,
		Rules:     cfg.Rules,
		Policies:  service.DefaultPolicies(cfg.Client),
		Peers: service.Peers{
			BooksService:    cfg.Peers.BooksService,
			InsightsService: cfg.Peers.InsightsService,
			UsageURL:        cfg.Peers.UsageURL,
		},
		Metrics: metrics,
		Logger:  logger,
	}, cleanup
}

// resourceHandlers builds the orchestrators a resource role serves
func resourceHandlers(cfg *config.Config, deps service.Dependencies, logger zerolog.Logger) []httpHandler.Mounter {
	switch cfg.Service.Role {
	case config.RoleBooks:
		router := routing.NewRouter(routing.Config{
			Local:           cfg.Shard.Local,
			Known:           cfg.Shard.Known,
			Fallback:        cfg.Shard.Fallback,
			ServiceTemplate: cfg.Shard.ServiceTemplate,
		}, deps.Caller, client.NoRetry(cfg.Client.ProxyTimeout), deps.Metrics, logger)
		logger.Info().Str("shard", cfg.Shard.Local).Msg("serving books shard")
		return []httpHandler.Mounter{
			httpHandler.NewBookHandler(service.NewBookService(deps, router), logger),
		}
	case config.RoleCustomers:
		return []httpHandler.Mounter{
			httpHandler.NewCustomerHandler(service.NewCustomerService(deps), service.NewOrderService(deps), logger),
		}
	default:
		return []httpHandler.Mounter{
			httpHandler.NewInsightsHandler(service.NewInsightsService(deps), logger),
		}
	}
}
