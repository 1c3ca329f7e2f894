// Command modelserve runs the model-version lifecycle serving process: it
// loads configuration, wires a Model Manager per configured model, starts
// the repository watcher, and exposes the HTTP/JSON and gRPC surfaces until
// an interrupt or terminate signal requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/KeyIP-Intelligence/internal/config"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/prometheus"
	grpcserver "github.com/turtacn/KeyIP-Intelligence/internal/interfaces/grpc"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/grpc/pb"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/grpc/services"
	httpserver "github.com/turtacn/KeyIP-Intelligence/internal/interfaces/http"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/audit"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/cache"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine/httpbackend"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/events"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/manager"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/mediator"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/policy"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/storage/fs"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/storage/objectstore"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/watcher"
)

func main() {
	configPath := flag.String("config", "configs/modelserve.yaml", "path to the YAML configuration file")
	httpPort := flag.Int("http-port", 0, "override server.port from the config file")
	grpcPort := flag.Int("grpc-port", 0, "override grpc.port from the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modelserve: %v\n", err)
		os.Exit(1)
	}
	config.ApplyDefaults(cfg)
	if *httpPort != 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort != 0 {
		cfg.GRPC.Port = *grpcPort
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "modelserve: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "modelserve: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("modelserve: fatal", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "modelserve",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("building metrics collector: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)
	grpcMetrics := prometheus.NewGRPCMetrics(collector)

	var auditSink manager.AuditSink
	if cfg.Database.Enabled {
		pool, err := postgres.NewConnectionPool(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		auditSink = audit.NewPostgresSink(pool, logger)
	}

	var eventSink manager.EventSink
	if cfg.Kafka.Enabled {
		sink := events.NewKafkaSink(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			RequiredAcks: cfg.Kafka.RequiredAcks,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		defer sink.Close()
		eventSink = sink
	}

	var statusCache manager.StatusCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(toRedisClientConfig(cfg.Redis), logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
		redisCacheImpl := redis.NewRedisCache(redisClient, logger)
		statusCache = cache.NewRedisCache(redisCacheImpl, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL, logger)
	}

	backend := httpbackend.New(httpbackend.Config{BaseURL: cfg.Serving.BackendURL})

	registry := make(mediator.MapRegistry, len(cfg.Serving.Models))
	tickables := make(map[string]watcher.Tickable, len(cfg.Serving.Models))

	for _, m := range cfg.Serving.Models {
		storageAdapter, err := newStorageAdapter(m, cfg.MinIO, logger)
		if err != nil {
			return fmt.Errorf("building storage adapter for model %q: %w", m.Name, err)
		}
		policyCfg, err := newPolicyConfig(m)
		if err != nil {
			return fmt.Errorf("building policy for model %q: %w", m.Name, err)
		}

		var opts []manager.Option
		if eventSink != nil {
			opts = append(opts, manager.WithEventSink(eventSink))
		}
		if auditSink != nil {
			opts = append(opts, manager.WithAuditSink(auditSink))
		}
		if statusCache != nil {
			opts = append(opts, manager.WithStatusCache(statusCache))
		}

		mgr := manager.New(m.Name, m.Root, policyCfg, storageAdapter, backend, logger, opts...)
		registry[m.Name] = mgr
		tickables[m.Name] = mgr
	}

	watch := watcher.New(tickables, cfg.Serving.WatchInterval, logger)
	med := mediator.New(registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watch.Run(ctx)

	servingHandler := handlers.NewServingHandler(med, appMetrics, logger)
	healthHandler := handlers.NewHealthHandler("1.0.0")
	cors := middleware.NewCORSMiddleware(middleware.CORSConfig{AllowedOrigins: []string{"*"}})

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ServingHandler: servingHandler,
		HealthHandler:  healthHandler,
		CORS:           cors,
		LoggingConfig:  middleware.LoggingConfig{SkipPaths: []string{"/healthz", "/readyz", "/metrics"}},
		Logger:         logger,
	})
	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", collector.Handler())

	httpSrv := httpserver.NewServer(httpserver.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, mux, logger)

	grpcSrv, err := grpcserver.NewServer(&cfg.GRPC,
		grpcserver.WithLogger(logger),
		grpcserver.WithMetrics(grpcMetrics),
		grpcserver.WithMaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize),
		grpcserver.WithMaxSendMsgSize(cfg.GRPC.MaxSendMsgSize),
		grpcserver.WithGracefulTimeout(cfg.GRPC.GracefulTimeout),
	)
	if err != nil {
		return fmt.Errorf("building grpc server: %w", err)
	}
	pb.RegisterModelServiceServer(grpcSrv, services.NewServingService(med, appMetrics, logger))

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Start(context.Background()); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := grpcSrv.Start(); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	logger.Info("modelserve started",
		logging.String("http_addr", httpSrv.Addr()),
		logging.String("grpc_addr", grpcSrv.Addr()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("modelserve: shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("modelserve: server failed", logging.Err(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("modelserve: http shutdown error", logging.Err(err))
	}
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("modelserve: grpc shutdown error", logging.Err(err))
	}

	logger.Info("modelserve: shutdown complete")
	return nil
}

func newStorageAdapter(m config.ModelConfig, minio config.MinIOConfig, logger logging.Logger) (interface {
	ListVersions(ctx context.Context, modelRoot string) (map[int64]struct{}, error)
}, error) {
	switch m.StorageBackend {
	case "objectstore":
		return objectstore.New(objectstore.Config{
			Endpoint:  minio.Endpoint,
			AccessKey: minio.AccessKey,
			SecretKey: minio.SecretKey,
			Bucket:    minio.Bucket,
			UseSSL:    minio.UseSSL,
		}, logger)
	default:
		return fs.New(logger), nil
	}
}

func newPolicyConfig(m config.ModelConfig) (policy.Config, error) {
	switch m.PolicyKind {
	case "latest":
		return policy.NewLatest(m.LatestN), nil
	case "specific":
		return policy.NewSpecific(m.SpecificSet...), nil
	case "all":
		return policy.NewAll(), nil
	default:
		return policy.Config{}, fmt.Errorf("unknown policy kind %q", m.PolicyKind)
	}
}

func toRedisClientConfig(c config.RedisConfig) *redis.RedisConfig {
	return &redis.RedisConfig{
		Mode:         "standalone",
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
