// API server entry point: REST endpoints for submitting and monitoring
// virtual screening jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/MolDock-Screen/internal/application/screening"
	"github.com/turtacn/MolDock-Screen/internal/config"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/postgres"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/redis"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/MolDock-Screen/internal/interfaces/http"
	"github.com/turtacn/MolDock-Screen/internal/interfaces/http/handlers"
	"github.com/turtacn/MolDock-Screen/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variable injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		Output:           cfg.Log.Output,
		EnableCaller:     cfg.Log.EnableCaller,
		EnableStacktrace: cfg.Log.EnableStacktrace,
		SamplingRate:     cfg.Log.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	logger.Info("starting API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	// Postgres: the job queue and result store.
	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	repo := repositories.NewJobRepository(conn.DB(), logger)

	// Redis: status cache and top-hit leaderboards.
	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewJobCache(redisClient, logger)

	// MinIO: receptor, library, and result objects.
	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	defer minioClient.Close()

	store := minio.NewScreeningStore(minioClient, logger)

	// Kafka: job lifecycle events.
	producer, err := kafka.NewProducerFromConfig(cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	defer producer.Close()

	svc := screening.NewService(repo, cache, store, producer, cfg.Worker.SliceSize, logger)

	jobHandler := handlers.NewJobHandler(svc)
	healthHandler := handlers.NewHealthHandler(version,
		&postgresHealthAdapter{conn: conn},
		&redisHealthAdapter{client: redisClient},
		&minioHealthAdapter{client: minioClient},
	)

	routerCfg := httpserver.RouterConfig{
		JobHandler:        jobHandler,
		HealthHandler:     healthHandler,
		CORSMiddleware:    middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()),
		LoggingMiddleware: middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()),
	}

	rlCfg := middleware.DefaultRateLimitConfig()
	limiter := middleware.NewTokenBucketLimiter(rlCfg.RequestsPerSecond, rlCfg.BurstSize, rlCfg.CleanupInterval)
	routerCfg.RateLimitMiddleware = middleware.RateLimit(limiter, rlCfg)

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace: "moldock",
			Subsystem: "api",
		}, logger)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		routerCfg.MetricsCollector = collector
		routerCfg.MetricsMiddleware = middleware.RequestMetrics(prometheus.NewAppMetrics(collector))
	}

	server := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	if err := server.Stop(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// loadConfig reads the config file, falling back to environment variables and
// defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return config.LoadFromEnv()
		}
		return nil, err
	}
	return config.Load(path)
}
