// Worker entry point: a long-lived docking daemon that claims library slices
// from the job queue, docks their ligands, and folds results back. It also
// drains the notification topic, delivering completion messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/MolDock-Screen/internal/application/screening"
	"github.com/turtacn/MolDock-Screen/internal/config"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/postgres"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/redis"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/storage/minio"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variable injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	workerID := flag.String("id", "", "worker identity for slice claims (default: generated)")
	concurrency := flag.Int("concurrency", 0, "docking pool size (overrides config)")
	flag.Parse()

	if err := run(*configPath, *workerID, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, workerID string, concurrency int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Worker.Concurrency = concurrency
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

	logger.Info("starting worker",
		logging.String("version", version),
		logging.Int("concurrency", cfg.Worker.Concurrency))

	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	repo := repositories.NewJobRepository(conn.DB(), logger)

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewJobCache(redisClient, logger)
	locks := redis.NewLockFactory(redisClient, logger)

	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	defer minioClient.Close()

	store := minio.NewScreeningStore(minioClient, logger)

	producer, err := kafka.NewProducerFromConfig(cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	defer producer.Close()

	var appMetrics *prometheus.AppMetrics
	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace: "moldock",
			Subsystem: "worker",
		}, logger)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		appMetrics = prometheus.NewAppMetrics(collector)
		go serveMetrics(cfg.Metrics, collector, logger)
	}

	worker := screening.NewWorker(workerID, screening.WorkerDeps{
		Repo:      repo,
		Cache:     cache,
		Store:     store,
		Publisher: producer,
		Locks:     locks,
		Metrics:   appMetrics,
		Logger:    logger,
	}, cfg.Worker, cfg.Docking, cfg.Filter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Notification delivery rides on the same process: drain the
	// notification topic so completed jobs reach their owners.
	consumer, err := kafka.NewConsumerFromConfig(cfg.Kafka, []string{kafka.TopicNotification}, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Subscribe(kafka.TopicNotification, notificationHandler(logger))
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer consumer.Close()

	logger.Info("worker running", logging.String("worker_id", worker.ID()))
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("worker stopped")
	return nil
}

// notificationHandler logs delivered notifications. Delivery is a log line
// until an outbound mail relay is configured.
func notificationHandler(logger logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		env, err := kafka.MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		var note kafka.NotificationPayload
		if err := env.DecodePayload(&note); err != nil {
			return err
		}
		logger.Info("notification delivered",
			logging.String("recipient", note.Recipient),
			logging.String("channel", note.Channel),
			logging.String("subject", note.Subject))
		return nil
	}
}

// serveMetrics exposes the Prometheus endpoint on its own listener so
// scrapes survive docking backpressure.
func serveMetrics(cfg config.MetricsConfig, collector prometheus.MetricsCollector, logger logging.Logger) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	port := cfg.Port
	if port == 0 {
		port = 9091
	}

	mux := http.NewServeMux()
	mux.Handle(path, collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("metrics listener started", logging.Int("port", port), logging.String("path", path))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics listener failed", logging.Err(err))
	}
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
