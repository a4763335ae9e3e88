// Package config defines all configuration structures for the MolDock-Screen
// platform.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	GroupID          string   `mapstructure:"group_id"`
	AutoOffsetReset  string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS        int      `mapstructure:"timeout_ms"`
	ProducerRetries  int      `mapstructure:"producer_retries"`
	BatchSize        int      `mapstructure:"batch_size"`
	AutoCreateTopics bool     `mapstructure:"auto_create_topics"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
// LigandBucket stores the screening libraries; ResultBucket receives the
// per-job output archives.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	LigandBucket  string        `mapstructure:"ligand_bucket"`
	ResultBucket  string        `mapstructure:"result_bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// WorkerConfig holds the job-polling daemon parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`     // docking pool size, 0 = NumCPU
	PollInterval   time.Duration `mapstructure:"poll_interval"`   // idle sleep between queue polls
	SliceSize      int           `mapstructure:"slice_size"`      // ligands claimed per slice
	MaxRetries     int           `mapstructure:"max_retries"`     // per-slice retry budget
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`   // base backoff between retries
	ShutdownWindow time.Duration `mapstructure:"shutdown_window"` // grace period on SIGTERM
}

// DockingConfig holds the search-engine tunables. Zero values defer to the
// engine defaults; every field maps one-to-one onto docking.Config.
type DockingConfig struct {
	Granularity        float64 `mapstructure:"granularity"`
	NumMCTasks         int     `mapstructure:"num_mc_tasks"`
	MCIterations       int     `mapstructure:"mc_iterations"`
	Temperature        float64 `mapstructure:"temperature"`
	Perturbation       float64 `mapstructure:"perturbation"`
	MaxResultsPerTask  int     `mapstructure:"max_results_per_task"`
	MaxConformations   int     `mapstructure:"max_conformations"`
	MaxRefineIters     int     `mapstructure:"max_refine_iters"`
	GradientTolerance  float64 `mapstructure:"gradient_tolerance"`
	MaxGridProbeValues int     `mapstructure:"max_grid_probe_values"`
}

// FilterConfig holds the ligand property windows applied before docking.
// A molecule outside any window is recorded as filtered, not docked.
// The logp, tpsa, and charge windows stay disabled while both bounds are
// zero; they have no platform defaults because screening libraries do not
// always carry the annotations.
type FilterConfig struct {
	MaxMolecularWeight float64 `mapstructure:"max_molecular_weight"`
	MinMolecularWeight float64 `mapstructure:"min_molecular_weight"`
	MaxHeavyAtoms      int     `mapstructure:"max_heavy_atoms"`
	MinHeavyAtoms      int     `mapstructure:"min_heavy_atoms"`
	MaxRotatableBonds  int     `mapstructure:"max_rotatable_bonds"`
	MaxHBondDonors     int     `mapstructure:"max_hbond_donors"`
	MaxHBondAcceptors  int     `mapstructure:"max_hbond_acceptors"`
	MinLogP            float64 `mapstructure:"min_logp"`
	MaxLogP            float64 `mapstructure:"max_logp"`
	MinTPSA            float64 `mapstructure:"min_tpsa"`
	MaxTPSA            float64 `mapstructure:"max_tpsa"`
	MinCharge          int     `mapstructure:"min_charge"`
	MaxCharge          int     `mapstructure:"max_charge"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	SamplingRate     int    `mapstructure:"sampling_rate"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Docking  DockingConfig  `mapstructure:"docking"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if err := c.Database.Validate(); err != nil {
		return err
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// Docking
	if c.Docking.Granularity < 0 {
		return fmt.Errorf("config: docking.granularity must be positive, got %g", c.Docking.Granularity)
	}
	if c.Docking.Temperature < 0 {
		return fmt.Errorf("config: docking.temperature must be positive, got %g", c.Docking.Temperature)
	}
	if c.Docking.Perturbation < 0 {
		return fmt.Errorf("config: docking.perturbation must be positive, got %g", c.Docking.Perturbation)
	}

	// Worker
	if c.Worker.SliceSize < 1 {
		return fmt.Errorf("config: worker.slice_size must be ≥ 1, got %d", c.Worker.SliceSize)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}

// Validate checks the database section on its own. Commands that touch only
// PostgreSQL (migrations) call it directly instead of Config.Validate.
func (c DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.MaxConns)
	}
	return nil
}
