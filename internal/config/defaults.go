// Package config provides configuration loading, defaults, and validation for
// the MolDock-Screen platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "moldock"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "moldock-workers"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultLigandBucket  = "moldock-ligands"
	DefaultResultBucket  = "moldock-results"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerSliceSize    = 100
	DefaultWorkerPollInterval = 10 * time.Second
	DefaultWorkerMaxRetries   = 3

	DefaultMetricsPath = "/metrics"
	DefaultMetricsPort = 9090
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.  Fields
// already set by the caller are left unchanged so that explicit configuration
// always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "moldock"
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.LigandBucket == "" {
		cfg.MinIO.LigandBucket = DefaultLigandBucket
	}
	if cfg.MinIO.ResultBucket == "" {
		cfg.MinIO.ResultBucket = DefaultResultBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 24 * time.Hour
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.SliceSize == 0 {
		cfg.Worker.SliceSize = DefaultWorkerSliceSize
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = DefaultWorkerPollInterval
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = DefaultWorkerMaxRetries
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 5 * time.Second
	}
	if cfg.Worker.ShutdownWindow == 0 {
		cfg.Worker.ShutdownWindow = 30 * time.Second
	}

	// ── Docking ───────────────────────────────────────────────────────────────
	// The engine owns its numeric defaults (granularity, task counts,
	// temperature); zero values here mean "engine default".

	// ── Filter ────────────────────────────────────────────────────────────────
	if cfg.Filter.MaxMolecularWeight == 0 {
		cfg.Filter.MaxMolecularWeight = 800
	}
	if cfg.Filter.MinMolecularWeight == 0 {
		cfg.Filter.MinMolecularWeight = 55
	}
	if cfg.Filter.MaxHeavyAtoms == 0 {
		cfg.Filter.MaxHeavyAtoms = 100
	}
	if cfg.Filter.MinHeavyAtoms == 0 {
		cfg.Filter.MinHeavyAtoms = 4
	}
	if cfg.Filter.MaxRotatableBonds == 0 {
		cfg.Filter.MaxRotatableBonds = 35
	}
	if cfg.Filter.MaxHBondDonors == 0 {
		cfg.Filter.MaxHBondDonors = 10
	}
	if cfg.Filter.MaxHBondAcceptors == 0 {
		cfg.Filter.MaxHBondAcceptors = 20
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}
