package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all platform settings.
const envPrefix = "MOLDOCK"

// newViper builds a pre-configured Viper instance with the platform's standard
// settings: YAML file type, MOLDOCK_ env prefix, automatic env binding, and a
// key replacer that maps "." → "_" so that nested keys like "database.host"
// resolve to "MOLDOCK_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys declares every configuration key to viper so that env-only
// overrides are visible to Unmarshal.  Viper resolves environment variables
// lazily at Get time; a key it has never seen in a file or default is
// invisible to Unmarshal even when the matching env var is set.
func registerKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.mode",
		"server.read_timeout", "server.write_timeout",
		"server.max_body_size", "server.shutdown_timeout",

		"database.host", "database.port", "database.user",
		"database.password", "database.db_name", "database.ssl_mode",
		"database.max_conns", "database.max_idle_conns",
		"database.conn_max_lifetime", "database.conn_max_idle_time",
		"database.migration_path",

		"redis.addr", "redis.password", "redis.db", "redis.pool_size",
		"redis.min_idle_conns", "redis.dial_timeout", "redis.read_timeout",
		"redis.write_timeout", "redis.default_ttl", "redis.key_prefix",

		"kafka.brokers", "kafka.group_id", "kafka.auto_offset_reset",
		"kafka.timeout_ms", "kafka.producer_retries", "kafka.batch_size",
		"kafka.auto_create_topics",

		"minio.endpoint", "minio.access_key", "minio.secret_key",
		"minio.ligand_bucket", "minio.result_bucket", "minio.use_ssl",
		"minio.presign_expiry",

		"worker.concurrency", "worker.poll_interval", "worker.slice_size",
		"worker.max_retries", "worker.retry_backoff", "worker.shutdown_window",

		"docking.granularity", "docking.num_mc_tasks", "docking.mc_iterations",
		"docking.temperature", "docking.perturbation",
		"docking.max_results_per_task", "docking.max_conformations",
		"docking.max_refine_iters", "docking.gradient_tolerance",
		"docking.max_grid_probe_values",

		"filter.max_molecular_weight", "filter.min_molecular_weight",
		"filter.max_heavy_atoms", "filter.min_heavy_atoms",
		"filter.max_rotatable_bonds", "filter.max_hbond_donors",
		"filter.max_hbond_acceptors",

		"log.level", "log.format", "log.output", "log.enable_caller",
		"log.enable_stacktrace", "log.sampling_rate",

		"metrics.enabled", "metrics.path", "metrics.port",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Load reads the YAML file at configPath, merges any MOLDOCK_* environment
// variable overrides, applies platform defaults for unset fields, and
// validates the result.  It returns a fully-populated *Config or a
// descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MOLDOCK_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised (12-factor) deployments.
//
// Environment variable naming convention:
//
//	MOLDOCK_<SECTION>_<FIELD>   e.g.  MOLDOCK_DATABASE_HOST, MOLDOCK_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// LoadPartial reads the YAML file at configPath — or only MOLDOCK_*
// environment variables when configPath is empty — and applies defaults
// without running cross-section validation. The CLI uses it: a one-shot
// local docking run needs no database credentials, so each command
// validates only the sections it actually consumes.
func LoadPartial(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level; callers are
// responsible for applying only the safe subset of changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read — errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// Config change produced an invalid config; skip the callback to
			// prevent the application from entering a broken state.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
