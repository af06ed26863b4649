package config

import "time"

// Config represents the complete custodian configuration.
// It is loaded from a YAML file and can be overridden by environment variables.
type Config struct {
	// Server contains HTTP listener settings for `custodian serve`.
	Server ServerConfig `yaml:"server"`

	// Database selects and configures the storage backend.
	Database DatabaseConfig `yaml:"database"`

	// Retention contains the purge engine settings.
	Retention RetentionConfig `yaml:"retention"`

	// Tenant contains deployment-wide tenant setting defaults.
	Tenant TenantConfig `yaml:"tenant"`

	// Trigger configures the HTTP trigger endpoint.
	Trigger TriggerConfig `yaml:"trigger"`

	// Scheduler configures `custodian schedule`.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Lock configures the optional fleet lease.
	Lock LockConfig `yaml:"lock"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the request.
	// Default: 30 seconds
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// A fleet run answers only when every tenant is done, so this is long.
	// Default: 15 minutes
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120 seconds
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// WatchConfig reloads the configuration file when it changes.
	// Default: false
	WatchConfig bool `yaml:"watch_config"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Backend is one of "postgres", "sqlite" or "memory".
	// Default: "postgres"
	Backend string `yaml:"backend"`

	// AutoMigrate applies schema migrations at startup (postgres only;
	// sqlite always creates its schema).
	// Default: false
	AutoMigrate bool `yaml:"auto_migrate"`

	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	// DSN is the connection string. Usually supplied as ${DATABASE_URL}.
	DSN string `yaml:"dsn"`

	// MinConns is the minimum pool size.
	// Default: 0
	MinConns int `yaml:"min_conns"`

	// MaxConns is the maximum pool size.
	// Default: 4
	MaxConns int `yaml:"max_conns"`

	// Schema is set as search_path on every connection.
	// Default: "public"
	Schema string `yaml:"schema"`

	// ConnectTimeout bounds the initial connection.
	// Default: 10 seconds
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// SQLiteConfig contains SQLite settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "custodian.db"
	Path string `yaml:"path"`

	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains purge engine settings.
type RetentionConfig struct {
	// DryRun counts eligible rows without deleting them. Applies to runs
	// started through the HTTP trigger.
	// Default: false
	DryRun bool `yaml:"dry_run"`

	// BatchSize is the number of ids selected per iteration.
	// Default: 500
	BatchSize int `yaml:"batch_size"`

	// PageSize is the number of rows read per store query.
	// Default: 1000
	PageSize int `yaml:"page_size"`

	// DeleteChunkSize is the number of ids per delete statement.
	// Default: 1000
	DeleteChunkSize int `yaml:"delete_chunk_size"`

	// OrgPageSize is the number of tenants read per page.
	// Default: 1000
	OrgPageSize int `yaml:"org_page_size"`

	// RunTimeout bounds one fleet run. Zero means no timeout.
	// Default: 0
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// TenantConfig contains defaults applied to tenants that never stored a value.
type TenantConfig struct {
	// DefaultRetentionDays applies when retentionDays is unset.
	// Default: 90
	DefaultRetentionDays int `yaml:"default_retention_days"`

	// ModelEnabled is the provider enablement default.
	// Default: openai, gemini and claude enabled
	ModelEnabled map[string]bool `yaml:"model_enabled"`
}

// TriggerConfig configures the HTTP trigger endpoint.
type TriggerConfig struct {
	// Path is the fleet route. The per-tenant route is Path + "/orgs/{orgID}".
	// Default: "/api/cron/retention"
	Path string `yaml:"path"`

	// Secret is the shared secret. When empty every trigger request fails
	// with 500.
	Secret string `yaml:"secret"`

	// SecretHeader carries the shared secret.
	// Default: "X-Cron-Secret"
	SecretHeader string `yaml:"secret_header"`

	// ActorHeader carries the acting user on the per-tenant route.
	// Default: "X-Actor-ID"
	ActorHeader string `yaml:"actor_header"`
}

// SchedulerConfig configures the cron timer that calls the trigger.
type SchedulerConfig struct {
	// Schedule is a standard five-field cron expression.
	// Default: "0 * * * *"
	Schedule string `yaml:"schedule"`

	// URL is the trigger endpoint to call.
	// Default: "http://127.0.0.1:8080/api/cron/retention"
	URL string `yaml:"url"`

	// Secret is sent in the trigger's secret header. Falls back to
	// trigger.secret when empty.
	Secret string `yaml:"secret"`

	// Timeout bounds one trigger call.
	// Default: 15 minutes
	Timeout time.Duration `yaml:"timeout"`
}

// LockConfig configures the Redis fleet lease.
type LockConfig struct {
	// Enabled turns the lease on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RedisAddr is host:port of the Redis server.
	// Default: "127.0.0.1:6379"
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword authenticates to Redis.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB selects the Redis database.
	// Default: 0
	RedisDB int `yaml:"redis_db"`

	// Key is the lease key.
	// Default: "custodian:retention:fleet"
	Key string `yaml:"key"`

	// TTL is the lease duration. It should cover a whole fleet run.
	// Default: 55 minutes
	TTL time.Duration `yaml:"ttl"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics route.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "custodian"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "custodian"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root spans sampled.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`
}

// HealthConfig contains health endpoint settings.
type HealthConfig struct {
	// Enabled exposes the health endpoints.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath answers while the process is up.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath answers once the database is reachable.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`
}
