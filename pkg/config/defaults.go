package config

import (
	"maps"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 15 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Database defaults
	DefaultDatabaseBackend        = "postgres"
	DefaultPostgresMaxConns       = 4
	DefaultPostgresSchema         = "public"
	DefaultPostgresConnectTimeout = 10 * time.Second
	DefaultSQLitePath             = "custodian.db"
	DefaultSQLiteDriver           = "sqlite3"
	DefaultSQLiteWALMode          = true
	DefaultSQLiteBusyTimeout      = 5 * time.Second

	// Retention defaults
	DefaultRetentionBatchSize       = 500
	DefaultRetentionPageSize        = 1000
	DefaultRetentionDeleteChunkSize = 1000
	DefaultRetentionOrgPageSize     = 1000

	// Tenant defaults
	DefaultTenantRetentionDays = 90

	// Trigger defaults
	DefaultTriggerPath         = "/api/cron/retention"
	DefaultTriggerSecretHeader = "X-Cron-Secret"
	DefaultTriggerActorHeader  = "X-Actor-ID"

	// Scheduler defaults
	DefaultSchedulerSchedule = "0 * * * *"
	DefaultSchedulerURL      = "http://127.0.0.1:8080/api/cron/retention"
	DefaultSchedulerTimeout  = 15 * time.Minute

	// Lock defaults
	DefaultLockRedisAddr = "127.0.0.1:6379"
	DefaultLockKey       = "custodian:retention:fleet"
	DefaultLockTTL       = 55 * time.Minute

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "custodian"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "custodian"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingInsecure    = true
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
)

// DefaultModelEnabled returns the provider enablement applied to tenants
// without a stored modelEnabled setting.
func DefaultModelEnabled() map[string]bool {
	return map[string]bool{
		"openai": true,
		"gemini": true,
		"claude": true,
	}
}

// Defaults returns a configuration with every field at its default value.
//
// Boolean fields that default to true are only set here: a YAML file is
// decoded on top of this value so that an explicit false survives.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Database.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in default values for any zero-valued, non-boolean
// fields in the configuration. It modifies the config in place.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database defaults
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = DefaultDatabaseBackend
	}
	if cfg.Database.Postgres.MaxConns == 0 {
		cfg.Database.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Database.Postgres.Schema == "" {
		cfg.Database.Postgres.Schema = DefaultPostgresSchema
	}
	if cfg.Database.Postgres.ConnectTimeout == 0 {
		cfg.Database.Postgres.ConnectTimeout = DefaultPostgresConnectTimeout
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Database.SQLite.Driver == "" {
		cfg.Database.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Database.SQLite.BusyTimeout == 0 {
		cfg.Database.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Retention defaults
	if cfg.Retention.BatchSize == 0 {
		cfg.Retention.BatchSize = DefaultRetentionBatchSize
	}
	if cfg.Retention.PageSize == 0 {
		cfg.Retention.PageSize = DefaultRetentionPageSize
	}
	if cfg.Retention.DeleteChunkSize == 0 {
		cfg.Retention.DeleteChunkSize = DefaultRetentionDeleteChunkSize
	}
	if cfg.Retention.OrgPageSize == 0 {
		cfg.Retention.OrgPageSize = DefaultRetentionOrgPageSize
	}

	// Tenant defaults
	if cfg.Tenant.DefaultRetentionDays == 0 {
		cfg.Tenant.DefaultRetentionDays = DefaultTenantRetentionDays
	}
	if cfg.Tenant.ModelEnabled == nil {
		cfg.Tenant.ModelEnabled = DefaultModelEnabled()
	}

	// Trigger defaults
	if cfg.Trigger.Path == "" {
		cfg.Trigger.Path = DefaultTriggerPath
	}
	if cfg.Trigger.SecretHeader == "" {
		cfg.Trigger.SecretHeader = DefaultTriggerSecretHeader
	}
	if cfg.Trigger.ActorHeader == "" {
		cfg.Trigger.ActorHeader = DefaultTriggerActorHeader
	}

	// Scheduler defaults
	if cfg.Scheduler.Schedule == "" {
		cfg.Scheduler.Schedule = DefaultSchedulerSchedule
	}
	if cfg.Scheduler.URL == "" {
		cfg.Scheduler.URL = DefaultSchedulerURL
	}
	if cfg.Scheduler.Timeout == 0 {
		cfg.Scheduler.Timeout = DefaultSchedulerTimeout
	}

	// Lock defaults
	if cfg.Lock.RedisAddr == "" {
		cfg.Lock.RedisAddr = DefaultLockRedisAddr
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = DefaultLockKey
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = DefaultLockTTL
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
}

// SchedulerSecret returns the secret `custodian schedule` sends.
func (c *Config) SchedulerSecret() string {
	if c.Scheduler.Secret != "" {
		return c.Scheduler.Secret
	}
	return c.Trigger.Secret
}

// Clone returns a copy that shares no maps with c.
func (c *Config) Clone() *Config {
	out := *c
	out.Tenant.ModelEnabled = maps.Clone(c.Tenant.ModelEnabled)
	return &out
}
