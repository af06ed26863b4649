package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix starts every environment override.
const envPrefix = "CUSTODIAN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// ${VAR} references in the file are expanded from the environment before
// parsing, so secrets and DSNs need not be stored in the file. Defaults are
// applied and the result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of Defaults and applies defaults to anything the
// document left empty. It does not validate.
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), os.Getenv)

	cfg := Defaults()
	// Decoding into a populated map merges keys; the file replaces the defaults.
	cfg.Tenant.ModelEnabled = nil
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CUSTODIAN_SECTION_FIELD (e.g., CUSTODIAN_TRIGGER_SECRET).
// Environment variables always take precedence over file-based configuration.
//
// When path is empty the defaults are used as the base document.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Defaults()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("SERVER_WATCH_CONFIG", &cfg.Server.WatchConfig)

	// Database overrides
	envString("DATABASE_BACKEND", &cfg.Database.Backend)
	envBool("DATABASE_AUTO_MIGRATE", &cfg.Database.AutoMigrate)
	envString("DATABASE_POSTGRES_DSN", &cfg.Database.Postgres.DSN)
	envInt("DATABASE_POSTGRES_MIN_CONNS", &cfg.Database.Postgres.MinConns)
	envInt("DATABASE_POSTGRES_MAX_CONNS", &cfg.Database.Postgres.MaxConns)
	envString("DATABASE_POSTGRES_SCHEMA", &cfg.Database.Postgres.Schema)
	envDuration("DATABASE_POSTGRES_CONNECT_TIMEOUT", &cfg.Database.Postgres.ConnectTimeout)
	envString("DATABASE_SQLITE_PATH", &cfg.Database.SQLite.Path)
	envString("DATABASE_SQLITE_DRIVER", &cfg.Database.SQLite.Driver)
	envBool("DATABASE_SQLITE_WAL_MODE", &cfg.Database.SQLite.WALMode)
	envDuration("DATABASE_SQLITE_BUSY_TIMEOUT", &cfg.Database.SQLite.BusyTimeout)

	// Retention overrides
	envBool("RETENTION_DRY_RUN", &cfg.Retention.DryRun)
	envInt("RETENTION_BATCH_SIZE", &cfg.Retention.BatchSize)
	envInt("RETENTION_PAGE_SIZE", &cfg.Retention.PageSize)
	envInt("RETENTION_DELETE_CHUNK_SIZE", &cfg.Retention.DeleteChunkSize)
	envInt("RETENTION_ORG_PAGE_SIZE", &cfg.Retention.OrgPageSize)
	envDuration("RETENTION_RUN_TIMEOUT", &cfg.Retention.RunTimeout)

	// Tenant overrides
	envInt("TENANT_DEFAULT_RETENTION_DAYS", &cfg.Tenant.DefaultRetentionDays)

	// Trigger overrides
	envString("TRIGGER_PATH", &cfg.Trigger.Path)
	envString("TRIGGER_SECRET", &cfg.Trigger.Secret)
	envString("TRIGGER_SECRET_HEADER", &cfg.Trigger.SecretHeader)
	envString("TRIGGER_ACTOR_HEADER", &cfg.Trigger.ActorHeader)

	// Scheduler overrides
	envString("SCHEDULER_SCHEDULE", &cfg.Scheduler.Schedule)
	envString("SCHEDULER_URL", &cfg.Scheduler.URL)
	envString("SCHEDULER_SECRET", &cfg.Scheduler.Secret)
	envDuration("SCHEDULER_TIMEOUT", &cfg.Scheduler.Timeout)

	// Lock overrides
	envBool("LOCK_ENABLED", &cfg.Lock.Enabled)
	envString("LOCK_REDIS_ADDR", &cfg.Lock.RedisAddr)
	envString("LOCK_REDIS_PASSWORD", &cfg.Lock.RedisPassword)
	envInt("LOCK_REDIS_DB", &cfg.Lock.RedisDB)
	envString("LOCK_KEY", &cfg.Lock.Key)
	envDuration("LOCK_TTL", &cfg.Lock.TTL)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envBool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	envBool("TELEMETRY_HEALTH_ENABLED", &cfg.Telemetry.Health.Enabled)
}

func envString(name string, dst *string) {
	if val := os.Getenv(envPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
