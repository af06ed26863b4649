package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Largest batch, page and chunk sizes accepted. Postgres caps bind
// parameters per statement well above this.
const maxBatchSize = 10000

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "retention.batch_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
//
// A missing trigger secret is not a validation error: the trigger answers
// 500 until one is configured.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTenant(&cfg.Tenant)...)
	errs = append(errs, validateTrigger(&cfg.Trigger)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateLock(&cfg.Lock)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "database.postgres.dsn",
				Message: "dsn is required when backend is 'postgres'",
			})
		}
		if cfg.Postgres.MinConns < 0 || cfg.Postgres.MaxConns < 0 {
			errs = append(errs, FieldError{
				Field:   "database.postgres.max_conns",
				Message: "connection counts must not be negative",
			})
		} else if cfg.Postgres.MinConns > cfg.Postgres.MaxConns {
			errs = append(errs, FieldError{
				Field:   "database.postgres.min_conns",
				Message: fmt.Sprintf("min_conns (%d) exceeds max_conns (%d)", cfg.Postgres.MinConns, cfg.Postgres.MaxConns),
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "database.sqlite.path",
				Message: "path is required when backend is 'sqlite'",
			})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "database.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3' or 'sqlite'", cfg.SQLite.Driver),
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "database.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'postgres', 'sqlite', or 'memory'", cfg.Backend),
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	sizes := []struct {
		field string
		value int
	}{
		{"retention.batch_size", cfg.BatchSize},
		{"retention.page_size", cfg.PageSize},
		{"retention.delete_chunk_size", cfg.DeleteChunkSize},
		{"retention.org_page_size", cfg.OrgPageSize},
	}
	for _, s := range sizes {
		if s.value <= 0 || s.value > maxBatchSize {
			errs = append(errs, FieldError{
				Field:   s.field,
				Message: fmt.Sprintf("must be between 1 and %d, got %d", maxBatchSize, s.value),
			})
		}
	}

	if cfg.RunTimeout < 0 {
		errs = append(errs, FieldError{Field: "retention.run_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateTenant(cfg *TenantConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultRetentionDays < 1 || cfg.DefaultRetentionDays > 3650 {
		errs = append(errs, FieldError{
			Field:   "tenant.default_retention_days",
			Message: fmt.Sprintf("must be between 1 and 3650, got %d", cfg.DefaultRetentionDays),
		})
	}

	return errs
}

func validateTrigger(cfg *TriggerConfig) []FieldError {
	var errs []FieldError

	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "trigger.path",
			Message: fmt.Sprintf("path %q must start with '/'", cfg.Path),
		})
	}
	if cfg.SecretHeader == "" {
		errs = append(errs, FieldError{Field: "trigger.secret_header", Message: "secret header is required"})
	}
	if cfg.ActorHeader == "" {
		errs = append(errs, FieldError{Field: "trigger.actor_header", Message: "actor header is required"})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "scheduler.schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
		})
	}

	if u, err := url.Parse(cfg.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "scheduler.url",
			Message: fmt.Sprintf("invalid URL %q: must be an absolute http(s) URL", cfg.URL),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "scheduler.timeout", Message: "must not be negative"})
	}

	return errs
}

func validateLock(cfg *LockConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}
	if cfg.RedisAddr == "" {
		errs = append(errs, FieldError{
			Field:   "lock.redis_addr",
			Message: "redis address is required when the lock is enabled",
		})
	}
	if cfg.Key == "" {
		errs = append(errs, FieldError{Field: "lock.key", Message: "key is required when the lock is enabled"})
	}
	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{Field: "lock.ttl", Message: "ttl must be positive"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/' when metrics are enabled",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: fmt.Sprintf("must be between 0 and 1, got %g", cfg.Tracing.SampleRatio),
		})
	}

	if cfg.Health.Enabled {
		if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: "path must start with '/'"})
		}
		if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "path must start with '/'"})
		}
	}

	return errs
}
