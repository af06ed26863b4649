package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custodian.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// TestLoadConfig_ValidFile tests loading a complete configuration file.
func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
database:
  backend: sqlite
  sqlite:
    path: /var/lib/custodian.db
    wal_mode: false
retention:
  dry_run: true
  batch_size: 200
trigger:
  secret: s3cret
tenant:
  model_enabled:
    openai: false
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("Expected listen address 0.0.0.0:9090, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Database.Backend != "sqlite" || cfg.Database.SQLite.Path != "/var/lib/custodian.db" {
		t.Errorf("Unexpected database config: %+v", cfg.Database)
	}
	if cfg.Database.SQLite.WALMode {
		t.Error("Expected explicit wal_mode: false to be kept")
	}
	if !cfg.Retention.DryRun || cfg.Retention.BatchSize != 200 {
		t.Errorf("Unexpected retention config: %+v", cfg.Retention)
	}
	if cfg.Retention.PageSize != DefaultRetentionPageSize {
		t.Errorf("Expected default page size, got %d", cfg.Retention.PageSize)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected metrics disabled")
	}
	if !cfg.Telemetry.Health.Enabled {
		t.Error("Expected health enabled by default")
	}
	if len(cfg.Tenant.ModelEnabled) != 1 || cfg.Tenant.ModelEnabled["openai"] {
		t.Errorf("Expected model_enabled to replace the defaults, got %v", cfg.Tenant.ModelEnabled)
	}
}

// TestLoadConfig_Defaults tests that a minimal file gets every default.
func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  backend: memory\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Trigger.Path != DefaultTriggerPath || cfg.Trigger.SecretHeader != "X-Cron-Secret" {
		t.Errorf("Unexpected trigger defaults: %+v", cfg.Trigger)
	}
	if cfg.Scheduler.Schedule != "0 * * * *" {
		t.Errorf("Expected hourly schedule, got %q", cfg.Scheduler.Schedule)
	}
	if cfg.Retention.BatchSize != 500 || cfg.Retention.DryRun {
		t.Errorf("Unexpected retention defaults: %+v", cfg.Retention)
	}
	if !cfg.Tenant.ModelEnabled["claude"] || len(cfg.Tenant.ModelEnabled) != 3 {
		t.Errorf("Unexpected model defaults: %v", cfg.Tenant.ModelEnabled)
	}
	if cfg.Lock.Enabled {
		t.Error("Expected lock disabled by default")
	}
}

// TestLoadConfig_ExpandsEnv tests ${VAR} expansion.
func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DATABASE_URL", "postgres://u:p@db/app")
	t.Setenv("TEST_CRON_SECRET", "from-env")

	path := writeConfig(t, `
database:
  postgres:
    dsn: ${TEST_DATABASE_URL}
trigger:
  secret: ${TEST_CRON_SECRET}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Database.Postgres.DSN != "postgres://u:p@db/app" {
		t.Errorf("Unexpected DSN %q", cfg.Database.Postgres.DSN)
	}
	if cfg.Trigger.Secret != "from-env" {
		t.Errorf("Unexpected secret %q", cfg.Trigger.Secret)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected parse error")
	}
}

// TestLoadConfigWithEnvOverrides tests that environment variables win over the file.
func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  backend: memory
retention:
  dry_run: false
  batch_size: 100
trigger:
  secret: file-secret
`)
	t.Setenv("CUSTODIAN_RETENTION_DRY_RUN", "true")
	t.Setenv("CUSTODIAN_RETENTION_BATCH_SIZE", "50")
	t.Setenv("CUSTODIAN_TRIGGER_SECRET", "env-secret")
	t.Setenv("CUSTODIAN_LOCK_TTL", "10m")
	t.Setenv("CUSTODIAN_RETENTION_PAGE_SIZE", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if !cfg.Retention.DryRun {
		t.Error("Expected dry run from environment")
	}
	if cfg.Retention.BatchSize != 50 {
		t.Errorf("Expected batch size 50, got %d", cfg.Retention.BatchSize)
	}
	if cfg.Trigger.Secret != "env-secret" {
		t.Errorf("Expected env secret, got %q", cfg.Trigger.Secret)
	}
	if cfg.Lock.TTL != 10*time.Minute {
		t.Errorf("Expected TTL 10m, got %v", cfg.Lock.TTL)
	}
	if cfg.Retention.PageSize != DefaultRetentionPageSize {
		t.Errorf("Expected unparsable override to be ignored, got %d", cfg.Retention.PageSize)
	}
}

// TestLoadConfigWithEnvOverrides_NoFile tests running from the environment only.
func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("CUSTODIAN_DATABASE_BACKEND", "sqlite")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if cfg.Database.Backend != "sqlite" {
		t.Errorf("Expected sqlite backend, got %s", cfg.Database.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"postgres without dsn", func(c *Config) { c.Database.Backend = "postgres" }, "database.postgres.dsn"},
		{"unknown backend", func(c *Config) { c.Database.Backend = "mysql" }, "database.backend"},
		{"bad sqlite driver", func(c *Config) { c.Database.Backend = "sqlite"; c.Database.SQLite.Driver = "cgo" }, "database.sqlite.driver"},
		{"zero batch size", func(c *Config) { c.Retention.BatchSize = 0 }, "retention.batch_size"},
		{"huge page size", func(c *Config) { c.Retention.PageSize = maxBatchSize + 1 }, "retention.page_size"},
		{"retention days", func(c *Config) { c.Tenant.DefaultRetentionDays = 0 }, "tenant.default_retention_days"},
		{"relative trigger path", func(c *Config) { c.Trigger.Path = "cron" }, "trigger.path"},
		{"bad schedule", func(c *Config) { c.Scheduler.Schedule = "every hour" }, "scheduler.schedule"},
		{"bad scheduler url", func(c *Config) { c.Scheduler.URL = "localhost:8080" }, "scheduler.url"},
		{"lock without ttl", func(c *Config) { c.Lock.Enabled = true; c.Lock.TTL = 0 }, "lock.ttl"},
		{"log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"sample ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Database.Backend = "memory"
			tt.modify(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

// TestValidate_MissingSecretAllowed tests that an unset trigger secret loads.
func TestValidate_MissingSecretAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Backend = "memory"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Unexpected message %q", got)
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := two.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "b: worse") {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestSchedulerSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Trigger.Secret = "trigger"
	if got := cfg.SchedulerSecret(); got != "trigger" {
		t.Errorf("Expected fallback to trigger secret, got %q", got)
	}
	cfg.Scheduler.Secret = "scheduler"
	if got := cfg.SchedulerSecret(); got != "scheduler" {
		t.Errorf("Expected scheduler secret, got %q", got)
	}
}

func TestClone(t *testing.T) {
	cfg := Defaults()
	c := cfg.Clone()
	c.Tenant.ModelEnabled["openai"] = false
	if !cfg.Tenant.ModelEnabled["openai"] {
		t.Error("Clone shares the model map")
	}
}
