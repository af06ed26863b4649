// Package config provides configuration management for custodian.
//
// Configuration is read from a YAML file, completed with defaults, overridden
// from the environment and validated as a whole.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("custodian.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("custodian.yaml")
//
// References of the form ${VAR} inside the file are expanded from the
// environment before parsing:
//
//	database:
//	  postgres:
//	    dsn: ${DATABASE_URL}
//	trigger:
//	  secret: ${CRON_SECRET}
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CUSTODIAN_SECTION_FIELD:
//
//   - CUSTODIAN_TRIGGER_SECRET overrides trigger.secret
//   - CUSTODIAN_RETENTION_DRY_RUN overrides retention.dry_run
//   - CUSTODIAN_DATABASE_POSTGRES_DSN overrides database.postgres.dsn
//
// Precedence, lowest first: defaults, file, environment.
//
// # Reloading
//
// A Holder publishes the current configuration through an atomic pointer.
// A Watcher re-reads the file on change and swaps the new configuration in
// only when it validates, so a bad edit never takes effect.
package config
