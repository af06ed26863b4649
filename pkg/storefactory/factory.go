package storefactory

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/custodian/pkg/audit"
	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/store/memory"
	"mercator-hq/custodian/pkg/store/postgres"
	"mercator-hq/custodian/pkg/store/sqlite"
	"mercator-hq/custodian/pkg/tenant"
)

// Store is everything custodian needs from a backend.
type Store interface {
	retention.RowStore
	retention.OrgLister
	tenant.SettingsReader
	tenant.SettingsWriter
	audit.Sink

	// OrgExists reports whether orgID names a registered tenant. Ids that
	// are malformed for the backend report false rather than an error.
	OrgExists(ctx context.Context, orgID string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// Migrator is implemented by backends with versioned schema migrations.
type Migrator interface {
	Migrate() error
}

// NewStore opens the backend selected by config.Backend.
//
// Supported backends:
//   - "postgres": pgx connection pool, optionally migrated on open
//   - "sqlite": database/sql, schema created on open
//   - "memory": process-local maps, for tests and demos
//
// Example:
//
//	store, err := storefactory.NewStore(ctx, &cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewStore(ctx context.Context, config *config.DatabaseConfig) (Store, error) {
	slog.Debug("creating store", "backend", config.Backend)

	var (
		store Store
		err   error
	)
	switch config.Backend {
	case "postgres":
		store, err = openPostgres(ctx, config)

	case "sqlite":
		store, err = sqlite.New(&sqlite.Config{
			Path:        config.SQLite.Path,
			Driver:      config.SQLite.Driver,
			WALMode:     config.SQLite.WALMode,
			BusyTimeout: config.SQLite.BusyTimeout,
		})

	case "memory":
		store = memory.New()

	default:
		return nil, fmt.Errorf("unsupported database backend: %q (supported: postgres, sqlite, memory)", config.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Backend, err)
	}

	slog.Info("store opened", "backend", config.Backend)
	return store, nil
}

func openPostgres(ctx context.Context, config *config.DatabaseConfig) (Store, error) {
	store, err := postgres.Open(ctx, &postgres.Config{
		DSN:            config.Postgres.DSN,
		MinConns:       config.Postgres.MinConns,
		MaxConns:       config.Postgres.MaxConns,
		Schema:         config.Postgres.Schema,
		ConnectTimeout: config.Postgres.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	if config.AutoMigrate {
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
