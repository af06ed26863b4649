package postgres

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"

	"mercator-hq/custodian/pkg/retention"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending schema migration. It is a no-op when the
// schema is current.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return retention.NewStorageError(backend, "migrate_source", err)
	}

	// A dedicated handle; closing the migrator closes it without touching the pool.
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return retention.NewStorageError(backend, "migrate_driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "custodian", driver)
	if err != nil {
		driver.Close()
		return retention.NewStorageError(backend, "migrate_init", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return retention.NewStorageError(backend, "migrate_up", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return retention.NewStorageError(backend, "migrate_version", err)
	}
	s.logger.Info("database migrations applied",
		"version", version,
		"dirty", dirty,
	)
	return nil
}
