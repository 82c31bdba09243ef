package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schema embed.FS

// RunMigrations applies pending schema steps to the database at dbPath.
func RunMigrations(dbPath string) error {
	return withMigrator(dbPath, func(m *migrate.Migrate) error {
		err := m.Up()
		if err == nil || errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("apply schema: %w", err)
	})
}

// MigrationVersion reports the applied schema step; 0 means none yet.
func MigrationVersion(dbPath string) (version uint, dirty bool, err error) {
	err = withMigrator(dbPath, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		switch {
		case errors.Is(verr, migrate.ErrNilVersion):
			version, dirty = 0, false
			return nil
		case verr != nil:
			return fmt.Errorf("read schema version: %w", verr)
		}
		return nil
	})
	return version, dirty, err
}

// withMigrator runs fn against a migrator on a dedicated connection, so
// closing the migrator never touches the repository's pool.
func withMigrator(dbPath string, fn func(*migrate.Migrate) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open %s for migration: %w", dbPath, err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	defer m.Close()

	return fn(m)
}
