// Package migrate applies the embedded schema with golang-migrate.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	gomigrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Dialect selects the golang-migrate database driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Up applies every pending "<version>_<name>.up.sql" file in migrationFS and returns the
// schema version afterwards. Running it on an up-to-date schema is a no-op.
func Up(db *sql.DB, d Dialect, migrationFS fs.FS) (uint, error) {
	if db == nil {
		return 0, errors.New("migration database handle is required")
	}

	source, err := iofs.New(migrationFS, ".")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}

	driver, err := newDriver(db, d)
	if err != nil {
		return 0, fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := gomigrate.NewWithInstance("iofs", source, string(d), driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	version, _, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func newDriver(db *sql.DB, d Dialect) (database.Driver, error) {
	switch d {
	case Postgres:
		return postgres.WithInstance(db, &postgres.Config{})
	case SQLite:
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", d)
	}
}
