// migrate.go handles database migration using golang-migrate.
//
// Migrations are SQL files embedded from the migrations/ directory. Each
// migration has an "up" (apply) and "down" (rollback) file. The migrate
// library tracks which migrations have been applied in a schema_migrations table.
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jerin288/jdt-tool-web/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending database migrations.
// This is called at application startup to ensure the schema is up to date.
func (db *DB) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var driver database.Driver
	name := db.DriverName()
	switch name {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB.DB, &sqlite.Config{})
	default:
		// The postgres migration driver only needs a *sql.DB, so it works
		// for both lib/pq and pgx connections.
		driver, err = postgres.WithInstance(db.DB.DB, &postgres.Config{})
		name = DriverPostgres
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logging.Info("📦 Database: no new migrations to apply")
	} else {
		version, dirty, _ := m.Version()
		logging.Info("📦 Database: migrated", "version", version, "dirty", dirty)
	}

	return nil
}
