package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/dpup/prefab/logging"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// Migrate applies all pending migrations for the dialect. It uses its own
// connection because closing a migrate instance closes the database handle.
func Migrate(ctx context.Context, dialect, dsn string) error {
	driverName := map[string]string{DialectSQLite: "sqlite3", DialectPostgres: "pgx"}[dialect]
	if driverName == "" {
		return fmt.Errorf("unsupported dialect for migration: %s", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	m, err := newMigrate(db, dialect)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, _ := m.Version()
		logging.Errorw(ctx, "Migration failed", "dialect", dialect, "version", version, "dirty", dirty, "error", err)
		return fmt.Errorf("migration failed (%s): %w", dialect, err)
	}

	version, _, _ := m.Version()
	logging.Infow(ctx, "Schema up to date", "dialect", dialect, "version", version)
	return nil
}

func newMigrate(db *sql.DB, dialect string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: migrationsTable})
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration driver: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
