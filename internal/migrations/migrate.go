// Package migrations applies the embedded schema migrations (sessions and
// users tables) to a postgres database; of the stores here, only the session
// store has a postgres backend. The sqlite backend has no equivalent here: gorm's
// AutoMigrate, already run by sessionstore.NewGORMStore and
// usermanager.NewSQLiteUserManager on every open, keeps its schema current
// without a separate migration step.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	pgmigrations "github.com/ankisyncd/ankisyncd-go/internal/migrations/postgres"
)

// RunPostgres applies every pending migration to the postgres database at
// dsn, returning the resulting schema version. A nil error with changed=false
// means the schema was already current.
func RunPostgres(dsn string) (version uint, changed bool, err error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    "ankisyncd",
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(pgmigrations.FS, ".")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("migration failed: %w", err)
	} else {
		changed = !errors.Is(err, migrate.ErrNoChange)
	}

	version, _, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, changed, fmt.Errorf("failed to read migration version: %w", err)
	}

	return version, changed, nil
}
