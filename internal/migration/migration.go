package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Result is the schema version after a migration run.
type Result struct {
	Version uint
	Applied bool
}

// RunMigrations applies the embedded postgres migrations and reports the
// resulting schema version. A dirty schema is an error.
func RunMigrations(db *sql.DB, log *zap.Logger) (Result, error) {
	if db == nil {
		return Result{}, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	src, err := embeddedSource()
	if err != nil {
		return Result{}, err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "egs_schema_migrations"})
	if err != nil {
		return Result{}, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return Result{}, fmt.Errorf("create migrator: %w", err)
	}
	// migrator.Close would close the shared *sql.DB.

	before, _, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Result{}, fmt.Errorf("read schema version: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return Result{}, fmt.Errorf("apply migrations: %w", upErr)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return Result{}, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return Result{Version: version}, fmt.Errorf("schema version %d is dirty", version)
	}

	result := Result{Version: version, Applied: version != before}
	log.Info("database schema migrated",
		zap.Uint("from_version", before),
		zap.Uint("version", version),
		zap.Bool("applied", result.Applied),
	)
	return result, nil
}

func embeddedSource() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

// LatestVersion is the highest schema version shipped in the binary.
func LatestVersion() (uint, error) {
	src, err := embeddedSource()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("read first migration: %w", err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read migration after %d: %w", version, err)
		}
		version = next
	}
}
