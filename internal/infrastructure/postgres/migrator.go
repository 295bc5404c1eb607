package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// Migrator manages the snapshot export schema.
type Migrator struct {
	m      *migrate.Migrate
	logger zerolog.Logger
}

// NewMigrator opens the migrations in migrationsPath against databaseURL.
// Close must be called when done.
func NewMigrator(databaseURL, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{
		m:      m,
		logger: logger.With().Str("migrations", migrationsPath).Logger(),
	}, nil
}

// Up applies every pending migration.
func (g *Migrator) Up() error {
	err := g.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		g.logVersion("export schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	g.logVersion("export schema migrated")
	return nil
}

// Down rolls back the most recent migration.
func (g *Migrator) Down() error {
	if _, ok, err := g.Version(); err != nil {
		return err
	} else if !ok {
		return errors.New("no migration to roll back")
	}

	if err := g.m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	g.logVersion("export schema rolled back")
	return nil
}

// Version returns the applied schema version. ok is false on an empty
// database.
func (g *Migrator) Version() (version uint, ok bool, err error) {
	version, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, true, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, true, nil
}

// Close releases the source and database handles.
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (g *Migrator) logVersion(msg string) {
	version, ok, err := g.Version()
	event := g.logger.Info()
	if err != nil {
		event = g.logger.Warn().Err(err)
	}
	event.Uint("version", version).Bool("applied", ok).Msg(msg)
}

// RunMigrations applies every pending migration in migrationsPath.
func RunMigrations(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	g, err := NewMigrator(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer g.Close()
	return g.Up()
}
