package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration actions accepted by Apply
const (
	ActionUp      = "up"
	ActionDown    = "down"
	ActionVersion = "version"
	ActionForce   = "force"
)

// Migrator applies the embedded schema of the audit sink (the logs table).
type Migrator struct {
	m      *migrate.Migrate
	db     *sql.DB
	logger *slog.Logger
}

// NewMigrator opens its own database/sql handle for dsn; Close releases it.
func NewMigrator(ctx context.Context, dsn string, logger *slog.Logger) (*Migrator, error) {
	name, err := DatabaseName(dsn)
	if err != nil {
		return nil, err
	}

	db, err := OpenSQL(ctx, dsn)
	if err != nil {
		return nil, err
	}

	m, err := newMigrate(db, name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{m: m, db: db, logger: logger.With("component", "migrator", "database", name)}, nil
}

func newMigrate(db *sql.DB, dbName string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName:    dbName,
		MigrationsTable: "faceverify_schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Apply runs one action; steps is only read by ActionForce.
func (m *Migrator) Apply(action string, steps int) error {
	switch action {
	case ActionUp:
		return m.Up()
	case ActionDown:
		return m.Down()
	case ActionVersion:
		_, _, err := m.Version()
		return err
	case ActionForce:
		return m.Force(steps)
	default:
		return fmt.Errorf("unknown migration action %q (supported: %s, %s, %s, %s)",
			action, ActionUp, ActionDown, ActionVersion, ActionForce)
	}
}

// Up runs all pending migrations; an up-to-date schema is not an error.
func (m *Migrator) Up() error {
	err := m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("audit schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	m.logger.Info("audit schema migrated")
	return nil
}

// Down rolls back the last migration
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	m.logger.Info("audit schema rolled back one step")
	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		m.logger.Info("audit schema not initialized")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	m.logger.Info("audit schema version", "version", version, "dirty", dirty)
	return version, dirty, nil
}

// Force marks version as applied without running it, clearing a dirty state.
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	m.logger.Warn("audit schema version forced", "version", version)
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr, m.db.Close())
}
