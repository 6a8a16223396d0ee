package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// Migrator brings the schema up to date. Embedded engines get their tables
// created directly from the registered models and the migration history is
// stamped to the newest script, so a later switch to incremental migrations
// starts from a consistent baseline. Server engines run the scripts
// incrementally.
type Migrator struct {
	db     *bun.DB
	driver string
	files  fs.FS
	dir    string
	models []any
	logger interfaces.Logger
}

// MigratorConfig wires a Migrator.
type MigratorConfig struct {
	DB *bun.DB
	// Driver is the value returned by Connect.
	Driver string
	// Files holds the migration scripts.
	Files fs.FS
	// Dir is the path of the scripts inside Files.
	Dir string
	// Models are created directly on embedded engines.
	Models []any
	Logger interfaces.Logger
}

// NewMigrator constructs a migrator.
func NewMigrator(cfg MigratorConfig) *Migrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Migrator{
		db:     cfg.DB,
		driver: cfg.Driver,
		files:  cfg.Files,
		dir:    cfg.Dir,
		models: cfg.Models,
		logger: logger,
	}
}

// Run applies the strategy for the connected engine.
func (m *Migrator) Run(ctx context.Context) error {
	switch m.driver {
	case DriverSQLite:
		return m.createAll(ctx)
	case DriverPostgres:
		return m.upgrade()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, m.driver)
	}
}

func (m *Migrator) createAll(ctx context.Context) error {
	for _, model := range m.models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("database: create table for %T: %w", model, err)
		}
	}
	m.logger.Info("schema created from models", "tables", len(m.models))
	return m.stamp()
}

// stamp records the newest script version without executing any scripts.
func (m *Migrator) stamp() error {
	sourceDriver, err := iofs.New(m.files, m.dir)
	if err != nil {
		return fmt.Errorf("database: open migration source: %w", err)
	}
	defer sourceDriver.Close()

	latest, err := latestVersion(sourceDriver)
	if err != nil {
		return err
	}
	if latest == 0 {
		return nil
	}

	dbDriver, err := migratesqlite.WithInstance(m.db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("database: migration driver: %w", err)
	}
	runner, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("database: migration runner: %w", err)
	}
	if err := runner.Force(int(latest)); err != nil {
		return fmt.Errorf("database: stamp version %d: %w", latest, err)
	}
	m.logger.Info("migration history stamped", "version", latest)
	return nil
}

func (m *Migrator) upgrade() error {
	sourceDriver, err := iofs.New(m.files, m.dir)
	if err != nil {
		return fmt.Errorf("database: open migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(m.db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("database: migration driver: %w", err)
	}
	runner, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("database: migration runner: %w", err)
	}

	if err := runner.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database: apply migrations: %w", err)
	}
	m.logger.Info("migrations applied")
	return nil
}

// latestVersion walks the migration source to find the newest version.
func latestVersion(driver source.Driver) (uint, error) {
	version, err := driver.First()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("database: read migration source: %w", err)
	}
	for {
		next, err := driver.Next(version)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return version, nil
			}
			return 0, fmt.Errorf("database: read migration source: %w", err)
		}
		version = next
	}
}
