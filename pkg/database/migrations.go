package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// ErrSchemaOutdated is returned when the applied schema is older than the process expects.
var ErrSchemaOutdated = errors.New("database schema outdated")

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

var (
	gooseUp        = goose.Up
	gooseDBVersion = goose.GetDBVersion
	gooseSetup     sync.Once
	gooseSetupErr  error
)

// Migrator applies the embedded goose migrations and verifies the schema version at startup.
type Migrator struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMigrator builds a migrator over the embedded migrations.
func NewMigrator(db *sqlx.DB, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db.DB, logger: logger}
}

func (m *Migrator) configure() error {
	gooseSetup.Do(func() {
		goose.SetBaseFS(migrationsFS)
		goose.SetLogger(gooseLogger{m.logger.Sugar()})
		gooseSetupErr = goose.SetDialect("postgres")
	})
	return gooseSetupErr
}

// Latest returns the highest embedded migration version.
func (m *Migrator) Latest() (int64, error) {
	if err := m.configure(); err != nil {
		return 0, err
	}
	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return 0, fmt.Errorf("collect migrations: %w", err)
	}
	last, err := migrations.Last()
	if err != nil {
		return 0, fmt.Errorf("collect migrations: %w", err)
	}
	return last.Version, nil
}

// CurrentVersion returns the applied goose version, or 0 on a fresh database.
func (m *Migrator) CurrentVersion() (int64, error) {
	if err := m.configure(); err != nil {
		return 0, err
	}
	version, err := gooseDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// RequireVersion fails when the database has not been migrated to at least required.
func (m *Migrator) RequireVersion(required int64) error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	if current < required {
		return fmt.Errorf("%w: have %d, need %d", ErrSchemaOutdated, current, required)
	}
	return nil
}

// Migrate applies every pending migration and returns the resulting version.
func (m *Migrator) Migrate() (int64, error) {
	if err := m.configure(); err != nil {
		return 0, err
	}
	if err := gooseUp(m.db, migrationsDir); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return m.CurrentVersion()
}

type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Fatal(v ...interface{})                 { l.sugar.Fatal(v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }
func (l gooseLogger) Print(v ...interface{})                 { l.sugar.Info(v...) }
func (l gooseLogger) Println(v ...interface{})               { l.sugar.Info(v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.sugar.Infof(format, v...) }
