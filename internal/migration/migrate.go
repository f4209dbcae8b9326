package migration

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/database"
)

type Migrator struct {
	db  *sql.DB
	dir string
}

func NewMigrator(cfg *config.DatabaseConfig) (*Migrator, error) {
	dir, err := migrationsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations directory: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}

	db, err := sql.Open("postgres", database.DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Migrator{db: db, dir: dir}, nil
}

func (m *Migrator) Up() error {
	if err := goose.Up(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down() error {
	if err := goose.Down(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}

// CurrentVersion is the version recorded in the database.
func (m *Migrator) CurrentVersion() (int64, error) {
	return goose.GetDBVersion(m.db)
}

// LatestVersion is the newest migration shipped with this build.
func (m *Migrator) LatestVersion() (int64, error) {
	return latestVersion(m.dir)
}

func latestVersion(dir string) (int64, error) {
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].Version, nil
}

func (m *Migrator) Status() error {
	if err := goose.Status(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

func (m *Migrator) Reset() error {
	if err := goose.Reset(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	return m.Up()
}
