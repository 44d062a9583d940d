package application

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/testbench/pkg/configuration"
)

type MigrationManager interface {
	RegisterSchema(fsys fs.FS)
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
}

// migrationManager runs the embedded goose migrations over a database/sql handle;
// goose does not speak pgx natively.
type migrationManager struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
	fsys   fs.FS
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{pool: pool, logger: logger}
}

func (m *migrationManager) RegisterSchema(fsys fs.FS) {
	m.fsys = fsys
}

func (m *migrationManager) provider() (*goose.Provider, *sql.DB, error) {
	if m.fsys == nil {
		return nil, nil, fmt.Errorf("no migrations registered")
	}
	db, err := sql.Open("postgres", configuration.Use().Database.ConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("open migration connection: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, m.fsys)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init goose provider: %w", err)
	}
	return p, db, nil
}

func (m *migrationManager) Up(ctx context.Context) error {
	p, db, err := m.provider()
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := p.Up(ctx)
	for _, r := range results {
		m.logger.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"path":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if len(results) == 0 {
		m.logger.Info("no pending migrations")
	}
	return nil
}

func (m *migrationManager) Down(ctx context.Context) error {
	p, db, err := m.provider()
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	if result != nil {
		m.logger.WithFields(logrus.Fields{
			"version": result.Source.Version,
			"path":    result.Source.Path,
		}).Info("migration rolled back")
	}
	return nil
}

func (m *migrationManager) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	p, db, err := m.provider()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return p.Status(ctx)
}
