package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"makosite/internal/config"
	"makosite/internal/models"
	"makosite/migrations"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func newMigrator(connString string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations runs all embedded SQL migrations.
func (d *DB) RunMigrations(connString string) error {
	m, err := newMigrator(connString)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// RollbackMigrations reverts every migration.
func (d *DB) RollbackMigrations(connString string) error {
	m, err := newMigrator(connString)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// SeedLinks inserts the configured links when the table is empty and returns
// how many were inserted. Seeding a non-empty table does nothing.
func (d *DB) SeedLinks(ctx context.Context, seeds []config.SeedLink) (int, error) {
	var count int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM links`).Scan(&count); err != nil {
		return 0, classify(err)
	}
	if count > 0 || len(seeds) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, s := range seeds {
		link := models.Link{
			Title:       s.Title,
			URL:         s.URL,
			Type:        s.Type,
			Description: s.Description,
			Icon:        s.Icon,
			IsActive:    true,
			Priority:    models.DefaultPriority,
			Creator:     "seed",
		}
		if s.Active != nil {
			link.IsActive = *s.Active
		}
		if s.Priority != nil {
			link.Priority = *s.Priority
		}
		if _, err := d.Create(ctx, link); err != nil {
			return inserted, fmt.Errorf("failed to seed link %q: %w", s.Title, err)
		}
		inserted++
	}
	return inserted, nil
}
