// Package store provides PostgreSQL persistence for the application set,
// the address cache, the pending review queue, the manual override event
// log and the open-register dataset.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// runLockKey is the advisory lock key guarding the store. The persisted
// state is exclusively owned by one run at a time.
const runLockKey = 0x61707074 // "appt"

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// AcquireRunLock takes the advisory lock for this run. It fails immediately
// when another run holds the store; there is no multi-writer scenario to
// wait for.
func (s *Store) AcquireRunLock(ctx context.Context) error {
	var locked bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, runLockKey).Scan(&locked)
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run holds the store lock")
	}
	return nil
}

// ReleaseRunLock releases the advisory lock.
func (s *Store) ReleaseRunLock(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, runLockKey)
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Migrate creates the schema. All statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS applications (
			id UUID PRIMARY KEY,
			employer TEXT NOT NULL,
			role TEXT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS ix_applications_employer ON applications (employer)`,
		`CREATE TABLE IF NOT EXISTS address_records (
			employer TEXT PRIMARY KEY,
			street TEXT NOT NULL,
			postal_code TEXT NOT NULL,
			city TEXT NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			provenance TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS unresolved_items (
			id UUID PRIMARY KEY,
			data JSONB NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS override_events (
			id BIGSERIAL PRIMARY KEY,
			employer TEXT NOT NULL,
			street TEXT NOT NULL,
			postal_code TEXT NOT NULL,
			city TEXT NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'manual',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS ix_override_events_employer ON override_events (employer, id DESC)`,
		`CREATE TABLE IF NOT EXISTS register_companies (
			name TEXT NOT NULL,
			name_norm TEXT NOT NULL,
			street TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS ix_register_companies_norm ON register_companies (name_norm)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
