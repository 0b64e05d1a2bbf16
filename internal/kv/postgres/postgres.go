// Package postgres provides the pgx-backed kv.Store for deployments where a
// backend keeps a server-side twin of device state.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"circles/internal/platform/metrics"
	"circles/pkg/platform/sentinel"
)

const backend = "postgres"

// Store is a Postgres-backed kv.Store over a single two-column table. The
// schema stays a dumb byte sink on purpose: record shapes are owned by the
// feature stores, not by SQL.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Dial connects a pool to the Postgres at dsn and verifies the connection.
func Dial(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the backing table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS circles_kv (
			key   TEXT PRIMARY KEY,
			value BYTEA NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Get returns the value for key, or sentinel.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	defer observe("get", time.Now())

	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM circles_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select value: %w", err)
	}
	return value, nil
}

// Set stores value under key, overwriting any prior value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	defer observe("set", time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO circles_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("upsert value: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op success.
func (s *Store) Delete(ctx context.Context, key string) error {
	defer observe("delete", time.Now())

	if _, err := s.pool.Exec(ctx, `DELETE FROM circles_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

// Keys returns every key with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	defer observe("keys", time.Now())

	rows, err := s.pool.Query(ctx, `SELECT key FROM circles_kv WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

func observe(op string, start time.Time) {
	metrics.KVDurationMs.WithLabelValues(backend, op).
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
