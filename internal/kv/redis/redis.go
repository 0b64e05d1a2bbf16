// Package redis provides the go-redis-backed kv.Store for hosts that share
// circle state across processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"circles/internal/platform/metrics"
	"circles/pkg/platform/sentinel"
)

const backend = "redis"

// Store is a Redis-backed kv.Store. Values are stored without Redis-side
// expiry: signal lifetimes are computed lazily at read time, never delegated
// to the backend.
type Store struct {
	client *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Dial connects to the Redis at url and verifies the connection.
func Dial(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Store{client: client}, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the value for key, or sentinel.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	defer observe("get", time.Now())

	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores value under key, overwriting any prior value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	defer observe("set", time.Now())

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op success.
func (s *Store) Delete(ctx context.Context, key string) error {
	defer observe("delete", time.Now())

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys returns every key with the given prefix via SCAN, never KEYS, so a
// large shared instance is not blocked.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	defer observe("keys", time.Now())

	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func observe(op string, start time.Time) {
	metrics.KVDurationMs.WithLabelValues(backend, op).
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
