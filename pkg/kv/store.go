// Package kv provides a small Redis-like key-value abstraction with
// pluggable backends. Backends register themselves via RegisterBackend
// from their package init, so callers import the backend package for
// side effects and build stores through NewStoreFromConfig.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or field is not found.
var ErrNotFound = errors.New("not found")

// Store defines the operations the service needs from a key-value backend.
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Scan returns all keys with the given prefix. Ordering is not
	// guaranteed; callers sort when they need determinism.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Counter operations
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	// Hash operations
	HSet(ctx context.Context, key string, field string, value []byte) error
	HGet(ctx context.Context, key string, field string) ([]byte, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
