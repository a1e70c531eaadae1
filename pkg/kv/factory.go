package kv

import (
	"fmt"
	"time"
)

// Backend represents the storage backend type.
type Backend string

const (
	// BackendMemory uses the in-memory store.
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend.
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance.
type Config struct {
	// Backend specifies which storage backend to use.
	Backend Backend

	// RedisURL is the connection string for Redis (required when Backend is "redis").
	// Format: redis://localhost:6379/0 or redis://:password@localhost:6379/1
	RedisURL string

	// JanitorInterval controls how often the in-memory store cleans up
	// expired keys. Set to 0 for the 30s default.
	JanitorInterval time.Duration
}

// StoreFactory defines a function that creates a Store instance.
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend.
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration.
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}

	factory, exists := factories[cfg.Backend]
	if !exists {
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
	if cfg.Backend == BackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}
	return factory(cfg)
}
