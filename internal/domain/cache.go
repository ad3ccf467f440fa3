package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Two uses exist:
// detection summaries for fast point lookups, and atomic counters for
// payer velocity windows.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetDetection retrieves a cached detection record.
	GetDetection(ctx context.Context, txID string) (*Detection, error)

	// SetDetection caches a detection record after scoring.
	SetDetection(ctx context.Context, det *Detection, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for payer velocity windows.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
