package cache

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Backend names used for metrics labels and configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is a key/value cache with TTL semantics. Implementations must be safe
// for concurrent use; every Set is atomic from the caller's perspective.
type Store interface {
	// Get returns the stored value, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key. Failures are handled inside the store.
	Set(ctx context.Context, key string, value []byte)

	// Has reports whether a live entry exists for key.
	Has(ctx context.Context, key string) bool

	// EvictExpired drops expired entries and returns how many were removed.
	EvictExpired(ctx context.Context) int

	// Close stops background work owned by the store.
	Close() error
}

// Typed wraps a Store with JSON encoding for values of type T.
type Typed[T any] struct {
	store  Store
	logger zerolog.Logger
}

// NewTyped creates a typed view over store.
func NewTyped[T any](store Store, logger zerolog.Logger) *Typed[T] {
	return &Typed[T]{store: store, logger: logger}
}

// Get decodes the cached value for key. A corrupt entry is reported as a miss.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	data, ok := t.store.Get(ctx, key)
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		var zero T
		return zero, false
	}
	return value, true
}

// Set encodes value and stores it under key.
func (t *Typed[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	t.store.Set(ctx, key, data)
}

// Has reports whether key holds a live entry.
func (t *Typed[T]) Has(ctx context.Context, key string) bool {
	return t.store.Has(ctx, key)
}
