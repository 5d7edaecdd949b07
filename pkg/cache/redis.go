package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore is a Store backed by Redis. Expiry is delegated to Redis; the
// store has no capacity bound of its own.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed store whose entries live for ttl.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// Get retrieves the value for key. Backend errors are reported as misses.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			CacheErrors.WithLabelValues(BackendRedis, "get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Redis get failed")
		}
		CacheMisses.WithLabelValues(BackendRedis).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(BackendRedis).Inc()
	return data, true
}

// Set stores value with the configured TTL. Failures are logged and dropped.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) {
	if err := s.redis.Set(ctx, key, value, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

// Has reports whether key exists in Redis.
func (s *RedisStore) Has(ctx context.Context, key string) bool {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "exists").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Redis exists failed")
		return false
	}
	return n == 1
}

// EvictExpired is a no-op: Redis expires keys natively.
func (s *RedisStore) EvictExpired(context.Context) int {
	return 0
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
