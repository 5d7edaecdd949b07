package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// admitScript increments the client's window counter and escalates to a
// block in one round trip.
//
// KEYS[1] window counter, KEYS[2] block marker
// ARGV[1] window ms, ARGV[2] max requests, ARGV[3] block ms
// Returns {count, ttl_ms}; count is -1 while a block is active.
var admitScript = redis.NewScript(`
local blocked = redis.call('PTTL', KEYS[2])
if blocked > 0 then
	return {-1, blocked}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
if count > tonumber(ARGV[2]) then
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
	redis.call('DEL', KEYS[1])
	return {count, tonumber(ARGV[3])}
end
return {count, ttl}
`)

// RedisLimiter shares admission state across processes through Redis.
// When Redis is unavailable it degrades to an in-process limiter rather than
// admitting everyone.
type RedisLimiter struct {
	redis    *redis.Client
	cfg      Config
	fallback *MemoryLimiter
	now      func() time.Time
	logger   zerolog.Logger
}

// NewRedisLimiter creates a Redis-backed limiter with an in-process fallback.
func NewRedisLimiter(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *RedisLimiter {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	cfg = cfg.withDefaults()
	return &RedisLimiter{
		redis:    redisClient,
		cfg:      cfg,
		fallback: NewMemoryLimiter(cfg, WithLogger(logger)),
		now:      time.Now,
		logger:   logger,
	}
}

// Redis keys for one client. The hash tag keeps both keys on one cluster slot.
func counterKey(client string) string { return fmt.Sprintf("ratelimit:{%s}:count", client) }
func blockKey(client string) string   { return fmt.Sprintf("ratelimit:{%s}:blocked", client) }

// Admit records a request from key in Redis.
func (l *RedisLimiter) Admit(ctx context.Context, key string) Decision {
	vals, err := admitScript.Run(ctx, l.redis,
		[]string{counterKey(key), blockKey(key)},
		l.cfg.Window.Milliseconds(),
		l.cfg.MaxRequests,
		l.cfg.BlockDuration.Milliseconds(),
	).Int64Slice()
	if err == nil && len(vals) != 2 {
		err = fmt.Errorf("unexpected admit script reply of length %d", len(vals))
	}
	if err != nil {
		rateLimitFallbacksTotal.Inc()
		l.logger.Warn().Err(err).Str(logging.FieldClient, key).Msg("Redis rate limit check failed - using local limiter")
		return l.fallback.Admit(ctx, key)
	}

	d := l.decide(vals[0], time.Duration(vals[1])*time.Millisecond, l.now())
	recordDecision(BackendRedis, d)
	if !d.Allowed && !d.Blocked {
		rateLimitBlocksTotal.WithLabelValues(BackendRedis).Inc()
		l.logger.Warn().
			Str(logging.FieldClient, key).
			Time("blocked_until", d.ResetAt).
			Msg("Client exceeded request threshold - blocking")
	}
	return d
}

// decide converts the script reply into a Decision.
func (l *RedisLimiter) decide(count int64, ttl time.Duration, now time.Time) Decision {
	d := Decision{
		Limit:   l.cfg.MaxRequests,
		Window:  l.cfg.Window,
		ResetAt: now.Add(ttl),
	}
	switch {
	case count < 0:
		d.Blocked = true
	case count > int64(l.cfg.MaxRequests):
		// this request started the block
	default:
		d.Allowed = true
		d.Remaining = l.cfg.MaxRequests - int(count)
	}
	return d
}

// Close stops the fallback limiter. The Redis client is owned by the caller.
func (l *RedisLimiter) Close() error {
	return l.fallback.Close()
}
