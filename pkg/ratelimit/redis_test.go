package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestNewRedisLimiter_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisLimiter should panic with nil redis client")
		}
	}()
	NewRedisLimiter(nil, testConfig(), zerolog.Nop())
}

func TestRedisLimiter_FallsBackToLocalLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLimiter(client, testConfig(), zerolog.Nop())
	defer l.Close()
	ctx := context.Background()

	// Fail-open is not acceptable: the local limiter must still enforce the threshold.
	for i := 0; i < 3; i++ {
		if d := l.Admit(ctx, "10.0.0.1"); !d.Allowed {
			t.Fatalf("request %d should be allowed by fallback", i+1)
		}
	}
	if d := l.Admit(ctx, "10.0.0.1"); d.Allowed {
		t.Error("fallback limiter should deny request N+1")
	}
}

func TestRedisLimiter_Decide(t *testing.T) {
	l := &RedisLimiter{cfg: testConfig().withDefaults()}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		count         int64
		ttl           time.Duration
		wantAllowed   bool
		wantBlocked   bool
		wantRemaining int
	}{
		{name: "first request", count: 1, ttl: time.Minute, wantAllowed: true, wantRemaining: 2},
		{name: "at threshold", count: 3, ttl: 10 * time.Second, wantAllowed: true, wantRemaining: 0},
		{name: "over threshold", count: 4, ttl: 15 * time.Minute},
		{name: "active block", count: -1, ttl: 5 * time.Minute, wantBlocked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := l.decide(tt.count, tt.ttl, now)
			if d.Allowed != tt.wantAllowed || d.Blocked != tt.wantBlocked {
				t.Errorf("decide() = %+v", d)
			}
			if d.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", d.Remaining, tt.wantRemaining)
			}
			if !d.ResetAt.Equal(now.Add(tt.ttl)) {
				t.Errorf("ResetAt = %v, want %v", d.ResetAt, now.Add(tt.ttl))
			}
		})
	}
}

func TestRedisLimiter_Keys(t *testing.T) {
	if got := counterKey("10.0.0.1"); got != "ratelimit:{10.0.0.1}:count" {
		t.Errorf("counterKey = %q", got)
	}
	if got := blockKey("10.0.0.1"); got != "ratelimit:{10.0.0.1}:blocked" {
		t.Errorf("blockKey = %q", got)
	}
}
