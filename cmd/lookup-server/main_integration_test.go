//go:build integration

package main

import (
	"context"
	"testing"

	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/config"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		redisC.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestRedisBackends(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	cfg := config.Default()
	cfg.Cache.Backend = cache.BackendRedis
	cfg.RateLimit.Backend = ratelimit.BackendRedis
	cfg.RateLimit.MaxRequests = 2

	store := buildStore(cfg, redisClient, zerolog.Nop())
	defer store.Close()
	if _, ok := store.(*cache.RedisStore); !ok {
		t.Fatalf("Expected *cache.RedisStore, got %T", store)
	}

	ctx := context.Background()
	store.Set(ctx, "player:eu:Alpha#EU1", []byte(`{"riot_id":"Alpha#EU1"}`))
	if got, ok := store.Get(ctx, "player:eu:Alpha#EU1"); !ok || string(got) != `{"riot_id":"Alpha#EU1"}` {
		t.Errorf("Expected stored value, got %q (found=%v)", got, ok)
	}

	limiter := buildLimiter(cfg, redisClient, zerolog.Nop())
	defer limiter.Close()
	if _, ok := limiter.(*ratelimit.RedisLimiter); !ok {
		t.Fatalf("Expected *ratelimit.RedisLimiter, got %T", limiter)
	}

	for i := 0; i < 2; i++ {
		if d := limiter.Admit(ctx, "198.51.100.7"); !d.Allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if d := limiter.Admit(ctx, "198.51.100.7"); d.Allowed {
		t.Error("Third request should be denied")
	}
}
