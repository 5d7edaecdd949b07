package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/config"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSource_ChainOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Chain = []string{config.SourceSubprocess, config.SourceTrackerAPI, config.SourceLeaderboardScraper}

	chain, err := buildSource(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"subprocess", "tracker_api", "leaderboard_scraper"}, chain.Sources())
}

func TestBuildSource_UnknownSource(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Chain = []string{"browser"}

	_, err := buildSource(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildSource_InvalidActID(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Chain = []string{config.SourceLeaderboardScraper}
	cfg.Source.ActID = "not-a-uuid"

	_, err := buildSource(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildStore_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxEntries = 3

	store := buildStore(cfg, nil, zerolog.Nop())
	defer store.Close()

	mem, ok := store.(*cache.MemoryStore)
	require.True(t, ok)
	assert.Equal(t, 3, mem.Stats().Capacity)
}

func TestBuildStore_RedisWithoutClientFallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = cache.BackendRedis

	store := buildStore(cfg, nil, zerolog.Nop())
	defer store.Close()

	_, ok := store.(*cache.MemoryStore)
	assert.True(t, ok)
}

func TestBuildLimiter_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.MaxRequests = 1

	limiter := buildLimiter(cfg, nil, zerolog.Nop())
	defer limiter.Close()

	_, ok := limiter.(*ratelimit.MemoryLimiter)
	require.True(t, ok)

	ctx := context.Background()
	assert.True(t, limiter.Admit(ctx, "203.0.113.1").Allowed)
	assert.False(t, limiter.Admit(ctx, "203.0.113.1").Allowed)
}

func TestBuildLimiter_UnreachableRedisStillLimits(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Backend = ratelimit.BackendRedis
	cfg.RateLimit.MaxRequests = 1

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limiter := buildLimiter(cfg, client, zerolog.Nop())
	defer limiter.Close()

	ctx := context.Background()
	assert.True(t, limiter.Admit(ctx, "203.0.113.2").Allowed)
	assert.False(t, limiter.Admit(ctx, "203.0.113.2").Allowed)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.Nop()) }()

	url := "http://" + cfg.Addr() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
