//go:build integration

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/rank-lookup/internal/testutil"
	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/config"
	"github.com/Sternrassler/rank-lookup/pkg/lookup"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// TestFullRequestFlow covers rate limit, page fetch, stats fetch and the
// Redis cache across two service instances sharing one Redis.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockTracker()
	defer mock.Close()
	seedTracker(mock)

	newHandler := func() http.Handler {
		store := cache.NewRedisStore(redisClient, time.Hour, zerolog.Nop())
		limiter := ratelimit.NewRedisLimiter(redisClient, ratelimit.Config{
			Window:        time.Minute,
			MaxRequests:   3,
			BlockDuration: time.Minute,
		}, zerolog.Nop())
		t.Cleanup(func() { limiter.Close() })

		svc := lookup.NewService(newTrackerChain(t, mock), store, lookup.DefaultConfig(), zerolog.Nop())
		return NewServer(svc, limiter, config.Default().Server, zerolog.Nop(),
			WithReadinessCheck(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		).Handler()
	}

	post := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, LookupPath, strings.NewReader(`{"ranks":[1, 150],"region":"eu"}`))
		req.RemoteAddr = "198.51.100.20:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := newHandler()
	rec := post(first)
	if rec.Code != http.StatusOK {
		t.Fatalf("Request 1 status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeLookup(t, rec)
	if len(resp.Data) != 2 || resp.Data[0].Cached {
		t.Fatalf("Request 1: unexpected data %+v", resp.Data)
	}
	upstream := mock.GetRequestCount()

	// second instance sees the shared cache and the shared counter
	second := newHandler()
	rec = post(second)
	if rec.Code != http.StatusOK {
		t.Fatalf("Request 2 status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp = decodeLookup(t, rec)
	if len(resp.Data) != 2 || !resp.Data[0].Cached || !resp.Data[1].Cached {
		t.Errorf("Request 2: expected cached data, got %+v", resp.Data)
	}
	if mock.GetRequestCount() != upstream {
		t.Errorf("Upstream requests = %d, want %d", mock.GetRequestCount(), upstream)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("X-RateLimit-Remaining = %q, want 1", got)
	}

	post(first)
	if rec = post(second); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Request 4 status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	ready := httptest.NewRecorder()
	first.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, ReadyPath, nil))
	if ready.Code != http.StatusOK {
		t.Errorf("Ready status = %d, want %d", ready.Code, http.StatusOK)
	}
}
