package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/rank-lookup/internal/api"
	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/config"
	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/lookup"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("lookup-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run wires all components, serves until ctx ends, then shuts down.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = newRedisClient(ctx, cfg.Redis, logger)
		defer redisClient.Close()
	}

	store := buildStore(cfg, redisClient, logger)
	defer store.Close()

	limiter := buildLimiter(cfg, redisClient, logger)
	defer limiter.Close()

	source, err := buildSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build data source: %w", err)
	}

	service := lookup.NewService(source, store, lookup.Config{
		MaxBatch:         cfg.Lookup.MaxBatch,
		MaxRank:          cfg.Lookup.MaxRank,
		PageSize:         cfg.Lookup.PageSize,
		PageConcurrency:  cfg.Lookup.PageConcurrency,
		StatsConcurrency: cfg.Lookup.StatsConcurrency,
		Timeout:          cfg.Lookup.Timeout,
	}, log.Logger)

	var opts []api.Option
	if redisClient != nil {
		opts = append(opts, api.WithReadinessCheck(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	handler := api.NewServer(service, limiter, cfg.Server, log.Logger, opts...).Handler()
	server := api.NewHTTPServer(cfg.Server, handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("cache_backend", cfg.Cache.Backend).
			Str("rate_limit_backend", cfg.RateLimit.Backend).
			Str("source", source.Name()).
			Strs("chain", source.Sources()).
			Msg("Starting lookup server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	logCacheStats(store, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server shutdown complete")
	return nil
}

// newRedisClient connects to Redis. An unreachable server is not fatal:
// the cache degrades to misses and the limiter to its in-process fallback.
func newRedisClient(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unreachable at startup - continuing degraded")
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
	}
	return client
}

func buildStore(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) cache.Store {
	if cfg.Cache.Backend == cache.BackendRedis && redisClient != nil {
		return cache.NewRedisStore(redisClient, cfg.Cache.TTL, logging.NewLogger("cache"))
	}

	store := cache.NewMemoryStore(
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
		cache.WithLogger(logging.NewLogger("cache")),
	)
	logCacheStats(store, logger)
	return store
}

func buildLimiter(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) ratelimit.Limiter {
	limits := ratelimit.Config{
		Window:        cfg.RateLimit.Window,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		BlockDuration: cfg.RateLimit.BlockDuration,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}
	limiterLogger := logging.NewLogger("ratelimit")

	if cfg.RateLimit.Backend == ratelimit.BackendRedis && redisClient != nil {
		return ratelimit.NewRedisLimiter(redisClient, limits, limiterLogger)
	}
	logger.Debug().Int("max_requests", limits.MaxRequests).Dur("window", limits.Window).Msg("Using in-process rate limiter")
	return ratelimit.NewMemoryLimiter(limits, ratelimit.WithLogger(limiterLogger))
}

// buildSource composes the configured sources in order behind one chain.
func buildSource(cfg *config.Config, logger zerolog.Logger) (*datasource.Chain, error) {
	src := cfg.Source
	maxAttempts := src.MaxAttempts

	client := datasource.NewClient(datasource.ClientConfig{
		UserAgent:         src.UserAgent,
		RequestsPerSecond: src.RequestsPerSecond,
		Burst:             src.Burst,
		Timeout:           src.Timeout,
		Retry: func(class datasource.ErrorClass) datasource.RetryConfig {
			rc := datasource.RetryConfigForErrorClass(class)
			if maxAttempts > 0 {
				rc.MaxAttempts = maxAttempts
			}
			return rc
		},
	}, log.Logger)

	sources := make([]datasource.Source, 0, len(src.Chain))
	for _, name := range src.Chain {
		switch name {
		case config.SourceTrackerAPI:
			if src.APIKey == "" {
				logger.Warn().Msg("Tracker API source configured without an API key - it will be skipped")
			}
			sources = append(sources, datasource.NewTrackerAPI(client, src.TrackerAPIURL, src.TrackerWebURL, src.APIKey, log.Logger))
		case config.SourceLeaderboardScraper:
			scraper, err := datasource.NewLeaderboardScraper(client, src.TrackerWebURL, src.ActID, log.Logger)
			if err != nil {
				return nil, err
			}
			sources = append(sources, scraper)
		case config.SourceSubprocess:
			sub, err := datasource.NewSubprocess(datasource.SubprocessConfig{
				Python: src.Python,
				Script: src.Script,
				ActID:  src.ActID,
			}, nil, log.Logger)
			if err != nil {
				return nil, err
			}
			sources = append(sources, sub)
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}

	return datasource.NewChain(log.Logger, sources...), nil
}

func logCacheStats(store cache.Store, logger zerolog.Logger) {
	if mem, ok := store.(*cache.MemoryStore); ok {
		stats := mem.Stats()
		logger.Info().
			Str("backend", stats.Backend).
			Int("size", stats.Size).
			Int("capacity", stats.Capacity).
			Msg("Cache statistics")
	}
}
