// Package config loads the service configuration from an optional YAML file
// followed by LOOKUP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/lookup"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"gopkg.in/yaml.v3"
)

// Source names accepted in source.chain.
const (
	SourceTrackerAPI         = "tracker_api"
	SourceLeaderboardScraper = "leaderboard_scraper"
	SourceSubprocess         = "subprocess"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Lookup    LookupConfig    `yaml:"lookup"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Source    SourceConfig    `yaml:"source"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigin   string        `yaml:"allowed_origin"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	TrustProxyHeaders bool  `yaml:"trust_proxy_headers"`
	MaxBodyBytes      int64 `yaml:"max_body_bytes"`
}

// LookupConfig bounds a single batch.
type LookupConfig struct {
	MaxBatch         int           `yaml:"max_batch"`
	MaxRank          int           `yaml:"max_rank"`
	PageSize         int           `yaml:"page_size"`
	PageConcurrency  int           `yaml:"page_concurrency"`
	StatsConcurrency int           `yaml:"stats_concurrency"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RateLimitConfig selects and tunes the rate limiter backend.
type RateLimitConfig struct {
	Backend       string        `yaml:"backend"`
	Window        time.Duration `yaml:"window"`
	MaxRequests   int           `yaml:"max_requests"`
	BlockDuration time.Duration `yaml:"block_duration"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RedisConfig configures the shared Redis connection.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// SourceConfig configures the data source chain.
type SourceConfig struct {
	Chain             []string      `yaml:"chain"`
	TrackerAPIURL     string        `yaml:"tracker_api_url"`
	TrackerWebURL     string        `yaml:"tracker_web_url"`
	APIKey            string        `yaml:"api_key"`
	ActID             string        `yaml:"act_id"`
	Python            string        `yaml:"python"`
	Script            string        `yaml:"script"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	lk := lookup.DefaultConfig()
	rl := ratelimit.DefaultConfig()
	client := datasource.DefaultClientConfig()

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    lk.Timeout + 5*time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigin:   "*",
			MaxBodyBytes:    16 << 10,
		},
		Lookup: LookupConfig{
			MaxBatch:         lk.MaxBatch,
			MaxRank:          lk.MaxRank,
			PageSize:         lk.PageSize,
			PageConcurrency:  lk.PageConcurrency,
			StatsConcurrency: lk.StatsConcurrency,
			Timeout:          lk.Timeout,
		},
		Cache: CacheConfig{
			Backend:       cache.BackendMemory,
			TTL:           cache.DefaultTTL,
			MaxEntries:    cache.DefaultMaxEntries,
			SweepInterval: cache.DefaultSweepInterval,
		},
		RateLimit: RateLimitConfig{
			Backend:       ratelimit.BackendMemory,
			Window:        rl.Window,
			MaxRequests:   rl.MaxRequests,
			BlockDuration: rl.BlockDuration,
			SweepInterval: rl.SweepInterval,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		Source: SourceConfig{
			Chain:             []string{SourceTrackerAPI, SourceLeaderboardScraper, SourceSubprocess},
			TrackerAPIURL:     datasource.DefaultTrackerAPIURL,
			TrackerWebURL:     datasource.DefaultTrackerWebURL,
			ActID:             datasource.DefaultActID,
			Python:            "python3",
			Script:            "python/scraper.py",
			UserAgent:         client.UserAgent,
			RequestsPerSecond: client.RequestsPerSecond,
			Burst:             client.Burst,
			Timeout:           client.Timeout,
			MaxAttempts:       datasource.DefaultRetryConfig().MaxAttempts,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file and environment variables.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(cfg, os.Getenv)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment applies overrides. Unparseable values are ignored.
func loadFromEnvironment(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	// Server configuration
	str("LOOKUP_HOST", &cfg.Server.Host)
	integer("PORT", &cfg.Server.Port)
	integer("LOOKUP_PORT", &cfg.Server.Port)
	duration("LOOKUP_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	duration("LOOKUP_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	duration("LOOKUP_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	duration("LOOKUP_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	str("ALLOWED_ORIGIN", &cfg.Server.AllowedOrigin)
	str("LOOKUP_ALLOWED_ORIGIN", &cfg.Server.AllowedOrigin)
	boolean("LOOKUP_TRUST_PROXY_HEADERS", &cfg.Server.TrustProxyHeaders)

	// Lookup configuration
	integer("LOOKUP_MAX_BATCH", &cfg.Lookup.MaxBatch)
	integer("LOOKUP_PAGE_CONCURRENCY", &cfg.Lookup.PageConcurrency)
	integer("LOOKUP_STATS_CONCURRENCY", &cfg.Lookup.StatsConcurrency)
	duration("LOOKUP_TIMEOUT", &cfg.Lookup.Timeout)

	// Cache configuration
	str("LOOKUP_CACHE_BACKEND", &cfg.Cache.Backend)
	duration("LOOKUP_CACHE_TTL", &cfg.Cache.TTL)
	integer("LOOKUP_CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)
	duration("LOOKUP_CACHE_SWEEP_INTERVAL", &cfg.Cache.SweepInterval)

	// Rate limit configuration
	str("LOOKUP_RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)
	duration("LOOKUP_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	integer("LOOKUP_RATE_LIMIT_MAX_REQUESTS", &cfg.RateLimit.MaxRequests)
	duration("LOOKUP_RATE_LIMIT_BLOCK_DURATION", &cfg.RateLimit.BlockDuration)

	// Redis configuration
	str("REDIS_URL", &cfg.Redis.Addr)
	str("LOOKUP_REDIS_ADDR", &cfg.Redis.Addr)
	str("LOOKUP_REDIS_PASSWORD", &cfg.Redis.Password)
	integer("LOOKUP_REDIS_DB", &cfg.Redis.DB)

	// Source configuration
	if v := getenv("LOOKUP_SOURCE_CHAIN"); v != "" {
		cfg.Source.Chain = splitList(v)
	}
	str("TRN_API_KEY", &cfg.Source.APIKey)
	str("LOOKUP_TRN_API_KEY", &cfg.Source.APIKey)
	str("VALORANT_ACT_ID", &cfg.Source.ActID)
	str("LOOKUP_ACT_ID", &cfg.Source.ActID)
	str("LOOKUP_TRACKER_API_URL", &cfg.Source.TrackerAPIURL)
	str("LOOKUP_TRACKER_WEB_URL", &cfg.Source.TrackerWebURL)
	str("LOOKUP_PYTHON", &cfg.Source.Python)
	str("LOOKUP_SCRAPER_SCRIPT", &cfg.Source.Script)
	duration("LOOKUP_SOURCE_TIMEOUT", &cfg.Source.Timeout)
	integer("LOOKUP_SOURCE_MAX_ATTEMPTS", &cfg.Source.MaxAttempts)

	// Logging configuration
	str("LOOKUP_LOG_LEVEL", &cfg.Logging.Level)
	boolean("LOOKUP_LOG_PRETTY", &cfg.Logging.Pretty)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalize canonicalizes values that have several equivalent spellings.
func (c *Config) normalize() {
	c.Server.AllowedOrigin = strings.TrimSuffix(strings.TrimSpace(c.Server.AllowedOrigin), "/")
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.RateLimit.Backend = strings.ToLower(strings.TrimSpace(c.RateLimit.Backend))
	for i, name := range c.Source.Chain {
		c.Source.Chain[i] = strings.ToLower(strings.TrimSpace(name))
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}

	if c.Lookup.MaxBatch <= 0 {
		errs = append(errs, errors.New("lookup.max_batch must be positive"))
	}
	if c.Lookup.MaxRank <= 0 {
		errs = append(errs, errors.New("lookup.max_rank must be positive"))
	}
	if c.Lookup.PageSize <= 0 {
		errs = append(errs, errors.New("lookup.page_size must be positive"))
	}
	if c.Lookup.Timeout <= 0 {
		errs = append(errs, errors.New("lookup.timeout must be positive"))
	}

	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be %q or %q, got %q", cache.BackendMemory, cache.BackendRedis, c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive"))
	}

	switch c.RateLimit.Backend {
	case ratelimit.BackendMemory, ratelimit.BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend must be %q or %q, got %q", ratelimit.BackendMemory, ratelimit.BackendRedis, c.RateLimit.Backend))
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.BlockDuration <= 0 {
		errs = append(errs, errors.New("rate_limit.window and rate_limit.block_duration must be positive"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate_limit.max_requests must be positive"))
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when a redis backend is selected"))
	}

	if len(c.Source.Chain) == 0 {
		errs = append(errs, errors.New("source.chain must name at least one source"))
	}
	for _, name := range c.Source.Chain {
		switch name {
		case SourceTrackerAPI, SourceLeaderboardScraper, SourceSubprocess:
		default:
			errs = append(errs, fmt.Errorf("source.chain: unknown source %q", name))
		}
	}
	if err := datasource.ValidateActID(c.Source.ActID); err != nil {
		errs = append(errs, fmt.Errorf("source.act_id: %w", err))
	}
	if c.Source.MaxAttempts <= 0 {
		errs = append(errs, errors.New("source.max_attempts must be positive"))
	}

	return errors.Join(errs...)
}

// UsesRedis reports whether any backend needs the Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == cache.BackendRedis || c.RateLimit.Backend == ratelimit.BackendRedis
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
