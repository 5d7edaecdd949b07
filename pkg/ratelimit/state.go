// Package ratelimit implements per-client admission control for the lookup
// endpoint: a sliding-window request counter with an escalating block.
// A client that exceeds the request threshold inside the window is blocked
// for a fixed duration, regardless of further activity, then cleared.
package ratelimit

import (
	"context"
	"time"
)

// Backend names used for metrics labels and configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Defaults for admission control.
const (
	// DefaultWindow is the trailing window in which requests are counted.
	DefaultWindow = 60 * time.Second

	// DefaultMaxRequests is the number of requests admitted per window.
	DefaultMaxRequests = 10

	// DefaultBlockDuration is how long a violating client stays blocked.
	DefaultBlockDuration = 15 * time.Minute

	// DefaultSweepInterval is how often idle in-process state is dropped.
	DefaultSweepInterval = 5 * time.Minute
)

// Config holds limiter thresholds.
type Config struct {
	Window        time.Duration
	MaxRequests   int
	BlockDuration time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Window:        DefaultWindow,
		MaxRequests:   DefaultMaxRequests,
		BlockDuration: DefaultBlockDuration,
		SweepInterval: DefaultSweepInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.BlockDuration <= 0 {
		c.BlockDuration = DefaultBlockDuration
	}
	return c
}

// Limiter decides whether a client may proceed. Implementations must be safe
// for concurrent use. Every call mutates the client's state.
type Limiter interface {
	// Admit records a request from key and returns the decision.
	Admit(ctx context.Context, key string) Decision

	// Close stops background goroutines and releases resources.
	Close() error
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// Blocked is true when the client is inside a block period.
	Blocked bool

	// Limit is the configured threshold per window.
	Limit int

	// Remaining is how many more requests the window admits.
	Remaining int

	// Window is the counting window.
	Window time.Duration

	// ResetAt is when the window or block clears. Zero when unknown.
	ResetAt time.Time
}

// RetryAfter returns the wait until ResetAt, or 0 if it already passed.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.IsZero() {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
