package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/rs/zerolog"
)

// clientState is the per-key sliding window plus block marker.
type clientState struct {
	mu           sync.Mutex
	timestamps   []time.Time // ascending, within the window
	blockedUntil time.Time
}

// prune drops timestamps that left the window ending at now.
func (s *clientState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s.timestamps) && !s.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.timestamps = append(s.timestamps[:0], s.timestamps[i:]...)
	}
}

// idle reports whether the state carries nothing worth keeping at now.
func (s *clientState) idle(now time.Time, window time.Duration) bool {
	if now.Before(s.blockedUntil) {
		return false
	}
	s.prune(now, window)
	return len(s.timestamps) == 0
}

// MemoryLimiter is an in-process sliding-window limiter. A background
// goroutine periodically drops clients with no requests in the window and
// no active block.
type MemoryLimiter struct {
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*clientState

	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) { m.now = now }
}

// WithLogger sets the limiter logger.
func WithLogger(logger zerolog.Logger) MemoryOption {
	return func(m *MemoryLimiter) { m.logger = logger }
}

// NewMemoryLimiter creates an in-process limiter. A positive
// cfg.SweepInterval starts the cleanup goroutine.
func NewMemoryLimiter(cfg Config, opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		logger:  zerolog.Nop(),
		clients: make(map[string]*clientState),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cfg.SweepInterval > 0 {
		go m.cleanup()
	}
	return m
}

// Admit records a request from key.
func (m *MemoryLimiter) Admit(_ context.Context, key string) Decision {
	now := m.now()
	st := m.lockState(key)
	defer st.mu.Unlock()

	d := m.admitLocked(st, now)
	recordDecision(BackendMemory, d)

	if !d.Allowed && !d.Blocked {
		rateLimitBlocksTotal.WithLabelValues(BackendMemory).Inc()
		m.logger.Warn().
			Str(logging.FieldClient, key).
			Time("blocked_until", d.ResetAt).
			Msg("Client exceeded request threshold - blocking")
	}
	return d
}

// admitLocked applies one request to st; st.mu must be held.
// A denial that starts a new block is reported with Blocked=false so callers
// can tell the triggering request from requests rejected during the block.
func (m *MemoryLimiter) admitLocked(st *clientState, now time.Time) Decision {
	d := Decision{Limit: m.cfg.MaxRequests, Window: m.cfg.Window}

	if !st.blockedUntil.IsZero() {
		if now.Before(st.blockedUntil) {
			d.Blocked = true
			d.ResetAt = st.blockedUntil
			return d
		}
		st.blockedUntil = time.Time{}
		st.timestamps = st.timestamps[:0]
	}

	st.prune(now, m.cfg.Window)
	st.timestamps = append(st.timestamps, now)
	count := len(st.timestamps)

	if count > m.cfg.MaxRequests {
		st.blockedUntil = now.Add(m.cfg.BlockDuration)
		st.timestamps = st.timestamps[:0]
		d.ResetAt = st.blockedUntil
		return d
	}

	d.Allowed = true
	d.Remaining = m.cfg.MaxRequests - count
	d.ResetAt = st.timestamps[0].Add(m.cfg.Window)
	return d
}

// lockState returns the locked state for key, creating it if needed.
// The map lock is held until the state lock is taken, so the sweeper never
// drops a state that an admission is about to mutate.
func (m *MemoryLimiter) lockState(key string) *clientState {
	m.mu.Lock()
	st, ok := m.clients[key]
	if !ok {
		st = &clientState{}
		m.clients[key] = st
		rateLimitTrackedClients.Set(float64(len(m.clients)))
	}
	st.mu.Lock()
	m.mu.Unlock()
	return st
}

// Sweep drops idle clients and returns how many were removed.
func (m *MemoryLimiter) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, st := range m.clients {
		st.mu.Lock()
		if st.idle(now, m.cfg.Window) {
			delete(m.clients, key)
			removed++
		}
		st.mu.Unlock()
	}
	rateLimitTrackedClients.Set(float64(len(m.clients)))
	return removed
}

// Tracked returns the number of clients currently held.
func (m *MemoryLimiter) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Close stops the cleanup goroutine.
func (m *MemoryLimiter) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug().Int("removed", n).Msg("Rate limiter sweep removed idle clients")
			}
		}
	}
}
