package cache

import (
	"bytes"
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for the in-process backend.
const (
	DefaultTTL           = 6 * time.Hour
	DefaultMaxEntries    = 10000
	DefaultSweepInterval = 30 * time.Minute
)

type memoryItem struct {
	key   string
	entry Entry
}

// MemoryStore is an in-process Store. Entries expire lazily on read and in a
// periodic sweep. Once MaxEntries is reached, inserting a new key evicts the
// oldest inserted entry; reads do not refresh an entry's position.
type MemoryStore struct {
	ttl           time.Duration
	maxEntries    int
	sweepInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insertion

	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL sets how long entries stay live.
func WithTTL(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.ttl = d }
}

// WithMaxEntries sets the capacity bound.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryStore) { m.maxEntries = n }
}

// WithSweepInterval sets the background sweep period. Zero disables the sweeper.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.sweepInterval = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger zerolog.Logger) MemoryOption {
	return func(m *MemoryStore) { m.logger = logger }
}

// NewMemoryStore creates an in-process store and starts its sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		ttl:           DefaultTTL,
		maxEntries:    DefaultMaxEntries,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        zerolog.Nop(),
		entries:       make(map[string]*list.Element),
		order:         list.New(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxEntries <= 0 {
		m.maxEntries = DefaultMaxEntries
	}

	if m.sweepInterval > 0 {
		go m.sweep()
	}
	return m
}

// Get returns the live value for key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, false
	}

	item := elem.Value.(*memoryItem)
	if item.entry.IsExpired(m.now(), m.ttl) {
		m.removeLocked(elem)
		CacheEvictions.WithLabelValues(BackendMemory, "expired").Inc()
		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(BackendMemory).Inc()
	return bytes.Clone(item.entry.Value), true
}

// Set stores value under key. Overwriting a key counts as a fresh insertion.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) {
	entry := Entry{Value: bytes.Clone(value), StoredAt: m.now()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		elem.Value.(*memoryItem).entry = entry
		m.order.MoveToBack(elem)
		return
	}

	for m.order.Len() >= m.maxEntries {
		m.removeLocked(m.order.Front())
		CacheEvictions.WithLabelValues(BackendMemory, "capacity").Inc()
	}

	m.entries[key] = m.order.PushBack(&memoryItem{key: key, entry: entry})
	CacheEntries.WithLabelValues(BackendMemory).Set(float64(m.order.Len()))
}

// Has reports whether key holds a live entry.
func (m *MemoryStore) Has(ctx context.Context, key string) bool {
	_, ok := m.Get(ctx, key)
	return ok
}

// EvictExpired removes every expired entry.
func (m *MemoryStore) EvictExpired(_ context.Context) int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for elem := m.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*memoryItem).entry.IsExpired(now, m.ttl) {
			m.removeLocked(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		CacheEvictions.WithLabelValues(BackendMemory, "expired").Add(float64(removed))
	}
	return removed
}

// Len returns the number of held entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Stats describes the store for logging.
type Stats struct {
	Backend  string `json:"backend"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Stats returns current occupancy.
func (m *MemoryStore) Stats() Stats {
	return Stats{Backend: BackendMemory, Size: m.Len(), Capacity: m.maxEntries}
}

// Close stops the sweeper. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// removeLocked drops elem; m.mu must be held.
func (m *MemoryStore) removeLocked(elem *list.Element) {
	item := m.order.Remove(elem).(*memoryItem)
	delete(m.entries, item.key)
	CacheEntries.WithLabelValues(BackendMemory).Set(float64(m.order.Len()))
}

func (m *MemoryStore) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if n := m.EvictExpired(context.Background()); n > 0 {
				m.logger.Debug().Int("evicted", n).Msg("Cache sweep removed expired entries")
			}
		}
	}
}
