package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// CacheEvictions tracks removed entries by reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"backend", "reason"}, // "capacity", "expired"
	)

	// CacheErrors tracks backend operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "exists"
	)

	// CacheEntries tracks the number of live entries held in process
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lookup_cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"backend"},
	)
)
