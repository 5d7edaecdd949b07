package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for lookup orchestration.
var (
	lookupRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_requests_total",
		Help: "Batch lookups by result (ok, invalid, timeout, internal_error)",
	}, []string{"result"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lookup_duration_seconds",
		Help:    "Batch lookup duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	lookupOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_outcomes_total",
		Help: "Per-input outcomes by kind (success, error)",
	}, []string{"kind"})

	lookupPageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_page_fetches_total",
		Help: "Leaderboard page resolutions by result (cache_hit, fetched, failed)",
	}, []string{"result"})

	lookupStatsFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_stats_fetches_total",
		Help: "Player stats resolutions by result (cache_hit, fetched, shared, failed)",
	}, []string{"result"})
)
