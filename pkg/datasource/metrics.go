package datasource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for data source operations.
var (
	sourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_source_requests_total",
		Help: "Data source calls by source, operation and result",
	}, []string{"source", "operation", "result"})

	sourceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lookup_source_request_duration_seconds",
		Help:    "Data source call duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source", "operation"})

	sourceRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_source_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	sourceRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_source_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Operation labels.
const (
	opLeaderboard = "leaderboard_page"
	opPlayerStats = "player_stats"
)
