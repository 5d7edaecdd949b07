// Package metrics holds the HTTP surface metrics and exposes the registry.
// Component metrics are defined in their respective packages (cache,
// ratelimit, datasource, lookup) and registered via promauto.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

var (
	// HTTPRequests counts handled requests by route, method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPDuration observes request latency by route.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookup_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lookup_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	})
)

// ObserveRequest records one completed request.
func ObserveRequest(route, method string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// HTTP Metrics (pkg/metrics):
//   - lookup_http_requests_total{route, method, status} (Counter)
//   - lookup_http_request_duration_seconds{route} (Histogram)
//   - lookup_http_requests_in_flight (Gauge)
//
// Lookup Metrics (pkg/lookup):
//   - lookup_requests_total{result} (Counter): Batches by result (ok, invalid, timeout, internal_error)
//   - lookup_duration_seconds (Histogram): Batch duration
//   - lookup_outcomes_total{kind} (Counter): Per-input outcomes (success, error)
//   - lookup_page_fetches_total{result} (Counter): Leaderboard page resolutions (hit, fetched, error)
//   - lookup_stats_fetches_total{result} (Counter): Player stats resolutions (hit, fetched, error)
//
// Cache Metrics (pkg/cache):
//   - lookup_cache_hits_total{backend} (Counter)
//   - lookup_cache_misses_total{backend} (Counter)
//   - lookup_cache_evictions_total{backend, reason} (Counter): reason is capacity or expired
//   - lookup_cache_errors_total{backend, operation} (Counter)
//   - lookup_cache_entries{backend} (Gauge)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - lookup_rate_limit_decisions_total{backend, result} (Counter): allowed, denied, blocked
//   - lookup_rate_limit_blocks_total{backend} (Counter): Clients that entered a block
//   - lookup_rate_limit_fallbacks_total (Counter): Checks served in-process after a Redis failure
//   - lookup_rate_limit_tracked_clients (Gauge)
//
// Data Source Metrics (pkg/datasource):
//   - lookup_source_requests_total{source, operation, result} (Counter)
//   - lookup_source_request_duration_seconds{source, operation} (Histogram)
//   - lookup_source_retries_total{error_class} (Counter)
//   - lookup_source_retry_exhausted_total{error_class} (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(lookup_cache_hits_total[5m])) /
//   (sum(rate(lookup_cache_hits_total[5m])) + sum(rate(lookup_cache_misses_total[5m])))
//
//   # Rejected Clients
//   rate(lookup_rate_limit_decisions_total{result!="allowed"}[5m])
//
//   # Upstream Error Rate
//   sum(rate(lookup_source_requests_total{result="error"}[5m])) by (source)
//
//   # P95 Batch Latency
//   histogram_quantile(0.95, rate(lookup_duration_seconds_bucket[5m]))
