package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for admission control.
var (
	rateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_rate_limit_decisions_total",
		Help: "Admission decisions by backend and result",
	}, []string{"backend", "result"}) // "allowed", "denied", "blocked"

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_rate_limit_blocks_total",
		Help: "Total number of clients that entered a block",
	}, []string{"backend"})

	rateLimitFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookup_rate_limit_fallbacks_total",
		Help: "Admission checks served by the in-process limiter after a Redis failure",
	})

	rateLimitTrackedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lookup_rate_limit_tracked_clients",
		Help: "Number of clients tracked by the in-process limiter",
	})
)

func recordDecision(backend string, d Decision) {
	switch {
	case d.Allowed:
		rateLimitDecisionsTotal.WithLabelValues(backend, "allowed").Inc()
	case d.Blocked:
		rateLimitDecisionsTotal.WithLabelValues(backend, "blocked").Inc()
	default:
		rateLimitDecisionsTotal.WithLabelValues(backend, "denied").Inc()
	}
}
