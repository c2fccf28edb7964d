// Package metrics registers Prometheus instrumentation for check outcomes,
// cache behavior, circuit breaker state, and worker pool saturation.
// Grounded on the teacher's prometheus/client_golang dependency (carried
// in go.mod but previously unused) and the pack's promauto registration
// style (yourflock-roost's internal/metrics). This package never starts an
// HTTP listener; exposing /metrics is an embedder's decision, not this
// core's (spec's non-goals exclude a bundled observability surface).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts liveness/metadata checks by mode and outcome.
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamwatch_checks_total",
		Help: "Total stream checks performed, by mode and outcome.",
	}, []string{"mode", "outcome"})

	// CacheHits counts status cache lookups by hit/miss.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamwatch_cache_lookups_total",
		Help: "Status cache lookups, by result.",
	}, []string{"result"})

	// CircuitBreakerState reports each named breaker's current state as a
	// gauge (0=closed, 1=half_open, 2=open) so dashboards can alert on
	// sustained non-zero values.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamwatch_circuit_breaker_state",
		Help: "Circuit breaker state per named breaker (0=closed, 1=half_open, 2=open).",
	}, []string{"breaker"})

	// RateLimitDenials counts rate limiter denials by bucket.
	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamwatch_ratelimit_denials_total",
		Help: "Rate limiter acquisition denials, by bucket.",
	}, []string{"bucket"})

	// WorkerPoolInFlight tracks concurrently running tasks per pipeline phase.
	WorkerPoolInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamwatch_worker_pool_in_flight",
		Help: "Tasks currently running per batch pipeline phase.",
	}, []string{"phase"})

	// ProbeDuration tracks external probe invocation latency.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamwatch_probe_duration_seconds",
		Help:    "External probe binary invocation latency, by mode.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
)

// BreakerStateValue maps a breaker state name to the gauge value CircuitBreakerState expects.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
