// Package metrics registers the service's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	QueriesTotal      *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheEvictions    prometheus.Counter
	UpstreamRetries   prometheus.Counter
	RateLimitRejected prometheus.Counter
	QueryDuration     prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecplacas_queries_total",
			Help: "Plate queries by outcome (hit, fetched, failed).",
		}, []string{"outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecplacas_cache_hits_total",
			Help: "Cache lookups that returned a fresh entry.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecplacas_cache_misses_total",
			Help: "Cache lookups that found no fresh entry.",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecplacas_cache_evictions_total",
			Help: "Entries removed by capacity eviction or expiry sweep.",
		}),
		UpstreamRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecplacas_upstream_retries_total",
			Help: "Retried upstream registry calls.",
		}),
		RateLimitRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecplacas_rate_limit_rejected_total",
			Help: "Queries rejected by the caller-side rate limit.",
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecplacas_query_duration_seconds",
			Help:    "End-to-end plate query latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordQuery increments the outcome counter and observes the latency.
// Outcome is one of "hit", "fetched", "failed".
func (m *Metrics) RecordQuery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(elapsed.Seconds())
}

// RecordCacheHit and friends tolerate a nil receiver so components can treat
// metrics as optional.
func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) RecordEvictions(n int) {
	if m != nil && n > 0 {
		m.CacheEvictions.Add(float64(n))
	}
}

func (m *Metrics) RecordUpstreamRetry() {
	if m != nil {
		m.UpstreamRetries.Inc()
	}
}

func (m *Metrics) RecordRateLimitRejection() {
	if m != nil {
		m.RateLimitRejected.Inc()
	}
}
