package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers upstream source latency, outcomes and the source cache.
type Metrics struct {
	SourceDuration *prometheus.HistogramVec
	SourceOutcome  *prometheus.CounterVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		SourceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycdesk_source_fetch_duration_seconds",
			Help:    "Upstream source fetch latency, including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),
		SourceOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_source_fetch_total",
			Help: "Upstream source fetches by outcome (ok or an error category)",
		}, []string{"source", "outcome"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_source_cache_hits_total",
			Help: "Source results served from cache",
		}, []string{"source"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_source_cache_misses_total",
			Help: "Source cache lookups that found nothing",
		}, []string{"source"}),
	}
}

func (m *Metrics) ObserveFetch(source, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	m.SourceOutcome.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncCacheHit(source string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(source).Inc()
}

func (m *Metrics) IncCacheMiss(source string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(source).Inc()
}
