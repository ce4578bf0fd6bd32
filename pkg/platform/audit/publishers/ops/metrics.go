package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ops audit tracking.
type Metrics struct {
	Tracked             prometheus.Counter
	Sampled             prometheus.Counter
	Dropped             *prometheus.CounterVec
	PersistFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Tracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_audit_ops_tracked_total",
			Help: "Operational audit events persisted",
		}),
		Sampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_audit_ops_sampled_total",
			Help: "Operational audit events dropped by sampling",
		}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_audit_ops_dropped_total",
			Help: "Operational audit events dropped before persistence, by reason",
		}, []string{"reason"}), // reason: "buffer_full", "circuit_open"
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_audit_ops_persist_failures_total",
			Help: "Operational audit event persistence failures",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kycdesk_audit_ops_circuit_breaker_state",
			Help: "Ops audit circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncTracked() {
	if m != nil {
		m.Tracked.Inc()
	}
}

func (m *Metrics) IncSampled() {
	if m != nil {
		m.Sampled.Inc()
	}
}

func (m *Metrics) IncDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
