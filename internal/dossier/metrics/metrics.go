package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the dossier module.
type Metrics struct {
	DossiersCreated   *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	DecisionConflicts prometheus.Counter
	AggregateDuration prometheus.Histogram
	BatchSize         prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		DossiersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_dossiers_created_total",
			Help: "Dossiers created, by risk level",
		}, []string{"risk_level"}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_dossier_decisions_total",
			Help: "Recorded compliance decisions, by status",
		}, []string{"status"}),
		DecisionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_dossier_decision_conflicts_total",
			Help: "Decision attempts rejected because a decision was already recorded",
		}),
		AggregateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycdesk_dossier_aggregate_duration_seconds",
			Help:    "Time spent screening upstream sources while creating a dossier",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 20, 30},
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycdesk_dossier_batch_size",
			Help:    "Documents submitted per batch request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) IncCreated(riskLevel string) {
	if m == nil {
		return
	}
	m.DossiersCreated.WithLabelValues(riskLevel).Inc()
}

func (m *Metrics) IncDecision(status string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDecisionConflict() {
	if m == nil {
		return
	}
	m.DecisionConflicts.Inc()
}

// ObserveAggregate records screening time. Call with time.Now() taken before the screen.
func (m *Metrics) ObserveAggregate(start time.Time) {
	if m == nil {
		return
	}
	m.AggregateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}
