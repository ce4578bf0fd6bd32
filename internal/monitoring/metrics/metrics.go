package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for continuous monitoring.
type Metrics struct {
	RecordsAdded    prometheus.Counter
	Checks          *prometheus.CounterVec
	ChangesDetected prometheus.Counter
	NotifyFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		RecordsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_monitoring_records_added_total",
			Help: "Documents put under monitoring",
		}),
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_monitoring_checks_total",
			Help: "Monitoring re-checks, by outcome",
		}, []string{"outcome"}),
		ChangesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_monitoring_changes_detected_total",
			Help: "Re-checks whose restriction count differed from the stored one",
		}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_monitoring_notify_failures_total",
			Help: "Change notifications that could not be published",
		}),
	}
}

func (m *Metrics) IncAdded() {
	if m == nil {
		return
	}
	m.RecordsAdded.Inc()
}

// IncCheck counts a re-check; outcome is "ok" or "error".
func (m *Metrics) IncCheck(outcome string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncChange() {
	if m == nil {
		return
	}
	m.ChangesDetected.Inc()
}

func (m *Metrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
