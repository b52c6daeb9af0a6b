package application

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "handlekeeper"

// Metrics collects reconciliation counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	outcomes      *prometheus.CounterVec
	fetchFailures prometheus.Counter
	conflicts     prometheus.Gauge
	watched       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them to reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconcile_outcomes_total",
			Help:      "Reconciliation outcomes by verdict.",
		}, []string{"verdict"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registry_fetch_failures_total",
			Help:      "Failed registry status fetches.",
		}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "handle_conflicts",
			Help:      "Handles currently in conflict with another key.",
		}),
		watched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "watched_handles",
			Help:      "Handles being polled.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes, m.fetchFailures, m.conflicts, m.watched)
	}
	return m
}

func (m *Metrics) observeOutcome(v Verdict) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(v.String()).Inc()
}

func (m *Metrics) observeFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) setConflicts(n int) {
	if m == nil {
		return
	}
	m.conflicts.Set(float64(n))
}

func (m *Metrics) watchStarted() {
	if m == nil {
		return
	}
	m.watched.Inc()
}

func (m *Metrics) watchStopped() {
	if m == nil {
		return
	}
	m.watched.Dec()
}
