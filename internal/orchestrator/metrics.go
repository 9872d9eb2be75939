package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	// RunsTotal counts finished runs.
	// Labels: outcome (done, error)
	RunsTotal *prometheus.CounterVec

	// ActiveRuns is 1 while a run is in progress.
	ActiveRuns prometheus.Gauge

	// PhaseDuration observes time spent per phase.
	// Labels: phase
	PhaseDuration *prometheus.HistogramVec

	// TasksTotal counts executed tasks.
	// Labels: outcome (completed, blocked)
	TasksTotal *prometheus.CounterVec

	// DelegationsTotal counts delegation attempts.
	// Labels: result (delegated, refused, failed)
	DelegationsTotal *prometheus.CounterVec
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns metrics registered once on the default registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepagent",
				Subsystem: "orchestrator",
				Name:      "runs_total",
				Help:      "Total number of finished runs by outcome",
			},
			[]string{"outcome"},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "deepagent",
				Subsystem: "orchestrator",
				Name:      "active_runs",
				Help:      "Runs currently in progress",
			},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "deepagent",
				Subsystem: "orchestrator",
				Name:      "phase_duration_seconds",
				Help:      "Duration of run phases in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		TasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepagent",
				Subsystem: "orchestrator",
				Name:      "tasks_total",
				Help:      "Total number of executed tasks by outcome",
			},
			[]string{"outcome"},
		),
		DelegationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepagent",
				Subsystem: "orchestrator",
				Name:      "delegations_total",
				Help:      "Total number of sub-agent delegation attempts by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

func (m *Metrics) runFinished(outcome Phase) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) observePhase(p Phase, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(string(p)).Observe(d.Seconds())
}

func (m *Metrics) task(success bool) {
	if m == nil {
		return
	}
	outcome := "completed"
	if !success {
		outcome = "blocked"
	}
	m.TasksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) delegation(result string) {
	if m == nil {
		return
	}
	m.DelegationsTotal.WithLabelValues(result).Inc()
}
