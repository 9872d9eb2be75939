package workflows

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/deepagent/internal/workflows"

// Metrics holds the instruments recorded by activities and the strategy.
// A nil *Metrics records nothing.
type Metrics struct {
	workflowCounter  metric.Int64Counter
	workflowDuration metric.Float64Histogram
	activityDuration metric.Float64Histogram
	activityErrors   metric.Int64Counter
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments created once from the global meter
// provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(nil)
	})
	return defaultMetrics
}

// NewMetrics creates the instruments from meter, or from the global meter
// provider when meter is nil. Instruments that fail to register are left
// nil and skipped.
func NewMetrics(meter metric.Meter) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}

	m.workflowCounter, _ = meter.Int64Counter(
		"deepagent.workflows.subagent.executions",
		metric.WithDescription("Total number of sub-agent workflow executions"),
		metric.WithUnit("{execution}"),
	)
	m.workflowDuration, _ = meter.Float64Histogram(
		"deepagent.workflows.subagent.duration",
		metric.WithDescription("Duration of sub-agent workflow executions"),
		metric.WithUnit("s"),
	)
	m.activityDuration, _ = meter.Float64Histogram(
		"deepagent.workflows.activity.duration",
		metric.WithDescription("Duration of objective activity executions"),
		metric.WithUnit("s"),
	)
	m.activityErrors, _ = meter.Int64Counter(
		"deepagent.workflows.activity.errors",
		metric.WithDescription("Number of objective activity errors"),
		metric.WithUnit("{error}"),
	)
	return m
}

func (m *Metrics) recordWorkflow(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.workflowCounter != nil {
		m.workflowCounter.Add(ctx, 1, attrs)
	}
	if m.workflowDuration != nil {
		m.workflowDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (m *Metrics) recordActivity(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	if m.activityDuration != nil {
		m.activityDuration.Record(ctx, d.Seconds())
	}
	if err != nil && m.activityErrors != nil {
		m.activityErrors.Add(ctx, 1)
	}
}
