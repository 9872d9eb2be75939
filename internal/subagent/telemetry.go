package subagent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/deepagent/internal/subagent"

// Metrics holds the sub-agent instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	createdTotal   metric.Int64Counter
	completedTotal metric.Int64Counter
	failedTotal    metric.Int64Counter
	cancelledTotal metric.Int64Counter
	rejectedTotal  metric.Int64Counter

	running metric.Int64UpDownCounter

	duration metric.Float64Histogram

	initialized bool
}

// NewMetrics creates the instruments. If meter is nil the global meter
// provider is used.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.createdTotal, "subagent.created.total", "Sub-agents created"},
		{&m.completedTotal, "subagent.completed.total", "Sub-agent executions that completed"},
		{&m.failedTotal, "subagent.failed.total", "Sub-agent executions that failed"},
		{&m.cancelledTotal, "subagent.cancelled.total", "Sub-agent executions that were cancelled"},
		{&m.rejectedTotal, "subagent.rejected.total", "Sub-agent creations rejected by the live cap"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("{agent}"))
		if err != nil {
			return nil, err
		}
	}

	m.running, err = meter.Int64UpDownCounter(
		"subagent.running.count",
		metric.WithDescription("Sub-agents currently executing"),
		metric.WithUnit("{agent}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"subagent.execution.duration.seconds",
		metric.WithDescription("Duration of sub-agent executions"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.initialized
}

// RecordCreated records an agent creation.
func (m *Metrics) RecordCreated(ctx context.Context, t Type) {
	if !m.enabled() {
		return
	}
	m.createdTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(t))))
}

// RecordRejected records a creation refused by the cap.
func (m *Metrics) RecordRejected(ctx context.Context) {
	if !m.enabled() {
		return
	}
	m.rejectedTotal.Add(ctx, 1)
}

// RecordStarted records the start of an execution.
func (m *Metrics) RecordStarted(ctx context.Context, t Type) {
	if !m.enabled() {
		return
	}
	m.running.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(t))))
}

// RecordCompleted records a successful execution.
func (m *Metrics) RecordCompleted(ctx context.Context, t Type, d time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", string(t)))
	m.completedTotal.Add(ctx, 1, attrs)
	m.finish(ctx, attrs, d)
}

// RecordFailed records a failed execution. reason is "error" or "timeout".
func (m *Metrics) RecordFailed(ctx context.Context, t Type, reason string, d time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("type", string(t)),
		attribute.String("failure_reason", reason),
	)
	m.failedTotal.Add(ctx, 1, attrs)
	m.finish(ctx, metric.WithAttributes(attribute.String("type", string(t))), d)
}

// RecordCancelled records a cancelled execution.
func (m *Metrics) RecordCancelled(ctx context.Context, t Type, d time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", string(t)))
	m.cancelledTotal.Add(ctx, 1, attrs)
	m.finish(ctx, attrs, d)
}

func (m *Metrics) finish(ctx context.Context, attrs metric.MeasurementOption, d time.Duration) {
	m.running.Add(ctx, -1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// Tracer returns the package tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a span tagged with the agent id and type.
func StartSpan(ctx context.Context, name, agentID string, t Type) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("subagent.type", string(t))}
	if agentID != "" {
		attrs = append(attrs, attribute.String("subagent.id", agentID))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
	}
}

// SetSpanStatus sets the status on the current span.
func SetSpanStatus(ctx context.Context, code codes.Code, description string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetStatus(code, description)
	}
}
