package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Field keys for correlation identifiers.
const (
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldRunID     = "run.id"
	FieldTaskID    = "task.id"
	FieldAgentID   = "agent.id"
	FieldRequestID = "request.id"
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

type ctxKey int

const (
	runKey ctxKey = iota
	taskKey
	agentKey
	requestKey
	loggerKey
)

// ContextFields returns the correlation fields stored on ctx, starting with
// the active span if there is one.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String(FieldTraceID, sc.TraceID().String()),
			zap.String(FieldSpanID, sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	for _, k := range []struct {
		key   ctxKey
		field string
	}{
		{runKey, FieldRunID},
		{taskKey, FieldTaskID},
		{agentKey, FieldAgentID},
		{requestKey, FieldRequestID},
	} {
		if v, ok := ctx.Value(k.key).(string); ok {
			fields = append(fields, zap.String(k.field, v))
		}
	}
	return fields
}

func withID(ctx context.Context, key ctxKey, name, id string) context.Context {
	if err := validateID(id); err != nil {
		panic(fmt.Sprintf("logging: %s: %v", name, err))
	}
	return context.WithValue(ctx, key, id)
}

func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("empty id")
	case len(id) > maxIDLen:
		return fmt.Errorf("id longer than %d bytes", maxIDLen)
	case !idPattern.MatchString(id):
		return fmt.Errorf("id %q has characters outside [A-Za-z0-9_.:-]", id)
	}
	return nil
}

// ValidID reports whether id is accepted by the With*ID setters.
func ValidID(id string) bool {
	return validateID(id) == nil
}

// WithRunID tags ctx with an orchestrator run. It panics on an invalid id.
func WithRunID(ctx context.Context, id string) context.Context {
	return withID(ctx, runKey, "run id", id)
}

// WithTaskID tags ctx with a plan task. It panics on an invalid id.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withID(ctx, taskKey, "task id", id)
}

// WithAgentID tags ctx with a sub-agent. It panics on an invalid id.
func WithAgentID(ctx context.Context, id string) context.Context {
	return withID(ctx, agentKey, "agent id", id)
}

// WithRequestID tags ctx with an inbound request. It panics on an invalid id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestKey, "request id", id)
}

func RunIDFromContext(ctx context.Context) string     { return stringValue(ctx, runKey) }
func TaskIDFromContext(ctx context.Context) string    { return stringValue(ctx, taskKey) }
func AgentIDFromContext(ctx context.Context) string   { return stringValue(ctx, agentKey) }
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestKey) }

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithLogger stores l on ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored on ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}
