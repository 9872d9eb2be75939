package subagent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Logger wraps zap.Logger with one method per sub-agent lifecycle event.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a Logger. If logger is nil, a no-op logger is used.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("subagent")}
}

func (l *Logger) AgentCreated(ctx context.Context, agentID, name string, t Type, task string) {
	if l == nil {
		return
	}
	l.logger.Info("sub-agent created", l.with(ctx,
		zap.String("agent_id", agentID),
		zap.String("name", name),
		zap.String("type", string(t)),
		zap.String("task", task))...)
}

func (l *Logger) AgentStarted(ctx context.Context, agentID, task string) {
	if l == nil {
		return
	}
	l.logger.Debug("sub-agent started", l.with(ctx,
		zap.String("agent_id", agentID),
		zap.String("task", task))...)
}

func (l *Logger) AgentCompleted(ctx context.Context, agentID string, iterations int, d time.Duration) {
	if l == nil {
		return
	}
	l.logger.Info("sub-agent completed", l.with(ctx,
		zap.String("agent_id", agentID),
		zap.Int("iterations", iterations),
		zap.Duration("duration", d))...)
}

func (l *Logger) AgentFailed(ctx context.Context, agentID, reason string, d time.Duration) {
	if l == nil {
		return
	}
	l.logger.Warn("sub-agent failed", l.with(ctx,
		zap.String("agent_id", agentID),
		zap.String("reason", reason),
		zap.Duration("duration", d))...)
}

func (l *Logger) AgentCancelled(ctx context.Context, agentID string) {
	if l == nil {
		return
	}
	l.logger.Info("sub-agent cancelled", l.with(ctx, zap.String("agent_id", agentID))...)
}

// CapReached logs a creation refused because the live cap was reached.
func (l *Logger) CapReached(ctx context.Context, limit int, task string) {
	if l == nil {
		return
	}
	l.logger.Warn("sub-agent cap reached", l.with(ctx,
		zap.Int("max_sub_agents", limit),
		zap.String("task", task))...)
}

func (l *Logger) UnknownAgent(ctx context.Context, agentID string) {
	if l == nil {
		return
	}
	l.logger.Warn("sub-agent not found", l.with(ctx, zap.String("agent_id", agentID))...)
}

func (l *Logger) Cleanup(ctx context.Context, removed int) {
	if l == nil {
		return
	}
	l.logger.Debug("cleaned up sub-agents", l.with(ctx, zap.Int("removed", removed))...)
}

// Error logs an error with trace context.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.logger.Error(msg, l.with(ctx, append([]zap.Field{zap.Error(err)}, fields...)...)...)
}

// with appends trace correlation fields from ctx.
func (l *Logger) with(ctx context.Context, fields ...zap.Field) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return fields
	}
	return append(fields,
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()))
}
