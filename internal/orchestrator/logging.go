package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with one method per run event.
type Logger struct {
	logger   *zap.Logger
	progress zapcore.Level
}

// NewLogger creates a Logger. If logger is nil, a no-op logger is used.
// Per-task progress is logged at debug level unless verbose is set.
func NewLogger(logger *zap.Logger, verbose bool) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	level := zapcore.DebugLevel
	if verbose {
		level = zapcore.InfoLevel
	}
	return &Logger{logger: logger.Named("orchestrator"), progress: level}
}

// Zap returns the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.logger
}

func (l *Logger) RunStarted(ctx context.Context, runID, query string) {
	l.logger.Info("run started", l.with(ctx, zap.String("run_id", runID), zap.String("query", query))...)
}

func (l *Logger) RunCompleted(ctx context.Context, runID string, iterations, tasksCompleted int, d time.Duration) {
	l.logger.Info("run completed", l.with(ctx,
		zap.String("run_id", runID),
		zap.Int("iterations", iterations),
		zap.Int("tasks_completed", tasksCompleted),
		zap.Duration("duration", d))...)
}

func (l *Logger) RunFailed(ctx context.Context, runID string, err error) {
	l.logger.Error("run failed", l.with(ctx, zap.String("run_id", runID), zap.Error(err))...)
}

func (l *Logger) Recovered(ctx context.Context, runID string, r any, stack []byte) {
	l.logger.Error("recovered from panic during run", l.with(ctx,
		zap.String("run_id", runID),
		zap.Any("panic", r),
		zap.ByteString("stack", stack))...)
}

func (l *Logger) PhaseEntered(ctx context.Context, runID string, p Phase) {
	l.logger.Debug("phase entered", l.with(ctx, zap.String("run_id", runID), zap.String("phase", string(p)))...)
}

func (l *Logger) PlanCreated(ctx context.Context, runID string, tasks int) {
	l.logger.Log(l.progress, "created plan", l.with(ctx, zap.String("run_id", runID), zap.Int("tasks", tasks))...)
}

func (l *Logger) TaskStarted(ctx context.Context, taskID, title string, iteration int) {
	l.logger.Log(l.progress, "executing task", l.with(ctx,
		zap.String("task_id", taskID),
		zap.String("title", title),
		zap.Int("iteration", iteration))...)
}

func (l *Logger) TaskFinished(ctx context.Context, taskID string, success bool) {
	l.logger.Log(l.progress, "task finished", l.with(ctx, zap.String("task_id", taskID), zap.Bool("success", success))...)
}

func (l *Logger) TaskFailed(ctx context.Context, taskID string, err error) {
	l.logger.Error("task execution failed", l.with(ctx, zap.String("task_id", taskID), zap.Error(err))...)
}

func (l *Logger) DelegationRefused(ctx context.Context, taskID string, max int) {
	l.logger.Warn("maximum sub-agents limit reached", l.with(ctx, zap.String("task_id", taskID), zap.Int("max_sub_agents", max))...)
}

func (l *Logger) SubAgentFailed(ctx context.Context, agentID, reason string) {
	l.logger.Error("sub-agent failed", l.with(ctx, zap.String("agent_id", agentID), zap.String("reason", reason))...)
}

func (l *Logger) Warn(ctx context.Context, msg string, err error, fields ...zap.Field) {
	l.logger.Warn(msg, l.with(ctx, append([]zap.Field{zap.Error(err)}, fields...)...)...)
}

func (l *Logger) Reset(ctx context.Context) {
	l.logger.Info("orchestrator reset to initial state", l.with(ctx)...)
}

func (l *Logger) with(ctx context.Context, fields ...zap.Field) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return fields
	}
	return append(fields,
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()))
}
