package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/subagent"
)

// cancelTimeout bounds the request that cancels an abandoned workflow.
const cancelTimeout = 5 * time.Second

// WorkflowClient is the part of client.Client the strategy uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
}

// TemporalStrategy runs sub-agents as SubAgentWorkflow executions.
type TemporalStrategy struct {
	client    WorkflowClient
	taskQueue string
	metrics   *Metrics
	logger    *zap.Logger
}

// StrategyOption configures a TemporalStrategy.
type StrategyOption func(*TemporalStrategy)

// WithTaskQueue sets the task queue. Defaults to DefaultTaskQueue.
func WithTaskQueue(q string) StrategyOption {
	return func(s *TemporalStrategy) {
		if q != "" {
			s.taskQueue = q
		}
	}
}

// WithMetrics sets the workflow instruments.
func WithMetrics(m *Metrics) StrategyOption {
	return func(s *TemporalStrategy) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) StrategyOption {
	return func(s *TemporalStrategy) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewTemporalStrategy creates a strategy starting workflows through c.
func NewTemporalStrategy(c WorkflowClient, opts ...StrategyOption) (*TemporalStrategy, error) {
	if c == nil {
		return nil, ErrNoClient
	}
	s := &TemporalStrategy{client: c, taskQueue: DefaultTaskQueue, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("workflows")
	return s, nil
}

// WorkflowID is the workflow id used for a sub-agent.
func WorkflowID(agentID string) string {
	return "subagent-" + agentID
}

// Run starts the workflow for a and waits for its result. Each finding is
// written into the workspace. When ctx ends first the workflow is
// cancelled.
func (s *TemporalStrategy) Run(ctx context.Context, a *subagent.Agent) (string, error) {
	start := time.Now()
	input := SubAgentInput{
		AgentID:       a.ID,
		Name:          a.Spec.Name,
		Type:          string(a.Spec.Type),
		Task:          a.Spec.Task,
		Objectives:    a.Spec.Objectives,
		Prompt:        a.Prompt(),
		MaxIterations: a.Spec.MaxIterations,
	}
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(a.ID),
		TaskQueue: s.taskQueue,
	}
	if a.Spec.Timeout > 0 {
		opts.WorkflowExecutionTimeout = a.Spec.Timeout
	}

	a.Log("Starting durable workflow on task queue " + s.taskQueue)
	run, err := s.client.ExecuteWorkflow(ctx, opts, SubAgentWorkflow, input)
	if err != nil {
		s.metrics.recordWorkflow(ctx, "start_failed", time.Since(start))
		return "", fmt.Errorf("starting workflow: %w", err)
	}
	s.logger.Debug("workflow started",
		zap.String("agent_id", a.ID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()))

	var res SubAgentResult
	if err := run.Get(ctx, &res); err != nil {
		if ctx.Err() != nil {
			s.cancel(run)
		}
		s.metrics.recordWorkflow(ctx, "failed", time.Since(start))
		return "", fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}

	for range res.Iterations {
		a.NextIteration()
	}
	for _, e := range res.Errors {
		a.Log("Objective failed: " + e)
	}
	var writeErr error
	for i, f := range res.Findings {
		writeErr = errors.Join(writeErr, a.WriteFile(fmt.Sprintf("finding_%d.md", i+1), f.Output))
	}
	if writeErr != nil {
		s.logger.Warn("failed to write findings", zap.String("agent_id", a.ID), zap.Error(writeErr))
	}

	s.metrics.recordWorkflow(ctx, "completed", time.Since(start))
	return res.Output, nil
}

func (s *TemporalStrategy) cancel(run client.WorkflowRun) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := s.client.CancelWorkflow(ctx, run.GetID(), run.GetRunID()); err != nil {
		s.logger.Warn("failed to cancel workflow", zap.String("workflow_id", run.GetID()), zap.Error(err))
	}
}

var _ subagent.Strategy = (*TemporalStrategy)(nil)
