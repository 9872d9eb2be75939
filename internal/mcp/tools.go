package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

const (
	toolDeepResearch  = "deep_research"
	toolResearchState = "research_state"
)

type researchInput struct {
	Query   string         `json:"query" jsonschema:"The research question to answer"`
	Context map[string]any `json:"context,omitempty" jsonschema:"Initial context saved to the agent workspace before planning"`
}

type researchOutput struct {
	RunID          string  `json:"run_id" jsonschema:"Identifier of the run"`
	Answer         string  `json:"answer" jsonschema:"Synthesized answer"`
	Iterations     int     `json:"iterations" jsonschema:"Execution loop iterations used"`
	TasksCompleted int     `json:"tasks_completed" jsonschema:"Tasks that finished successfully"`
	ExecutionTime  float64 `json:"execution_time" jsonschema:"Wall time of the run in seconds"`
	TasksPlanned   int     `json:"tasks_planned" jsonschema:"Tasks in the plan"`
}

type stateInput struct{}

type stateOutput struct {
	Available           bool    `json:"available" jsonschema:"False until the first run starts"`
	RunID               string  `json:"run_id,omitempty" jsonschema:"Most recent run"`
	Query               string  `json:"query,omitempty" jsonschema:"Query of the most recent run"`
	Phase               string  `json:"phase,omitempty" jsonschema:"Current phase"`
	Running             bool    `json:"running" jsonschema:"Whether a run is active"`
	IterationsCompleted int     `json:"iterations_completed" jsonschema:"Iterations completed so far"`
	ExecutionTime       float64 `json:"execution_time" jsonschema:"Elapsed seconds"`
	TotalTasks          int     `json:"total_tasks" jsonschema:"Tasks in the plan"`
	CompletionRate      float64 `json:"completion_rate" jsonschema:"Percentage of tasks completed"`
	Files               int     `json:"files" jsonschema:"Files in the agent workspace"`
	SubAgents           int     `json:"sub_agents" jsonschema:"Sub-agents created"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolDeepResearch,
		Description: "Plan, execute and synthesize a multi-step research run for a query. Blocks until the run finishes and returns the answer with run statistics.",
	}, s.handleResearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolResearchState,
		Description: "Report the phase and progress of the current or most recent research run.",
	}, s.handleState)
}

func (s *Server) handleResearch(ctx context.Context, req *mcp.CallToolRequest, args researchInput) (res *mcp.CallToolResult, out researchOutput, err error) {
	done := s.metrics.track(ctx, toolDeepResearch)
	defer func() { done(err) }()

	if strings.TrimSpace(args.Query) == "" {
		return nil, researchOutput{}, orchestrator.ErrEmptyQuery
	}
	if s.runner.Running() {
		return nil, researchOutput{}, orchestrator.ErrRunInProgress
	}

	var runErr error
	for ev := range s.runner.Process(ctx, args.Query, args.Context) {
		if out.RunID == "" {
			out.RunID = ev.RunID
		}
		switch ev.Type {
		case orchestrator.EventPlan:
			out.TasksPlanned = len(ev.Tasks)
		case orchestrator.EventAnswer:
			out.Answer = s.scrubber.Scrub(ev.Content).Scrubbed
			if md := ev.Metadata; md != nil {
				out.Iterations = md.Iterations
				out.TasksCompleted = md.TasksCompleted
				out.ExecutionTime = md.ExecutionTime
			}
		case orchestrator.EventError:
			runErr = ev.Err
			if runErr == nil {
				runErr = errors.New(ev.Message)
			}
		}
	}
	if runErr != nil {
		s.logger.Warn("research run failed", zap.String("run_id", out.RunID), zap.Error(runErr))
		return nil, researchOutput{}, fmt.Errorf("run %s: %w", out.RunID, runErr)
	}
	s.logger.Info("research run finished",
		zap.String("run_id", out.RunID),
		zap.Int("iterations", out.Iterations),
		zap.Int("tasks_completed", out.TasksCompleted),
	)
	return nil, out, nil
}

func (s *Server) handleState(ctx context.Context, req *mcp.CallToolRequest, _ stateInput) (*mcp.CallToolResult, stateOutput, error) {
	done := s.metrics.track(ctx, toolResearchState)
	defer done(nil)

	sum, ok := s.runner.StateSummary()
	out := stateOutput{Available: ok, Running: s.runner.Running()}
	if !ok {
		return nil, out, nil
	}
	out.RunID = sum.RunID
	out.Query = sum.Query
	out.Phase = string(sum.Phase)
	out.IterationsCompleted = sum.IterationsCompleted
	out.ExecutionTime = sum.ExecutionTime
	if tasks := sum.Tasks(); tasks != nil {
		out.TotalTasks = tasks.TotalTasks
		out.CompletionRate = tasks.CompletionRate
	}
	if sum.MemorySummary != nil {
		out.Files = sum.MemorySummary.FileCount
	}
	if sum.SubAgentsSummary != nil {
		out.SubAgents = sum.SubAgentsSummary.TotalAgents
	}
	return nil, out, nil
}
