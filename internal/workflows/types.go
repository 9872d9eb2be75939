// Package workflows runs sub-agents as durable Temporal workflows.
//
// SubAgentWorkflow executes each objective of a sub-agent as a separate
// ResearchObjective activity with retries and joins the findings.
// TemporalStrategy plugs the workflow into the sub-agent manager so a
// delegated task survives worker restarts.
package workflows

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTaskQueue is the task queue used when none is configured.
const DefaultTaskQueue = "deepagent-subagents"

// SubAgentInput is the workflow input built from a sub-agent.
type SubAgentInput struct {
	AgentID    string   // Sub-agent id; also the workflow id suffix
	Name       string   // Display name, e.g. SubAgent_3
	Type       string   // research, analysis, ...
	Task       string   // Task description
	Objectives []string // One activity per objective
	Prompt     string   // Rendered sub-agent prompt shared by every objective

	// MaxIterations caps how many objectives run. Zero runs all of them.
	MaxIterations int

	// ObjectiveTimeout bounds one activity attempt. Zero uses
	// DefaultObjectiveTimeout.
	ObjectiveTimeout time.Duration
}

// Validate checks that the required fields are set.
func (in *SubAgentInput) Validate() error {
	if strings.TrimSpace(in.AgentID) == "" {
		return fmt.Errorf("%w: AgentID", ErrEmptyField)
	}
	if strings.TrimSpace(in.Task) == "" {
		return fmt.Errorf("%w: Task", ErrEmptyField)
	}
	if in.MaxIterations < 0 {
		return fmt.Errorf("%w: MaxIterations must not be negative", ErrInvalidInput)
	}
	return nil
}

// objectives returns the objectives to run, falling back to the task when
// none are given.
func (in *SubAgentInput) objectives() []string {
	objs := in.Objectives
	if len(objs) == 0 {
		objs = []string{in.Task}
	}
	if in.MaxIterations > 0 && len(objs) > in.MaxIterations {
		objs = objs[:in.MaxIterations]
	}
	return objs
}

// ObjectiveInput is the input of one ResearchObjective activity.
type ObjectiveInput struct {
	AgentID   string
	Task      string
	Objective string
	Index     int // 1-based position among the objectives
	Total     int
	Prompt    string
}

// ObjectiveResult is the output of one ResearchObjective activity.
type ObjectiveResult struct {
	Objective string
	Output    string
}

// SubAgentResult is the workflow result.
type SubAgentResult struct {
	AgentID    string
	Findings   []ObjectiveResult // Successful objectives in order
	Output     string            // Findings joined for the parent task
	Iterations int               // Objectives attempted
	Errors     []string          // Objectives that failed after retries
}
