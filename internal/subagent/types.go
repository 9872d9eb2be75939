package subagent

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a sub-agent.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status.
var Statuses = []Status{StatusIdle, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

// ValidTransitions defines allowed state transitions.
var ValidTransitions = map[Status][]Status{
	StatusIdle:      {StatusRunning},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {}, // terminal
	StatusFailed:    {}, // terminal
	StatusCancelled: {}, // terminal
}

// CanTransitionTo checks if a transition from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for completed, failed and cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Type classifies what a sub-agent is for.
type Type string

const (
	TypeResearch   Type = "research"
	TypeAnalysis   Type = "analysis"
	TypeSynthesis  Type = "synthesis"
	TypeValidation Type = "validation"
	TypeCustom     Type = "custom"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeResearch, TypeAnalysis, TypeSynthesis, TypeValidation, TypeCustom:
		return true
	}
	return false
}

// Defaults applied to a Spec that leaves limits unset.
const (
	DefaultMaxIterations = 10
	DefaultTimeout       = 300 * time.Second
	DefaultMaxSubAgents  = 5
)

// Spec describes an agent to create.
type Spec struct {
	Name          string
	Type          Type
	Task          string
	Objectives    []string
	Context       map[string]any
	MaxIterations int
	// Timeout bounds a single execution. It is enforced as a context deadline.
	Timeout time.Duration
	// Strategy overrides the manager's strategy for this agent.
	Strategy Strategy
}

func (s *Spec) validate() error {
	if s.Task == "" {
		return ErrEmptyTask
	}
	if s.Type == "" {
		s.Type = TypeCustom
	}
	if !s.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
	}
	if s.Name == "" {
		s.Name = "SubAgent"
	}
	return nil
}

// Result is the outcome of one execution. It is also the layout of the
// execution_summary.json file written into the workspace.
type Result struct {
	AgentID       string   `json:"agent_id"`
	Task          string   `json:"task"`
	Status        Status   `json:"status"`
	Output        string   `json:"result"`
	Error         string   `json:"error"`
	ExecutionTime float64  `json:"execution_time"`
	Iterations    int      `json:"iterations"`
	Logs          []string `json:"logs"`
}

// Succeeded reports whether the execution completed.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusCompleted
}

// Duration returns the execution time.
func (r *Result) Duration() time.Duration {
	return time.Duration(r.ExecutionTime * float64(time.Second))
}

// Info is a point-in-time snapshot of an agent.
type Info struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        Type       `json:"type"`
	Task        string     `json:"task"`
	Status      Status     `json:"status"`
	Workspace   string     `json:"workspace"`
	Iterations  int        `json:"iterations"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Summary reports registry counts.
type Summary struct {
	TotalAgents           int            `json:"total_agents"`
	StatusBreakdown       map[Status]int `json:"status_breakdown"`
	ActiveAgents          int            `json:"active_agents"`
	ExecutionHistoryCount int            `json:"execution_history_count"`
}
