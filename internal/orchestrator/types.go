package orchestrator

import (
	"time"

	"github.com/fyrsmithlabs/deepagent/internal/planning"
	"github.com/fyrsmithlabs/deepagent/internal/store"
	"github.com/fyrsmithlabs/deepagent/internal/subagent"
)

// Config controls which capabilities a run uses and its limits.
type Config struct {
	// EnablePlanning asks the generator for a plan before executing.
	EnablePlanning bool `json:"enable_planning"`

	// EnableSubAgents allows research-style tasks to be delegated.
	EnableSubAgents bool `json:"enable_sub_agents"`

	// EnableMemory persists context, plans, progress and results to the store.
	EnableMemory bool `json:"enable_memory"`

	// MaxSubAgents caps live sub-agents.
	MaxSubAgents int `json:"max_sub_agents"`

	// MaxIterations bounds the execution loop.
	MaxIterations int `json:"max_iterations"`

	// Verbose logs per-task progress at info level instead of debug.
	Verbose bool `json:"verbose"`

	// DependencyPolicy decides whether missing dependencies are satisfied.
	DependencyPolicy planning.DependencyPolicy `json:"dependency_policy"`

	// SubAgentMaxIterations and SubAgentTimeout are the per-agent limits.
	SubAgentMaxIterations int           `json:"sub_agent_max_iterations"`
	SubAgentTimeout       time.Duration `json:"sub_agent_timeout"`
}

// DefaultConfig returns a configuration with every capability enabled.
func DefaultConfig() Config {
	return Config{
		EnablePlanning:        true,
		EnableSubAgents:       true,
		EnableMemory:          true,
		MaxSubAgents:          subagent.DefaultMaxSubAgents,
		MaxIterations:         20,
		DependencyPolicy:      planning.FailOpen,
		SubAgentMaxIterations: subagent.DefaultMaxIterations,
		SubAgentTimeout:       subagent.DefaultTimeout,
	}
}

// withDefaults fills zero limits from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSubAgents <= 0 {
		c.MaxSubAgents = d.MaxSubAgents
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.SubAgentMaxIterations <= 0 {
		c.SubAgentMaxIterations = d.SubAgentMaxIterations
	}
	if c.SubAgentTimeout <= 0 {
		c.SubAgentTimeout = d.SubAgentTimeout
	}
	return c
}

// EventType identifies the kind of an Event.
type EventType string

const (
	EventStatus       EventType = "status"
	EventPlan         EventType = "plan"
	EventTaskComplete EventType = "task_complete"
	EventAnswer       EventType = "answer"
	EventError        EventType = "error"
)

// Event is one ordered progress notification of a run.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	Seq   int       `json:"seq"`
	Time  time.Time `json:"timestamp"`

	// Message is set on status and error events.
	Message string `json:"message,omitempty"`

	// Tasks is set on plan events.
	Tasks []planning.Task `json:"data,omitempty"`

	// Task, TaskID and Success are set on task_complete events.
	Task    string `json:"task,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Success *bool  `json:"success,omitempty"`

	// Content and Metadata are set on answer events.
	Content  string          `json:"content,omitempty"`
	Metadata *AnswerMetadata `json:"metadata,omitempty"`

	// Err is the fault behind an error event.
	Err error `json:"-"`
}

// Succeeded reports the outcome of a task_complete event.
func (e Event) Succeeded() bool {
	return e.Success != nil && *e.Success
}

// AnswerMetadata accompanies the final answer.
type AnswerMetadata struct {
	Iterations     int     `json:"iterations"`
	TasksCompleted int     `json:"tasks_completed"`
	ExecutionTime  float64 `json:"execution_time"`
}

// StateSummary describes the current or most recent run.
type StateSummary struct {
	RunID               string            `json:"run_id"`
	Query               string            `json:"query"`
	Phase               Phase             `json:"phase"`
	IterationsCompleted int               `json:"iterations_completed"`
	ExecutionTime       float64           `json:"execution_time"`
	TodoSummary         *planning.Summary `json:"todo_summary"`
	MemorySummary       *store.Summary    `json:"memory_summary"`
	SubAgentsSummary    *subagent.Summary `json:"sub_agents_summary"`

	// FinalTodoSummary is the graph as it stood when the run ended, before
	// cleanup removed its completed tasks. It is nil while a run is active.
	FinalTodoSummary *planning.Summary `json:"final_todo_summary,omitempty"`
}

// Tasks returns the task counts that describe the run: the final summary
// once the run has ended, the live one before that.
func (s StateSummary) Tasks() *planning.Summary {
	if s.FinalTodoSummary != nil {
		return s.FinalTodoSummary
	}
	return s.TodoSummary
}

// progressSnapshot is written to the store after every iteration.
type progressSnapshot struct {
	Iteration        int               `json:"iteration"`
	TodoSummary      *planning.Summary `json:"todo_summary"`
	MemorySummary    store.Summary     `json:"memory_summary"`
	SubAgentsSummary *subagent.Summary `json:"sub_agents_summary"`
}

// runState is the bookkeeping of one run.
type runState struct {
	id         string
	query      string
	startedAt  time.Time
	iterations int
	finalTasks *planning.Summary
}
