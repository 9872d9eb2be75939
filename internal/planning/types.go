package planning

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
	StatusCancelled  TaskStatus = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []TaskStatus{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusBlocked,
	StatusCancelled,
}

// ValidTransitions defines allowed status changes.
var ValidTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusInProgress, StatusCancelled, StatusBlocked},
	StatusInProgress: {StatusCompleted, StatusBlocked, StatusCancelled},
	StatusBlocked:    {StatusPending, StatusCancelled},
	StatusCompleted:  {}, // terminal
	StatusCancelled:  {}, // terminal
}

// CanTransitionTo checks if a transition from s to target is valid.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for completed and cancelled.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	_, ok := ValidTransitions[s]
	return ok
}

// Title renders the status as a heading, e.g. "In Progress".
func (s TaskStatus) Title() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Priority orders tasks; higher values are scheduled first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityMedium:   "medium",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts a priority name to a Priority.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	name, ok := priorityNames[p]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPriority, int(p))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Task is a unit of planned work.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       TaskStatus     `json:"status"`
	Priority     Priority       `json:"priority"`
	Dependencies []string       `json:"dependencies"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	AssignedTo   string         `json:"assigned_to,omitempty"`
	Notes        []string       `json:"notes"`
	Metadata     map[string]any `json:"metadata"`
}

func (t *Task) clone() Task {
	c := *t
	c.Dependencies = append([]string{}, t.Dependencies...)
	c.Notes = append([]string{}, t.Notes...)
	c.Metadata = make(map[string]any, len(t.Metadata))
	for k, v := range t.Metadata {
		c.Metadata[k] = v
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return c
}

// Summary reports task counts for a graph.
type Summary struct {
	TotalTasks      int                `json:"total_tasks"`
	StatusBreakdown map[TaskStatus]int `json:"status_breakdown"`
	ReadyTasks      int                `json:"ready_tasks"`
	CompletionRate  float64            `json:"completion_rate"`
}

// DependencyPolicy decides whether a dependency id absent from the graph
// counts as satisfied.
type DependencyPolicy int

const (
	// FailOpen treats a missing dependency as satisfied. A dependency removed
	// by ClearCompleted, or never added, does not hold back its dependents.
	FailOpen DependencyPolicy = iota
	// FailClosed treats a missing dependency as unsatisfied unless it was
	// completed before being cleared.
	FailClosed
)

func (p DependencyPolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// ParseDependencyPolicy accepts "fail_open" or "fail_closed".
func ParseDependencyPolicy(s string) (DependencyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_open":
		return FailOpen, nil
	case "fail_closed":
		return FailClosed, nil
	}
	return FailOpen, fmt.Errorf("unknown dependency policy %q", s)
}
