package subagent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/deepagent/internal/secrets"
	"github.com/fyrsmithlabs/deepagent/internal/store"
)

// Agent is a live sub-agent. Strategies use its methods to log progress and
// write into the workspace; the identity fields never change after creation.
type Agent struct {
	ID        string
	Spec      Spec
	Workspace string
	CreatedAt time.Time

	store    *store.Store
	scrubber secrets.Scrubber
	now      func() time.Time

	mu          sync.Mutex
	status      Status
	logs        []string
	output      string
	errMsg      string
	iterations  int
	startedAt   time.Time
	completedAt time.Time
	cancel      context.CancelFunc
}

// Status returns the current status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Cancelled reports whether the manager cancelled the agent. Strategies that
// loop should check it between steps.
func (a *Agent) Cancelled() bool {
	return a.Status() == StatusCancelled
}

// Log appends a timestamped line to the agent's log.
func (a *Agent) Log(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logLocked(msg)
}

func (a *Agent) logLocked(msg string) {
	a.logs = append(a.logs, fmt.Sprintf("[%s] %s", a.now().Format(time.RFC3339Nano), msg))
}

// Logs returns a copy of the log lines.
func (a *Agent) Logs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.logs...)
}

// NextIteration increments and returns the iteration counter.
func (a *Agent) NextIteration() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.iterations++
	return a.iterations
}

// Iterations returns the iteration counter.
func (a *Agent) Iterations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iterations
}

// WriteFile writes name into the workspace. Content is scrubbed first.
func (a *Agent) WriteFile(name, content string) error {
	if a.scrubber != nil {
		content = a.scrubber.Scrub(content).Scrubbed
	}
	return a.store.WriteFile(store.Join(a.Workspace, name), content, map[string]any{"agent_id": a.ID})
}

// ReadFile reads name from the workspace.
func (a *Agent) ReadFile(name string) (string, bool) {
	return a.store.ReadFile(store.Join(a.Workspace, name))
}

// Prompt renders the task, objectives and inherited context as a prompt.
func (a *Agent) Prompt() string {
	var b strings.Builder
	b.WriteString("You are a focused sub-agent handling one part of a larger investigation.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", a.Spec.Task)

	b.WriteString("\nObjectives:\n")
	for _, obj := range a.Spec.Objectives {
		fmt.Fprintf(&b, "- %s\n", obj)
	}

	if len(a.Spec.Context) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(a.Spec.Context))
		for k := range a.Spec.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, a.Spec.Context[k])
		}
	}

	b.WriteString("\nWork through the objectives in order and report concrete findings.")
	return b.String()
}

// Info returns a snapshot.
func (a *Agent) Info() Info {
	a.mu.Lock()
	defer a.mu.Unlock()

	info := Info{
		ID:         a.ID,
		Name:       a.Spec.Name,
		Type:       a.Spec.Type,
		Task:       a.Spec.Task,
		Status:     a.status,
		Workspace:  a.Workspace,
		Iterations: a.iterations,
		CreatedAt:  a.CreatedAt,
		Error:      a.errMsg,
	}
	if !a.startedAt.IsZero() {
		ts := a.startedAt
		info.StartedAt = &ts
	}
	if !a.completedAt.IsZero() {
		ts := a.completedAt
		info.CompletedAt = &ts
	}
	return info
}

// transition moves the agent to target. Caller holds a.mu.
func (a *Agent) transition(target Status) error {
	if !a.status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.status, target)
	}
	a.status = target
	return nil
}

// result builds the Result for the last execution. Caller holds a.mu.
func (a *Agent) resultLocked() *Result {
	var elapsed float64
	if !a.startedAt.IsZero() && !a.completedAt.IsZero() {
		elapsed = a.completedAt.Sub(a.startedAt).Seconds()
	}
	return &Result{
		AgentID:       a.ID,
		Task:          a.Spec.Task,
		Status:        a.status,
		Output:        a.output,
		Error:         a.errMsg,
		ExecutionTime: elapsed,
		Iterations:    a.iterations,
		Logs:          append([]string(nil), a.logs...),
	}
}
