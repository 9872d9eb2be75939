package planning

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Graph is the task dependency graph. It is safe for concurrent use.
type Graph struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	order  []string
	nextID int
	// cleared remembers ids removed by ClearCompleted so FailClosed can still
	// treat them as satisfied.
	cleared map[string]struct{}

	policy DependencyPolicy
	now    func() time.Time
	logger *zap.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithDependencyPolicy sets how missing dependencies are treated.
func WithDependencyPolicy(p DependencyPolicy) GraphOption {
	return func(g *Graph) {
		g.policy = p
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) GraphOption {
	return func(g *Graph) {
		if l != nil {
			g.logger = l.Named("planning")
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) GraphOption {
	return func(g *Graph) {
		g.now = now
	}
}

// NewGraph creates an empty graph. The default policy is FailOpen.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		tasks:   make(map[string]*Task),
		cleared: make(map[string]struct{}),
		nextID:  1,
		policy:  FailOpen,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the dependency policy.
func (g *Graph) Policy() DependencyPolicy {
	return g.policy
}

// TaskOption configures a task at creation.
type TaskOption func(*Task)

func WithDescription(d string) TaskOption {
	return func(t *Task) { t.Description = d }
}

func WithPriority(p Priority) TaskOption {
	return func(t *Task) { t.Priority = p }
}

func WithDependencies(ids ...string) TaskOption {
	return func(t *Task) { t.Dependencies = append(t.Dependencies, ids...) }
}

func WithMetadata(m map[string]any) TaskOption {
	return func(t *Task) {
		for k, v := range m {
			t.Metadata[k] = v
		}
	}
}

// AddTask registers a pending task with the next sequential id.
func (g *Graph) AddTask(title string, opts ...TaskOption) Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	t := &Task{
		ID:           fmt.Sprintf("task_%d", g.nextID),
		Title:        title,
		Status:       StatusPending,
		Priority:     PriorityMedium,
		Dependencies: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
		Notes:        []string{},
		Metadata:     map[string]any{},
	}
	g.nextID++
	for _, opt := range opts {
		opt(t)
	}

	g.tasks[t.ID] = t
	g.order = append(g.order, t.ID)
	g.logger.Debug("added task",
		zap.String("task_id", t.ID),
		zap.String("title", t.Title),
		zap.Stringer("priority", t.Priority))
	return t.clone()
}

// SetStatus moves a task to status, stamping the update time and, for
// completed, the completion time.
func (g *Graph) SetStatus(id string, status TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok {
		g.logger.Warn("status change for unknown task", zap.String("task_id", id))
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !t.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}

	now := g.now()
	t.Status = status
	t.UpdatedAt = now
	if status == StatusCompleted {
		t.CompletedAt = &now
	}
	g.logger.Debug("task status changed", zap.String("task_id", id), zap.String("status", string(status)))
	return nil
}

// AddNote appends to the task's notes.
func (g *Graph) AddNote(id, note string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok {
		return false
	}
	t.Notes = append(t.Notes, note)
	t.UpdatedAt = g.now()
	return true
}

// Assign records that agentID is working on the task.
func (g *Graph) Assign(id, agentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok {
		return false
	}
	t.AssignedTo = agentID
	t.UpdatedAt = g.now()
	g.logger.Debug("assigned task", zap.String("task_id", id), zap.String("agent_id", agentID))
	return true
}

// Get returns a copy of the task.
func (g *Graph) Get(id string) (Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

// Len returns the number of live tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Tasks returns copies of every task in insertion order.
func (g *Graph) Tasks() []Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id].clone())
	}
	return out
}

// Ready returns pending tasks whose dependencies are satisfied, sorted by
// priority descending. Ties keep insertion order.
func (g *Graph) Ready() []Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := g.readyLocked()
	out := make([]Task, len(ready))
	for i, t := range ready {
		out[i] = t.clone()
	}
	return out
}

// Next returns the highest-priority ready task.
func (g *Graph) Next() (Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := g.readyLocked()
	if len(ready) == 0 {
		return Task{}, false
	}
	return ready[0].clone(), true
}

func (g *Graph) readyLocked() []*Task {
	var ready []*Task
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != StatusPending {
			continue
		}
		if g.dependenciesMet(t) {
			ready = append(ready, t)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority > ready[j].Priority
	})
	return ready
}

func (g *Graph) dependenciesMet(t *Task) bool {
	for _, dep := range t.Dependencies {
		d, present := g.tasks[dep]
		if present {
			if d.Status != StatusCompleted {
				return false
			}
			continue
		}
		if g.policy == FailClosed {
			if _, wasCompleted := g.cleared[dep]; !wasCompleted {
				return false
			}
		}
	}
	return true
}

// Summary counts tasks by status.
func (g *Graph) Summary() Summary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.summaryLocked()
}

func (g *Graph) summaryLocked() Summary {
	s := Summary{
		TotalTasks:      len(g.tasks),
		StatusBreakdown: make(map[TaskStatus]int, len(Statuses)),
		ReadyTasks:      len(g.readyLocked()),
	}
	for _, st := range Statuses {
		s.StatusBreakdown[st] = 0
	}
	for _, t := range g.tasks {
		s.StatusBreakdown[t.Status]++
	}
	if s.TotalTasks > 0 {
		s.CompletionRate = float64(s.StatusBreakdown[StatusCompleted]) / float64(s.TotalTasks) * 100
	}
	return s
}

// ClearCompleted removes completed tasks and returns how many were removed.
func (g *Graph) ClearCompleted() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := g.order[:0]
	removed := 0
	for _, id := range g.order {
		if g.tasks[id].Status == StatusCompleted {
			delete(g.tasks, id)
			g.cleared[id] = struct{}{}
			removed++
			continue
		}
		kept = append(kept, id)
	}
	g.order = kept
	g.logger.Debug("cleared completed tasks", zap.Int("count", removed))
	return removed
}

// Remove deletes a task regardless of its status. Under FailOpen its
// dependents become ready as if it had completed.
func (g *Graph) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok {
		return false
	}
	delete(g.tasks, id)
	if t.Status == StatusCompleted {
		g.cleared[id] = struct{}{}
	}
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.logger.Debug("removed task", zap.String("task_id", id), zap.String("status", string(t.Status)))
	return true
}
