package subagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/deepagent/internal/secrets"
	"github.com/fyrsmithlabs/deepagent/internal/store"
)

// WorkspaceRoot is the store directory holding every agent workspace.
const WorkspaceRoot = "/subagents"

// SummaryFile is written into the workspace after every execution.
const SummaryFile = "execution_summary.json"

// Manager creates, runs and retires sub-agents.
type Manager struct {
	store        *store.Store
	strategy     Strategy
	scrubber     secrets.Scrubber
	metrics      *Metrics
	logger       *Logger
	now          func() time.Time
	maxSubAgents int
	defaultIters int
	defaultLimit time.Duration

	mu      sync.RWMutex
	agents  map[string]*Agent
	order   []string
	history []Result

	// live counts idle and running agents.
	live int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSubAgents caps live agents and parallel executions.
func WithMaxSubAgents(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSubAgents = n
		}
	}
}

// WithStrategy replaces DefaultStrategy for agents whose Spec has none.
func WithStrategy(s Strategy) Option {
	return func(m *Manager) {
		if s != nil {
			m.strategy = s
		}
	}
}

// WithScrubber scrubs workspace writes, results and errors.
func WithScrubber(s secrets.Scrubber) Option {
	return func(m *Manager) {
		m.scrubber = s
	}
}

// WithMetrics sets custom metrics for the manager.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l *Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAgentDefaults sets the limits applied to a Spec that leaves them unset.
func WithAgentDefaults(maxIterations int, timeout time.Duration) Option {
	return func(m *Manager) {
		if maxIterations > 0 {
			m.defaultIters = maxIterations
		}
		if timeout > 0 {
			m.defaultLimit = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager whose agents keep their workspaces in st.
func NewManager(st *store.Store, opts ...Option) *Manager {
	metrics, _ := NewMetrics(nil)

	m := &Manager{
		store:        st,
		strategy:     DefaultStrategy{},
		metrics:      metrics,
		logger:       NewLogger(nil),
		now:          func() time.Time { return time.Now().UTC() },
		maxSubAgents: DefaultMaxSubAgents,
		defaultIters: DefaultMaxIterations,
		defaultLimit: DefaultTimeout,
		agents:       make(map[string]*Agent),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxSubAgents returns the configured cap.
func (m *Manager) MaxSubAgents() int {
	return m.maxSubAgents
}

// Create registers an idle agent and creates its workspace.
func (m *Manager) Create(ctx context.Context, spec Spec) (*Agent, error) {
	ctx, span := StartSpan(ctx, "subagent.create", "", spec.Type)
	defer span.End()

	if err := spec.validate(); err != nil {
		RecordError(ctx, err)
		SetSpanStatus(ctx, codes.Error, "validation failed")
		return nil, err
	}
	if spec.MaxIterations <= 0 {
		spec.MaxIterations = m.defaultIters
	}
	if spec.Timeout <= 0 {
		spec.Timeout = m.defaultLimit
	}
	spec.Objectives = append([]string(nil), spec.Objectives...)
	spec.Context = copyContext(spec.Context)

	if n := atomic.AddInt64(&m.live, 1); n > int64(m.maxSubAgents) {
		atomic.AddInt64(&m.live, -1)
		m.metrics.RecordRejected(ctx)
		m.logger.CapReached(ctx, m.maxSubAgents, spec.Task)
		RecordError(ctx, ErrMaxSubAgents)
		SetSpanStatus(ctx, codes.Error, "cap reached")
		return nil, fmt.Errorf("%w (%d)", ErrMaxSubAgents, m.maxSubAgents)
	}

	id := uuid.NewString()
	workspace := store.Join(WorkspaceRoot, id)
	m.store.Mkdir(WorkspaceRoot)
	if !m.store.Mkdir(workspace) {
		atomic.AddInt64(&m.live, -1)
		RecordError(ctx, ErrWorkspace)
		SetSpanStatus(ctx, codes.Error, "workspace creation failed")
		return nil, fmt.Errorf("%w: %s", ErrWorkspace, workspace)
	}

	a := &Agent{
		ID:        id,
		Spec:      spec,
		Workspace: workspace,
		CreatedAt: m.now(),
		store:     m.store,
		scrubber:  m.scrubber,
		now:       m.now,
		status:    StatusIdle,
	}

	m.mu.Lock()
	m.agents[id] = a
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.metrics.RecordCreated(ctx, spec.Type)
	m.logger.AgentCreated(ctx, id, spec.Name, spec.Type, spec.Task)
	SetSpanStatus(ctx, codes.Ok, "agent created")
	return a, nil
}

func (m *Manager) lookup(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// Execute runs an idle agent to completion. It reports false only for an
// unknown id. An agent that is not idle is not run again; its last result
// is returned with an error describing why.
func (m *Manager) Execute(ctx context.Context, id string) (*Result, bool) {
	a, ok := m.lookup(id)
	if !ok {
		m.logger.UnknownAgent(ctx, id)
		return nil, false
	}

	ctx, span := StartSpan(ctx, "subagent.execute", id, a.Spec.Type)
	defer span.End()

	execCtx, cancel := context.WithTimeout(ctx, a.Spec.Timeout)
	defer cancel()

	a.mu.Lock()
	if err := a.transition(StatusRunning); err != nil {
		res := a.resultLocked()
		a.mu.Unlock()
		res.Error = err.Error()
		RecordError(ctx, err)
		SetSpanStatus(ctx, codes.Error, "agent not idle")
		return res, true
	}
	a.startedAt = m.now()
	a.cancel = cancel
	a.logLocked("Starting execution: " + a.Spec.Task)
	a.mu.Unlock()

	m.metrics.RecordStarted(ctx, a.Spec.Type)
	m.logger.AgentStarted(ctx, id, a.Spec.Task)

	strategy := a.Spec.Strategy
	if strategy == nil {
		strategy = m.strategy
	}
	out, runErr := runStrategy(execCtx, strategy, a)
	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)

	a.mu.Lock()
	a.completedAt = m.now()
	a.cancel = nil
	switch {
	case a.status == StatusCancelled:
		a.errMsg = ErrCancelled.Error()
	case runErr != nil:
		_ = a.transition(StatusFailed)
		if timedOut {
			a.errMsg = fmt.Sprintf("timed out after %s: %v", a.Spec.Timeout, runErr)
		} else {
			a.errMsg = runErr.Error()
		}
		a.logLocked("Execution failed: " + a.errMsg)
	default:
		_ = a.transition(StatusCompleted)
		a.output = out
		a.logLocked("Execution completed successfully")
	}
	if m.scrubber != nil {
		a.output = m.scrubber.Scrub(a.output).Scrubbed
		a.errMsg = m.scrubber.Scrub(a.errMsg).Scrubbed
	}
	res := a.resultLocked()
	a.mu.Unlock()

	atomic.AddInt64(&m.live, -1)

	if err := m.writeSummary(a, res); err != nil {
		m.logger.Error(ctx, "failed to write execution summary", err)
	}

	m.mu.Lock()
	m.history = append(m.history, *res)
	m.mu.Unlock()

	duration := res.Duration()
	switch res.Status {
	case StatusCompleted:
		m.metrics.RecordCompleted(ctx, a.Spec.Type, duration)
		m.logger.AgentCompleted(ctx, id, res.Iterations, duration)
		SetSpanStatus(ctx, codes.Ok, "agent completed")
	case StatusCancelled:
		m.metrics.RecordCancelled(ctx, a.Spec.Type, duration)
		m.logger.AgentCancelled(ctx, id)
		SetSpanStatus(ctx, codes.Error, "agent cancelled")
	default:
		reason := "error"
		if timedOut {
			reason = "timeout"
		}
		m.metrics.RecordFailed(ctx, a.Spec.Type, reason, duration)
		m.logger.AgentFailed(ctx, id, res.Error, duration)
		RecordError(ctx, errors.New(res.Error))
		SetSpanStatus(ctx, codes.Error, "agent failed")
	}
	return res, true
}

// runStrategy converts a panic into an error.
func runStrategy(ctx context.Context, s Strategy, a *Agent) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStrategyPanic, r)
		}
	}()
	return s.Run(ctx, a)
}

func (m *Manager) writeSummary(a *Agent, res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return m.store.WriteFile(store.Join(a.Workspace, SummaryFile), string(data), map[string]any{"agent_id": a.ID})
}

// ExecuteParallel runs the given agents concurrently, at most MaxSubAgents
// at a time. Unknown ids are logged and left out of the result map.
func (m *Manager) ExecuteParallel(ctx context.Context, ids []string) map[string]*Result {
	results := make(map[string]*Result, len(ids))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, m.maxSubAgents)
		seen = make(map[string]struct{}, len(ids))
	)

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := m.lookup(id); !ok {
			m.logger.UnknownAgent(ctx, id)
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if res, ok := m.Execute(ctx, id); ok {
				mu.Lock()
				results[id] = res
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return results
}

// Cancel marks a running agent cancelled and cancels its context. The
// strategy is not interrupted; it observes the cancellation cooperatively.
func (m *Manager) Cancel(id string) bool {
	a, ok := m.lookup(id)
	if !ok {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusRunning {
		return false
	}
	_ = a.transition(StatusCancelled)
	a.logLocked("Agent cancelled by manager")
	if a.cancel != nil {
		a.cancel()
	}
	return true
}

// Get returns a snapshot of the agent.
func (m *Manager) Get(id string) (Info, bool) {
	a, ok := m.lookup(id)
	if !ok {
		return Info{}, false
	}
	return a.Info(), true
}

// Status returns the agent's status.
func (m *Manager) Status(id string) (Status, bool) {
	a, ok := m.lookup(id)
	if !ok {
		return "", false
	}
	return a.Status(), true
}

// ResultOf returns the result text of the agent's last execution.
func (m *Manager) ResultOf(id string) (string, bool) {
	a, ok := m.lookup(id)
	if !ok {
		return "", false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.output, true
}

// Active returns the running agents in creation order.
func (m *Manager) Active() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Info
	for _, id := range m.order {
		if a := m.agents[id]; a.Status() == StatusRunning {
			out = append(out, a.Info())
		}
	}
	return out
}

// CleanupCompleted drops terminal agents from the registry and returns how
// many were removed. Their workspaces stay in the store.
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		if m.agents[id].Status().IsTerminal() {
			delete(m.agents, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.logger.Cleanup(context.Background(), removed)
	return removed
}

// Summary counts agents by status.
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		TotalAgents:           len(m.agents),
		StatusBreakdown:       make(map[Status]int, len(Statuses)),
		ExecutionHistoryCount: len(m.history),
	}
	for _, st := range Statuses {
		s.StatusBreakdown[st] = 0
	}
	for _, a := range m.agents {
		st := a.Status()
		s.StatusBreakdown[st]++
		if st == StatusRunning {
			s.ActiveAgents++
		}
	}
	return s
}

// History returns every execution result in completion order.
func (m *Manager) History() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Result(nil), m.history...)
}

func copyContext(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
