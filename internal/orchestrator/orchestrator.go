package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/llm"
	"github.com/fyrsmithlabs/deepagent/internal/planning"
	"github.com/fyrsmithlabs/deepagent/internal/secrets"
	"github.com/fyrsmithlabs/deepagent/internal/store"
	"github.com/fyrsmithlabs/deepagent/internal/subagent"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/deepagent/internal/orchestrator")

// Orchestrator runs queries through planning, execution and synthesis. It
// runs one query at a time.
type Orchestrator struct {
	gen          llm.Generator
	cfg          Config
	zl           *zap.Logger
	logger       *Logger
	strategy     subagent.Strategy
	scrubber     secrets.Scrubber
	index        FindingsIndex
	metrics      *Metrics
	agentMetrics *subagent.Metrics
	sinks        []EventSink
	now          func() time.Time

	mu         sync.Mutex
	graph      *planning.Graph
	store      *store.Store
	agents     *subagent.Manager
	state      *runState
	gate       phaseGate
	phaseStart time.Time

	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the run configuration. Zero limits take defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.zl = l
		}
	}
}

// WithStrategy sets the strategy delegated sub-agents run with.
func WithStrategy(s subagent.Strategy) Option {
	return func(o *Orchestrator) {
		o.strategy = s
	}
}

// WithEventSink adds sinks that receive every event.
func WithEventSink(sinks ...EventSink) Option {
	return func(o *Orchestrator) {
		for _, s := range sinks {
			if s != nil {
				o.sinks = append(o.sinks, s)
			}
		}
	}
}

// WithScrubber scrubs delegated results and the final answer.
func WithScrubber(s secrets.Scrubber) Option {
	return func(o *Orchestrator) {
		o.scrubber = s
	}
}

// WithFindingsIndex indexes delegated results and consults the index
// during synthesis.
func WithFindingsIndex(idx FindingsIndex) Option {
	return func(o *Orchestrator) {
		o.index = idx
	}
}

// WithMetrics sets the Prometheus metrics. Defaults to none.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSubAgentMetrics sets the instruments used by the sub-agent manager.
func WithSubAgentMetrics(m *subagent.Metrics) Option {
	return func(o *Orchestrator) {
		o.agentMetrics = m
	}
}

// WithClock overrides the time source of the orchestrator and its
// components.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator that plans and synthesizes with gen.
func New(gen llm.Generator, opts ...Option) (*Orchestrator, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}
	o := &Orchestrator{
		gen: gen,
		cfg: DefaultConfig(),
		zl:  zap.NewNop(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = NewLogger(o.zl, o.cfg.Verbose)
	o.graph, o.store, o.agents = o.newComponents()
	o.gate.rearm()
	return o, nil
}

func (o *Orchestrator) newComponents() (*planning.Graph, *store.Store, *subagent.Manager) {
	st := store.New(store.WithLogger(o.zl), store.WithClock(o.now))
	graph := planning.NewGraph(
		planning.WithDependencyPolicy(o.cfg.DependencyPolicy),
		planning.WithLogger(o.zl),
		planning.WithClock(o.now),
	)

	opts := []subagent.Option{
		subagent.WithMaxSubAgents(o.cfg.MaxSubAgents),
		subagent.WithAgentDefaults(o.cfg.SubAgentMaxIterations, o.cfg.SubAgentTimeout),
		subagent.WithLogger(subagent.NewLogger(o.zl)),
		subagent.WithClock(o.now),
	}
	if o.strategy != nil {
		opts = append(opts, subagent.WithStrategy(o.strategy))
	}
	if o.scrubber != nil {
		opts = append(opts, subagent.WithScrubber(o.scrubber))
	}
	if o.agentMetrics != nil {
		opts = append(opts, subagent.WithMetrics(o.agentMetrics))
	}
	return graph, st, subagent.NewManager(st, opts...)
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Graph returns the current task graph.
func (o *Orchestrator) Graph() *planning.Graph {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.graph
}

// Store returns the current store.
func (o *Orchestrator) Store() *store.Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store
}

// Agents returns the current sub-agent manager.
func (o *Orchestrator) Agents() *subagent.Manager {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agents
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gate.current
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Process runs query and streams its events. The channel is closed after
// cleanup. If a run is already in progress the channel carries a single
// error event wrapping ErrRunInProgress.
func (o *Orchestrator) Process(ctx context.Context, query string, initial map[string]any) <-chan Event {
	runID := uuid.NewString()

	if !o.running.CompareAndSwap(false, true) {
		em := newEmitter(runID, nil, o.now, o.logger)
		em.fail(ctx, fmt.Errorf("starting run: %w", ErrRunInProgress))
		em.close()
		return em.ch
	}

	em := newEmitter(runID, o.sinks, o.now, o.logger)
	o.begin(runID, query)

	go func() {
		defer em.close()
		defer o.running.Store(false)
		o.run(ctx, em, query, initial)
	}()
	return em.ch
}

func (o *Orchestrator) begin(runID, query string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	o.state = &runState{id: runID, query: query, startedAt: now}
	o.gate.rearm()
	o.phaseStart = now
}

func (o *Orchestrator) run(ctx context.Context, em *emitter, query string, initial map[string]any) {
	ctx, span := tracer.Start(ctx, "orchestrator.run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", em.runID))

	o.metrics.runStarted()
	o.logger.RunStarted(ctx, em.runID, query)
	defer o.cleanup(ctx)

	if err := o.executeRecovered(ctx, em, query, initial); err != nil {
		o.mu.Lock()
		o.gate.fail()
		o.mu.Unlock()

		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		o.logger.RunFailed(ctx, em.runID, err)
		o.metrics.runFinished(PhaseError)
		em.fail(ctx, err)
		return
	}
	span.SetStatus(codes.Ok, "run completed")
	o.metrics.runFinished(PhaseDone)
}

// executeRecovered runs execute and reports a panic as a *RunError for the
// phase that was active.
func (o *Orchestrator) executeRecovered(ctx context.Context, em *emitter, query string, initial map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Recovered(ctx, em.runID, r, debug.Stack())
			err = &RunError{Phase: o.Phase(), Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	return o.execute(ctx, em, query, initial)
}

// execute drives the phases. Any error it returns is a *RunError.
func (o *Orchestrator) execute(ctx context.Context, em *emitter, query string, initial map[string]any) error {
	if strings.TrimSpace(query) == "" {
		return &RunError{Phase: PhaseIdle, Err: ErrEmptyQuery}
	}
	o.saveInitialContext(ctx, initial)

	if o.cfg.EnablePlanning {
		if err := o.enter(ctx, PhasePlanning); err != nil {
			return err
		}
		em.status(ctx, "Creating task plan...")
		tasks, err := o.plan(ctx, query)
		if err != nil {
			return &RunError{Phase: PhasePlanning, Err: err}
		}
		em.emit(ctx, Event{Type: EventPlan, Tasks: tasks})
	}

	if err := o.enter(ctx, PhaseExecuting); err != nil {
		return err
	}
	iterations, err := o.executeLoop(ctx, em)
	if err != nil {
		return &RunError{Phase: PhaseExecuting, Err: err}
	}

	if err := o.enter(ctx, PhaseSynthesizing); err != nil {
		return err
	}
	em.status(ctx, "Synthesizing results...")
	answer, err := o.synthesize(ctx, query)
	if err != nil {
		return &RunError{Phase: PhaseSynthesizing, Err: err}
	}
	if err := o.saveResults(ctx, answer); err != nil {
		return &RunError{Phase: PhaseSynthesizing, Err: err}
	}

	meta := &AnswerMetadata{
		Iterations:     iterations,
		TasksCompleted: o.tasksCompleted(),
		ExecutionTime:  o.elapsed().Seconds(),
	}
	if err := o.enter(ctx, PhaseDone); err != nil {
		return err
	}
	em.emit(ctx, Event{Type: EventAnswer, Content: answer, Metadata: meta})
	o.logger.RunCompleted(ctx, em.runID, meta.Iterations, meta.TasksCompleted, o.elapsed())
	return nil
}

// enter moves to the next phase and records how long the previous one took.
func (o *Orchestrator) enter(ctx context.Context, p Phase) error {
	o.mu.Lock()
	prev := o.gate.current
	if err := o.gate.enter(p); err != nil {
		o.mu.Unlock()
		return &RunError{Phase: prev, Err: err}
	}
	now := o.now()
	if prev != PhaseIdle {
		o.metrics.observePhase(prev, now.Sub(o.phaseStart))
	}
	o.phaseStart = now
	runID := o.state.id
	o.mu.Unlock()

	o.logger.PhaseEntered(ctx, runID, p)
	return nil
}

func (o *Orchestrator) elapsed() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == nil {
		return 0
	}
	return o.now().Sub(o.state.startedAt)
}

func (o *Orchestrator) currentRun() runState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == nil {
		return runState{}
	}
	return *o.state
}

func (o *Orchestrator) setIterations(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != nil {
		o.state.iterations = n
	}
}

func (o *Orchestrator) tasksCompleted() int {
	n := 0
	for _, t := range o.Graph().Tasks() {
		if t.Status == planning.StatusCompleted {
			n++
		}
	}
	return n
}

// cleanup retires terminal sub-agents and purges completed tasks.
func (o *Orchestrator) cleanup(ctx context.Context) {
	final := o.Graph().Summary()
	o.mu.Lock()
	if o.state != nil {
		o.state.finalTasks = &final
	}
	o.mu.Unlock()

	removedAgents := o.Agents().CleanupCompleted()
	removedTasks := o.Graph().ClearCompleted()
	o.logger.Zap().Debug("cleanup finished",
		zap.Int("agents_removed", removedAgents),
		zap.Int("tasks_removed", removedTasks))
}

// Reset discards the last run and replaces the graph, store and manager
// with empty ones. It fails with ErrRunInProgress while a run is active.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer o.running.Store(false)

	o.reset(ctx)
	return nil
}

// Reconfigure replaces the run configuration for subsequent runs. Like
// Reset it discards the last run, and it fails with ErrRunInProgress while
// a run is active.
func (o *Orchestrator) Reconfigure(ctx context.Context, cfg Config) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer o.running.Store(false)

	o.mu.Lock()
	o.cfg = cfg.withDefaults()
	o.logger = NewLogger(o.zl, o.cfg.Verbose)
	o.mu.Unlock()

	o.reset(ctx)
	return nil
}

func (o *Orchestrator) reset(ctx context.Context) {
	graph, st, agents := o.newComponents()
	o.mu.Lock()
	o.graph, o.store, o.agents = graph, st, agents
	o.state = nil
	o.gate.rearm()
	o.mu.Unlock()

	if r, ok := o.index.(interface{ Reset() error }); ok {
		if err := r.Reset(); err != nil {
			o.logger.Warn(ctx, "failed to reset findings index", err)
		}
	}
	o.logger.Reset(ctx)
}

// StateSummary describes the current or last run. It reports false before
// the first run and after Reset.
func (o *Orchestrator) StateSummary() (StateSummary, bool) {
	o.mu.Lock()
	if o.state == nil {
		o.mu.Unlock()
		return StateSummary{}, false
	}
	state := *o.state
	phase := o.gate.current
	graph, st, agents := o.graph, o.store, o.agents
	cfg := o.cfg
	o.mu.Unlock()

	sum := StateSummary{
		RunID:               state.id,
		Query:               state.query,
		Phase:               phase,
		IterationsCompleted: state.iterations,
		ExecutionTime:       o.now().Sub(state.startedAt).Seconds(),
	}
	if cfg.EnablePlanning {
		s := graph.Summary()
		sum.TodoSummary = &s
		sum.FinalTodoSummary = state.finalTasks
	}
	if cfg.EnableMemory {
		s := st.Summary()
		sum.MemorySummary = &s
	}
	if cfg.EnableSubAgents {
		s := agents.Summary()
		sum.SubAgentsSummary = &s
	}
	return sum, true
}
