package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/deepagent/internal/planning"
	"github.com/fyrsmithlabs/deepagent/internal/subagent"
)

// Store paths written during a run.
const (
	InitialContextPath = "/context/initial_context.json"
	InitialPlanPath    = "/research/initial_plan.md"
	FinalAnswerPath    = "/results/final_answer.md"
	MemoryExportPath   = "/results/memory_export.json"
	FinalResultFile    = "final_result.json"
)

// unplannedIterations bounds the loop when planning is disabled.
const unplannedIterations = 5

// maxDigestFindings is how many findings files feed the synthesis digest.
const maxDigestFindings = 3

// findingExcerpt is the number of bytes of each finding quoted in the digest.
const findingExcerpt = 200

// DelegationKeywords mark a task title as research work for a sub-agent.
var DelegationKeywords = []string{"research", "analyze", "investigate", "explore", "deep dive"}

// needsSubAgent reports whether title contains a delegation keyword.
func needsSubAgent(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range DelegationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func progressPath(iteration int) string {
	return fmt.Sprintf("/research/progress_iteration_%d.json", iteration)
}

// plan asks the generator for a plan and registers one task per candidate
// line.
func (o *Orchestrator) plan(ctx context.Context, query string) ([]planning.Task, error) {
	text, err := o.gen.Generate(ctx, planningPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("generating plan: %w", err)
	}

	graph := o.Graph()
	planned := planning.ParsePlan(text)
	tasks := make([]planning.Task, 0, len(planned))
	for _, p := range planned {
		tasks = append(tasks, graph.AddTask(p.Title, planning.WithPriority(p.Priority)))
	}

	o.save(ctx, InitialPlanPath, graph.DisplayText(), nil)
	o.logger.PlanCreated(ctx, o.currentRun().id, len(tasks))
	return tasks, nil
}

// executeLoop runs one ready task per iteration and returns the number of
// iterations completed. It stops early when nothing is ready.
func (o *Orchestrator) executeLoop(ctx context.Context, em *emitter) (int, error) {
	graph := o.Graph()

	limit := unplannedIterations
	if o.cfg.EnablePlanning {
		limit = graph.Len()
	}
	limit = min(limit, o.cfg.MaxIterations)

	completed := 0
	for iteration := 1; iteration <= limit; iteration++ {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		task, ok := graph.Next()
		if !ok {
			break
		}

		em.status(ctx, "Executing: "+task.Title)
		success := o.executeTask(ctx, task, iteration)
		em.emit(ctx, Event{Type: EventTaskComplete, Task: task.Title, TaskID: task.ID, Success: &success})

		completed = iteration
		o.setIterations(iteration)
		o.saveProgress(ctx, iteration)
	}
	return completed, nil
}

// executeTask runs one task. A fault blocks the task with an error note and
// is reported as false; it never stops the loop.
func (o *Orchestrator) executeTask(ctx context.Context, task planning.Task, iteration int) bool {
	ctx, span := tracer.Start(ctx, "orchestrator.task")
	defer span.End()

	graph := o.Graph()
	o.logger.TaskStarted(ctx, task.ID, task.Title, iteration)

	err := graph.SetStatus(task.ID, planning.StatusInProgress)
	if err == nil {
		err = o.performTask(ctx, task, iteration)
	}
	if err != nil {
		span.RecordError(err)
		o.logger.TaskFailed(ctx, task.ID, err)
		_ = graph.SetStatus(task.ID, planning.StatusBlocked)
		graph.AddNote(task.ID, "Error: "+err.Error())
		o.metrics.task(false)
		return false
	}

	if err := graph.SetStatus(task.ID, planning.StatusCompleted); err != nil {
		o.logger.TaskFailed(ctx, task.ID, err)
		o.metrics.task(false)
		return false
	}
	o.logger.TaskFinished(ctx, task.ID, true)
	o.metrics.task(true)
	return true
}

func (o *Orchestrator) performTask(ctx context.Context, task planning.Task, iteration int) error {
	if o.cfg.EnableSubAgents && needsSubAgent(task.Title) {
		return o.delegate(ctx, task, iteration)
	}
	o.Graph().AddNote(task.ID, fmt.Sprintf("Executed at iteration %d", iteration))
	return nil
}

// delegate runs task on a fresh research sub-agent. When the live cap is
// reached the task is completed inline with a note instead.
func (o *Orchestrator) delegate(ctx context.Context, task planning.Task, iteration int) error {
	graph := o.Graph()
	agents := o.Agents()
	run := o.currentRun()

	objectives := []string{task.Title}
	if task.Description != "" {
		objectives = []string{task.Description}
	}

	agent, err := agents.Create(ctx, subagent.Spec{
		Name:       fmt.Sprintf("SubAgent_%d", iteration),
		Type:       subagent.TypeResearch,
		Task:       task.Title,
		Objectives: objectives,
		Context: map[string]any{
			"parent_query": run.query,
			"run_id":       run.id,
			"task_id":      task.ID,
		},
	})
	if errors.Is(err, subagent.ErrMaxSubAgents) {
		o.logger.DelegationRefused(ctx, task.ID, agents.MaxSubAgents())
		o.metrics.delegation("refused")
		graph.AddNote(task.ID, fmt.Sprintf(
			"Delegation refused: maximum sub-agents limit reached (%d); executed inline at iteration %d",
			agents.MaxSubAgents(), iteration))
		return nil
	}
	if err != nil {
		o.metrics.delegation("failed")
		return fmt.Errorf("creating sub-agent: %w", err)
	}
	graph.Assign(task.ID, agent.ID)

	res, ok := agents.Execute(ctx, agent.ID)
	if !ok {
		o.metrics.delegation("failed")
		return fmt.Errorf("%w: %s", subagent.ErrAgentNotFound, agent.ID)
	}
	if !res.Succeeded() {
		o.logger.SubAgentFailed(ctx, agent.ID, res.Error)
		o.metrics.delegation("failed")
		return fmt.Errorf("sub-agent %s %s: %s", agent.ID, res.Status, res.Error)
	}

	o.metrics.delegation("delegated")
	o.recordFinding(ctx, task, agent, res)
	graph.AddNote(task.ID, "Sub-agent result: "+res.Output)
	return nil
}

// synthesize asks the generator for the final answer from a digest of the
// run. The answer is scrubbed before it is returned.
func (o *Orchestrator) synthesize(ctx context.Context, query string) (string, error) {
	parts := o.digest(ctx, query)
	answer, err := o.gen.Generate(ctx, synthesisPrompt(query, parts))
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	if o.scrubber != nil {
		answer = o.scrubber.Scrub(answer).Scrubbed
	}
	return answer, nil
}

// digest lists the completion rate, sub-agent count and the first few
// findings, followed by the best index matches not already quoted.
func (o *Orchestrator) digest(ctx context.Context, query string) []string {
	var parts []string

	if o.cfg.EnablePlanning {
		parts = append(parts, fmt.Sprintf("Completed %.1f%% of planned tasks", o.Graph().Summary().CompletionRate))
	}
	if o.cfg.EnableSubAgents {
		parts = append(parts, fmt.Sprintf("Executed %d sub-agents", o.Agents().Summary().TotalAgents))
	}

	quoted := make(map[string]bool)
	if o.cfg.EnableMemory {
		st := o.Store()
		paths := st.Search("findings", "/research")
		if len(paths) > maxDigestFindings {
			paths = paths[:maxDigestFindings]
		}
		for _, path := range paths {
			content, ok := st.ReadFile(path)
			if !ok || content == "" {
				continue
			}
			quoted[path] = true
			parts = append(parts, "Finding: "+excerpt(content, findingExcerpt))
		}
	}

	if o.index != nil {
		matches, err := o.index.Search(ctx, query, maxDigestFindings)
		if err != nil {
			o.logger.Warn(ctx, "findings index search failed", err)
		}
		for _, m := range matches {
			if quoted[m.Metadata["path"]] {
				continue
			}
			parts = append(parts, "Related finding: "+excerpt(m.Content, findingExcerpt))
		}
	}
	return parts
}

func (o *Orchestrator) saveInitialContext(ctx context.Context, initial map[string]any) {
	if len(initial) == 0 {
		return
	}
	data, err := json.MarshalIndent(initial, "", "  ")
	if err != nil {
		o.logger.Warn(ctx, "failed to encode initial context", err)
		return
	}
	o.save(ctx, InitialContextPath, string(data), nil)
}

func (o *Orchestrator) saveProgress(ctx context.Context, iteration int) {
	if !o.cfg.EnableMemory {
		return
	}
	snap := progressSnapshot{
		Iteration:     iteration,
		MemorySummary: o.Store().Summary(),
	}
	if o.cfg.EnablePlanning {
		s := o.Graph().Summary()
		snap.TodoSummary = &s
	}
	if o.cfg.EnableSubAgents {
		s := o.Agents().Summary()
		snap.SubAgentsSummary = &s
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		o.logger.Warn(ctx, "failed to encode progress", err)
		return
	}
	o.save(ctx, progressPath(iteration), string(data), nil)
}

// saveResults stores the answer and then an export of the whole store.
func (o *Orchestrator) saveResults(ctx context.Context, answer string) error {
	if !o.cfg.EnableMemory {
		return nil
	}
	o.save(ctx, FinalAnswerPath, answer, nil)

	data, err := o.Store().Export()
	if err != nil {
		return fmt.Errorf("exporting store: %w", err)
	}
	o.save(ctx, MemoryExportPath, string(data), nil)
	return nil
}

// save writes to the store when memory is enabled. Failures are logged.
func (o *Orchestrator) save(ctx context.Context, path, content string, metadata map[string]any) bool {
	if !o.cfg.EnableMemory {
		return false
	}
	meta := map[string]any{"run_id": o.currentRun().id}
	for k, v := range metadata {
		meta[k] = v
	}
	if err := o.Store().WriteFile(path, content, meta); err != nil {
		o.logger.Warn(ctx, "failed to save to store", err)
		return false
	}
	return true
}
