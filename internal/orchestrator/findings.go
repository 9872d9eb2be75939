package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/deepagent/internal/findings"
	"github.com/fyrsmithlabs/deepagent/internal/planning"
	"github.com/fyrsmithlabs/deepagent/internal/store"
	"github.com/fyrsmithlabs/deepagent/internal/subagent"
)

// FindingsIndex stores delegated results for semantic lookup during
// synthesis. *findings.Index implements it.
type FindingsIndex interface {
	Add(ctx context.Context, f findings.Finding) error
	Search(ctx context.Context, query string, n int) ([]findings.Match, error)
}

func findingsPath(taskID string) string {
	return fmt.Sprintf("/research/findings_%s.md", taskID)
}

// recordFinding persists a successful delegation: the execution record in
// the agent workspace, a findings file for synthesis and an index entry.
func (o *Orchestrator) recordFinding(ctx context.Context, task planning.Task, agent *subagent.Agent, res *subagent.Result) {
	meta := map[string]any{"task_id": task.ID, "agent_id": agent.ID}

	if data, err := json.MarshalIndent(res, "", "  "); err != nil {
		o.logger.Warn(ctx, "failed to encode sub-agent result", err)
	} else {
		o.save(ctx, store.Join(agent.Workspace, FinalResultFile), string(data), meta)
	}

	path := findingsPath(task.ID)
	o.save(ctx, path, fmt.Sprintf("# %s\n\n%s\n", task.Title, res.Output), meta)

	if o.index == nil || res.Output == "" {
		return
	}
	err := o.index.Add(ctx, findings.Finding{
		ID:      task.ID,
		Content: res.Output,
		Metadata: map[string]string{
			"task_id":  task.ID,
			"agent_id": agent.ID,
			"run_id":   o.currentRun().id,
			"title":    task.Title,
			"path":     path,
		},
	})
	if err != nil {
		o.logger.Warn(ctx, "failed to index finding", err)
	}
}
