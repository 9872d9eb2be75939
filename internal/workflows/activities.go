package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/deepagent/internal/llm"
	"github.com/fyrsmithlabs/deepagent/internal/secrets"
)

// Activities holds the dependencies of the sub-agent activities. Register
// a pointer with the worker.
type Activities struct {
	Generator llm.Generator
	Scrubber  secrets.Scrubber
	Metrics   *Metrics
}

// ResearchObjective prompts the generator for one objective.
func (a *Activities) ResearchObjective(ctx context.Context, input ObjectiveInput) (*ObjectiveResult, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	out, err := a.Generator.Generate(ctx, objectivePrompt(input))
	a.Metrics.recordActivity(ctx, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("generating objective %d: %w", input.Index, err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, temporal.NewNonRetryableApplicationError(ErrEmptyOutput.Error(), emptyOutputErrorType, ErrEmptyOutput)
	}
	if a.Scrubber != nil {
		out = a.Scrubber.Scrub(out).Scrubbed
	}

	logger.Info("Objective researched",
		"agent_id", input.AgentID,
		"index", input.Index,
		"bytes", len(out))
	return &ObjectiveResult{Objective: input.Objective, Output: out}, nil
}

func objectivePrompt(input ObjectiveInput) string {
	var b strings.Builder
	if input.Prompt != "" {
		b.WriteString(input.Prompt)
		b.WriteString("\n\n")
	} else {
		fmt.Fprintf(&b, "Task: %s\n\n", input.Task)
	}
	total := max(input.Total, input.Index)
	fmt.Fprintf(&b, "Focus on objective %d of %d: %s", input.Index, total, input.Objective)
	return b.String()
}
