package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DefaultObjectiveTimeout bounds one objective activity attempt.
const DefaultObjectiveTimeout = 2 * time.Minute

// emptyOutputErrorType is the application error type of ErrEmptyOutput.
const emptyOutputErrorType = "EmptyOutput"

// SubAgentWorkflow researches each objective of a sub-agent.
//
// This workflow:
// 1. Validates the input
// 2. Runs one ResearchObjective activity per objective, in order
// 3. Records objectives that still fail after retries and moves on
// 4. Joins the findings, failing only when no objective succeeded
func SubAgentWorkflow(ctx workflow.Context, input SubAgentInput) (*SubAgentResult, error) {
	logger := workflow.GetLogger(ctx)

	if err := input.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
	}

	logger.Info("Starting sub-agent workflow",
		"agent_id", input.AgentID,
		"name", input.Name,
		"task", input.Task)

	timeout := input.ObjectiveTimeout
	if timeout <= 0 {
		timeout = DefaultObjectiveTimeout
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{emptyOutputErrorType},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	result := &SubAgentResult{AgentID: input.AgentID}
	objectives := input.objectives()

	var a *Activities
	for i, objective := range objectives {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Iterations++

		var out ObjectiveResult
		err := workflow.ExecuteActivity(ctx, a.ResearchObjective, ObjectiveInput{
			AgentID:   input.AgentID,
			Task:      input.Task,
			Objective: objective,
			Index:     i + 1,
			Total:     len(objectives),
			Prompt:    input.Prompt,
		}).Get(ctx, &out)
		if err != nil {
			logger.Warn("Objective failed", "index", i+1, "error", err)
			result.Errors = append(result.Errors, objectiveError(i+1, err))
			continue
		}
		result.Findings = append(result.Findings, out)
	}

	if len(result.Findings) == 0 {
		return result, &StepError{
			Step:   "research_objective",
			Detail: fmt.Sprintf("%d of %d objectives failed", len(result.Errors), len(objectives)),
			Err:    ErrNoFindings,
		}
	}
	result.Output = joinFindings(result.Findings)

	logger.Info("Sub-agent workflow complete",
		"agent_id", input.AgentID,
		"findings", len(result.Findings),
		"errors", len(result.Errors))
	return result, nil
}

// joinFindings returns a single finding unchanged and heads each of
// several with its objective.
func joinFindings(findings []ObjectiveResult) string {
	if len(findings) == 1 {
		return findings[0].Output
	}
	parts := make([]string, len(findings))
	for i, f := range findings {
		parts[i] = fmt.Sprintf("### %s\n\n%s", f.Objective, strings.TrimSpace(f.Output))
	}
	return strings.Join(parts, "\n\n")
}
