package subagent

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/deepagent/internal/llm"
)

// Strategy performs an agent's work and returns its result text.
type Strategy interface {
	Run(ctx context.Context, a *Agent) (string, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, a *Agent) (string, error)

func (f StrategyFunc) Run(ctx context.Context, a *Agent) (string, error) {
	return f(ctx, a)
}

// DefaultStrategy records a few bookkeeping iterations and returns
// "Completed <task>". It does no real work.
type DefaultStrategy struct{}

const defaultStrategyIterations = 3

func (DefaultStrategy) Run(ctx context.Context, a *Agent) (string, error) {
	a.Log("Executing default sub-agent logic")

	n := min(defaultStrategyIterations, a.Spec.MaxIterations)
	for range n {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if a.Cancelled() {
			return "", ErrCancelled
		}
		it := a.NextIteration()
		a.Log(fmt.Sprintf("Iteration %d", it))
		if err := a.WriteFile(fmt.Sprintf("iteration_%d.txt", it), fmt.Sprintf("Results from iteration %d", it)); err != nil {
			return "", fmt.Errorf("writing iteration %d: %w", it, err)
		}
	}
	return "Completed " + a.Spec.Task, nil
}

// GeneratorStrategy sends the agent's prompt to a text generator and stores
// the response as response.md in the workspace.
type GeneratorStrategy struct {
	Generator llm.Generator
}

func (g GeneratorStrategy) Run(ctx context.Context, a *Agent) (string, error) {
	it := a.NextIteration()
	a.Log(fmt.Sprintf("Iteration %d: prompting generator", it))

	out, err := g.Generator.Generate(ctx, a.Prompt())
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}
	if err := a.WriteFile("response.md", out); err != nil {
		return "", fmt.Errorf("writing response: %w", err)
	}
	return out, nil
}

var (
	_ Strategy = DefaultStrategy{}
	_ Strategy = GeneratorStrategy{}
	_ Strategy = StrategyFunc(nil)
)
