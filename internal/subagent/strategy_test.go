package subagent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deepagent/internal/llm"
)

func TestDefaultStrategy_StopsWhenCancelled(t *testing.T) {
	_, m := newTestManager(t)
	a, err := m.Create(context.Background(), Spec{Task: "x"})
	require.NoError(t, err)

	a.mu.Lock()
	a.status = StatusCancelled
	a.mu.Unlock()

	_, err = DefaultStrategy{}.Run(context.Background(), a)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, a.Iterations())
}

func TestDefaultStrategy_ContextDone(t *testing.T) {
	_, m := newTestManager(t)
	a, err := m.Create(context.Background(), Spec{Task: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DefaultStrategy{}.Run(ctx, a)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorStrategy(t *testing.T) {
	gen := llm.NewScripted("JWT secrets are rotated weekly.")
	_, m := newTestManager(t, WithStrategy(GeneratorStrategy{Generator: gen}))
	ctx := context.Background()

	a, err := m.Create(ctx, Spec{
		Type:       TypeResearch,
		Task:       "investigate token rotation",
		Objectives: []string{"find the rotation period"},
		Context:    map[string]any{"original_query": "audit auth"},
	})
	require.NoError(t, err)

	res, ok := m.Execute(ctx, a.ID)
	require.True(t, ok)
	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, "JWT secrets are rotated weekly.", res.Output)
	assert.Equal(t, 1, res.Iterations)

	stored, ok := a.ReadFile("response.md")
	require.True(t, ok)
	assert.Equal(t, res.Output, stored)

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Task: investigate token rotation")
	assert.Contains(t, prompts[0], "- find the rotation period")
	assert.Contains(t, prompts[0], "- original_query: audit auth")
}

func TestGeneratorStrategy_Error(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	})
	_, m := newTestManager(t, WithStrategy(GeneratorStrategy{Generator: gen}))
	ctx := context.Background()

	a, err := m.Create(ctx, Spec{Task: "x"})
	require.NoError(t, err)

	res, ok := m.Execute(ctx, a.ID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "generating response: quota exceeded", res.Error)
}

func TestAgent_Prompt_NoContext(t *testing.T) {
	a := &Agent{Spec: Spec{Task: "t", Objectives: []string{"a", "b"}}}
	p := a.Prompt()
	assert.Contains(t, p, "Objectives:\n- a\n- b\n")
	assert.NotContains(t, p, "Context:")
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusIdle.CanTransitionTo(StatusRunning))
	assert.False(t, StatusIdle.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusRunning.CanTransitionTo(StatusCancelled))
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.IsTerminal())
		for _, target := range Statuses {
			assert.False(t, s.CanTransitionTo(target), "%s -> %s", s, target)
		}
	}
	assert.False(t, StatusRunning.IsTerminal())
}
