package orchestrator

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deepagent/internal/planning"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.EnablePlanning)
	assert.True(t, cfg.EnableSubAgents)
	assert.True(t, cfg.EnableMemory)
	assert.Equal(t, 5, cfg.MaxSubAgents)
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.Equal(t, planning.FailOpen, cfg.DependencyPolicy)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{EnableMemory: true, MaxIterations: 3}.withDefaults()
	assert.Equal(t, 3, cfg.MaxIterations, "explicit limits are kept")
	assert.Equal(t, 5, cfg.MaxSubAgents)
	assert.Equal(t, 300*time.Second, cfg.SubAgentTimeout)
	assert.False(t, cfg.EnablePlanning, "switches are not defaulted")
}

func TestEvent_JSON(t *testing.T) {
	failed := false
	ev := Event{
		Type:    EventTaskComplete,
		RunID:   "run-1",
		Seq:     4,
		Time:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Task:    "Research caching",
		TaskID:  "task_2",
		Success: &failed,
		Err:     errors.New("not serialized"),
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "task_complete",
		"run_id": "run-1",
		"seq": 4,
		"timestamp": "2025-03-01T12:00:00Z",
		"task": "Research caching",
		"task_id": "task_2",
		"success": false
	}`, string(data))
	assert.False(t, ev.Succeeded())
	assert.False(t, Event{Type: EventStatus}.Succeeded())
}

func TestRunError(t *testing.T) {
	err := &RunError{Phase: PhaseExecuting, Err: ErrEmptyQuery}
	assert.Equal(t, "executing phase failed: query is required", err.Error())
	assert.ErrorIs(t, err, ErrEmptyQuery)

	var runErr *RunError
	wrapped := errors.Join(errors.New("context"), err)
	require.ErrorAs(t, wrapped, &runErr)
	assert.Equal(t, PhaseExecuting, runErr.Phase)
}
