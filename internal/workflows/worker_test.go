package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Info("Started worker", "task_queue", "q1")
	adapter.With("namespace", "default").Warn("Retrying", "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "temporal", entries[0].LoggerName)
	assert.Equal(t, "q1", entries[0].ContextMap()["task_queue"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "default", entries[1].ContextMap()["namespace"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["attempt"])

	assert.NotPanics(t, func() { NewZapAdapter(nil).Error("dropped") })
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "subagent-abc", WorkflowID("abc"))
}
