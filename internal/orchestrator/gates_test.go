package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_Transitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseIdle, PhasePlanning, true},
		{PhaseIdle, PhaseExecuting, true},
		{PhaseIdle, PhaseSynthesizing, false},
		{PhasePlanning, PhaseExecuting, true},
		{PhasePlanning, PhaseDone, false},
		{PhaseExecuting, PhaseSynthesizing, true},
		{PhaseExecuting, PhasePlanning, false},
		{PhaseSynthesizing, PhaseDone, true},
		{PhaseDone, PhaseIdle, false},
		{PhaseError, PhasePlanning, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	for _, p := range AllPhases() {
		if p.IsTerminal() {
			assert.Empty(t, ValidTransitions[p], p)
			continue
		}
		assert.True(t, p.CanTransitionTo(PhaseError), "%s can fail", p)
	}
}

func TestPhaseGate(t *testing.T) {
	var g phaseGate
	g.rearm()
	require.Equal(t, PhaseIdle, g.current)

	require.NoError(t, g.enter(PhasePlanning))
	err := g.enter(PhaseDone)
	assert.ErrorIs(t, err, ErrInvalidPhaseTransition)
	assert.Contains(t, err.Error(), "planning -> done")
	assert.Equal(t, PhasePlanning, g.current, "rejected moves leave the gate unchanged")

	assert.True(t, g.fail())
	assert.Equal(t, PhaseError, g.current)
	assert.False(t, g.fail(), "already terminal")

	g.rearm()
	require.NoError(t, g.enter(PhaseExecuting))
	require.NoError(t, g.enter(PhaseSynthesizing))
	require.NoError(t, g.enter(PhaseDone))
	assert.False(t, g.fail(), "done stays done")
	assert.Equal(t, PhaseDone, g.current)
}
