package orchestrator

import "fmt"

// Phase is one stage of a run.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
)

// AllPhases returns every phase in run order, Error last.
func AllPhases() []Phase {
	return []Phase{PhaseIdle, PhasePlanning, PhaseExecuting, PhaseSynthesizing, PhaseDone, PhaseError}
}

// ValidTransitions defines the phase state machine. Planning is skipped
// when it is disabled, so Idle may move straight to Executing.
var ValidTransitions = map[Phase][]Phase{
	PhaseIdle:         {PhasePlanning, PhaseExecuting, PhaseError},
	PhasePlanning:     {PhaseExecuting, PhaseError},
	PhaseExecuting:    {PhaseSynthesizing, PhaseError},
	PhaseSynthesizing: {PhaseDone, PhaseError},
	PhaseDone:         {}, // terminal
	PhaseError:        {}, // terminal
}

// CanTransitionTo checks if a transition from p to target is valid.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, t := range ValidTransitions[p] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Done and Error.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseError
}

// phaseGate tracks the current phase of one orchestrator.
type phaseGate struct {
	current Phase
}

// enter moves to target, rejecting moves outside ValidTransitions.
func (g *phaseGate) enter(target Phase) error {
	if !g.current.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, g.current, target)
	}
	g.current = target
	return nil
}

// fail moves to Error from any non-terminal phase. It reports false when
// the phase was already terminal.
func (g *phaseGate) fail() bool {
	if g.current.IsTerminal() {
		return false
	}
	g.current = PhaseError
	return true
}

// rearm returns a terminal gate to Idle for the next run.
func (g *phaseGate) rearm() {
	g.current = PhaseIdle
}
