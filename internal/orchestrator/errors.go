package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrRunInProgress is returned when a run is started or the orchestrator
	// is reset while another run is active.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrInvalidPhaseTransition indicates a phase change not allowed by
	// ValidTransitions.
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")

	// ErrNoGenerator is returned by New when no generator is supplied.
	ErrNoGenerator = errors.New("text generator is required")

	// ErrEmptyQuery is reported when Process is called with a blank query.
	ErrEmptyQuery = errors.New("query is required")

	// ErrPanic wraps a panic recovered from a collaborator during a run.
	ErrPanic = errors.New("run panicked")
)

// RunError is a fault that ended a run. It records the phase that was
// active when the fault occurred.
type RunError struct {
	Phase Phase
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
