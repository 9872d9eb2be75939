package workflows

import (
	"errors"
	"fmt"
)

// Input validation.
var (
	ErrInvalidInput = errors.New("invalid workflow input")
	ErrEmptyField   = errors.New("required field is empty")
)

var (
	// ErrNoFindings fails a sub-agent workflow whose objectives all failed.
	ErrNoFindings = errors.New("no objective produced a finding")

	// ErrEmptyOutput is returned by an activity whose generator answered
	// with only whitespace. It is not retried.
	ErrEmptyOutput = errors.New("generator returned an empty response")

	ErrNoClient = errors.New("temporal client is required")
)

// StepError wraps the error that ended a workflow with the step it failed
// in and a short detail for the result.
type StepError struct {
	Step   string
	Detail string
	Err    error
}

func (e *StepError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed: %v (%s)", e.Step, e.Err, e.Detail)
}

func (e *StepError) Unwrap() error { return e.Err }

// objectiveError is the entry recorded in SubAgentResult.Errors for a
// failed objective. index is 1-based.
func objectiveError(index int, err error) string {
	return fmt.Sprintf("objective %d: %v", index, err)
}
