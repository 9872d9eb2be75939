package subagent

import "errors"

// Validation errors.
var (
	ErrEmptyTask   = errors.New("task description is required")
	ErrUnknownType = errors.New("unknown sub-agent type")
)

// Lifecycle errors.
var (
	ErrAgentNotFound     = errors.New("sub-agent not found")
	ErrMaxSubAgents      = errors.New("maximum number of live sub-agents reached")
	ErrInvalidTransition = errors.New("invalid sub-agent state transition")
	ErrWorkspace         = errors.New("could not create sub-agent workspace")
	ErrCancelled         = errors.New("sub-agent cancelled")
	ErrStrategyPanic     = errors.New("strategy panicked")
)
