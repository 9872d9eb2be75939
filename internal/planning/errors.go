package planning

import "errors"

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrUnknownStatus     = errors.New("unknown task status")
	ErrUnknownPriority   = errors.New("unknown task priority")
)
