package events

import "errors"

var (
	// ErrNoConnection is returned when a sink or subscription is created
	// without a NATS connection.
	ErrNoConnection = errors.New("nats connection is required")

	// ErrInvalidPrefix indicates a subject prefix containing wildcards or
	// empty tokens.
	ErrInvalidPrefix = errors.New("invalid subject prefix")
)
