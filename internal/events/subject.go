package events

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "deepagent.events"

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPrefix)
	}
	for _, tok := range strings.Split(prefix, ".") {
		if tok == "" || strings.ContainsAny(tok, "*> \t\r\n") {
			return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
		}
	}
	return nil
}

// Subject returns the subject an event of type t for runID is published on.
func Subject(prefix, runID string, t orchestrator.EventType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, sanitizeToken(runID), t)
}

// RunSubject matches every event of one run.
func RunSubject(prefix, runID string) string {
	return fmt.Sprintf("%s.%s.*", prefix, sanitizeToken(runID))
}

// AllSubject matches every event under prefix.
func AllSubject(prefix string) string {
	return prefix + ".>"
}

// sanitizeToken keeps a value usable as one subject token.
func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
