package llm

import (
	"context"
	"sync"
)

// Scripted replays canned responses in order. Once exhausted it keeps
// returning the last one. It records every prompt it receives.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	err       error
}

// NewScripted returns a generator that answers with responses in order.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

// FailWith makes every subsequent call return err.
func (s *Scripted) FailWith(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *Scripted) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", ErrEmptyResponse
	}
	idx := len(s.prompts) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

// Prompts returns the prompts received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Echo returns the prompt unchanged. Useful for offline runs.
type Echo struct{}

func (Echo) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt, nil
}

var (
	_ Generator = (*Scripted)(nil)
	_ Generator = Echo{}
)
