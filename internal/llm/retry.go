package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Retrying retries failed generations with exponential backoff. Context
// errors and ErrEmptyResponse are returned immediately.
type Retrying struct {
	next        Generator
	maxRetries  int
	baseBackoff time.Duration
}

// NewRetrying wraps next. A maxRetries of zero disables retries.
func NewRetrying(next Generator, maxRetries int, baseBackoff time.Duration) *Retrying {
	if baseBackoff <= 0 {
		baseBackoff = time.Second
	}
	return &Retrying{next: next, maxRetries: maxRetries, baseBackoff: baseBackoff}
}

func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrEmptyResponse) &&
		!errors.Is(err, ErrMissingAPIKey)
}

var _ Generator = (*Retrying)(nil)
