package llm

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"

	defaultOpenAIModel = "gpt-4o-mini"
)

// Config selects and tunes a generator.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit  float64
	Burst      int
	MaxRetries int
	Backoff    time.Duration
}

func (c Config) modelOrDefault() string {
	if c.Model == "" {
		return defaultOpenAIModel
	}
	return c.Model
}

// New builds the generator stack described by cfg: the provider client,
// wrapped in Retrying and then RateLimited.
func New(cfg Config) (Generator, error) {
	var gen Generator
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		lc, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		gen = lc
	case ProviderEcho:
		gen = Echo{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.MaxRetries > 0 {
		gen = NewRetrying(gen, cfg.MaxRetries, cfg.Backoff)
	}
	if cfg.RateLimit > 0 {
		gen = NewRateLimited(gen, cfg.RateLimit, cfg.Burst)
	}
	return gen, nil
}
