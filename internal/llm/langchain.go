package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain adapts a langchaingo model to Generator.
type LangChain struct {
	model   llms.Model
	options []llms.CallOption
}

// NewLangChain wraps model. The call options are applied to every request.
func NewLangChain(model llms.Model, options ...llms.CallOption) *LangChain {
	return &LangChain{model: model, options: options}
}

// Generate sends prompt as a single human message.
func (l *LangChain) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, l.options...)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// NewOpenAI builds a LangChain generator for an OpenAI-compatible endpoint.
func NewOpenAI(cfg Config) (*LangChain, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.modelOrDefault()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	var callOpts []llms.CallOption
	if cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return NewLangChain(model, callOpts...), nil
}

var _ Generator = (*LangChain)(nil)
