package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is a minimal llms.Model.
type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tc.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChain_Generate(t *testing.T) {
	model := &fakeModel{reply: "- research A\n- research B"}
	gen := NewLangChain(model, llms.WithTemperature(0.2))

	out, err := gen.Generate(context.Background(), "plan this")
	require.NoError(t, err)
	assert.Equal(t, "- research A\n- research B", out)
	assert.Equal(t, []string{"plan this"}, model.prompts)
}

func TestLangChain_Errors(t *testing.T) {
	_, err := NewLangChain(&fakeModel{reply: "   "}).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("boom")
	_, err = NewLangChain(&fakeModel{err: boom}).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNew(t *testing.T) {
	gen, err := New(Config{Provider: "echo", RateLimit: 100, Burst: 1, MaxRetries: 1})
	require.NoError(t, err)
	out, err := gen.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = New(Config{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRateLimited(t *testing.T) {
	gen := NewRateLimited(Echo{}, 1, 1)

	_, err := gen.Generate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, "second")
	assert.Error(t, err, "second call must wait longer than the deadline")
}

func TestRetrying(t *testing.T) {
	var calls atomic.Int32
	flaky := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	})

	out, err := NewRetrying(flaky, 3, time.Millisecond).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	_, err = NewRetrying(flaky, 1, time.Millisecond).Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "max retries exceeded")

	var empties atomic.Int32
	empty := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		empties.Add(1)
		return "", ErrEmptyResponse
	})
	_, err = NewRetrying(empty, 5, time.Millisecond).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, int32(1), empties.Load())
}

func TestScripted(t *testing.T) {
	s := NewScripted("one", "two")
	ctx := context.Background()

	for _, want := range []string{"one", "two", "two"} {
		got, err := s.Generate(ctx, "p-"+want)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, []string{"p-one", "p-two", "p-two"}, s.Prompts())

	boom := errors.New("down")
	_, err := s.FailWith(boom).Generate(ctx, "x")
	assert.ErrorIs(t, err, boom)

	_, err = NewScripted().Generate(ctx, "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
