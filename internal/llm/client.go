// Package llm provides AI provider clients and failure classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyPrompt is returned before any network call for blank prompts.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrUpstream marks provider failures that survived the retry budget or
	// were never retryable. Handlers map it to a 502-class response.
	ErrUpstream = errors.New("ai provider unavailable")
)

// RateLimitError is a provider rate-limit signal. RetryAfter is the
// provider-suggested delay, zero when the provider gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ServerError is a transient provider-side fault (5xx class).
type ServerError struct {
	StatusCode int
	Err        error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider server error (%d): %v", e.StatusCode, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is eligible for another attempt.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// Client is the interface for AI providers. Complete returns the answer
// text for a single prompt; failures are classified into the typed errors
// above at the provider boundary.
type Client interface {
	// Complete sends one generation request.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of AI provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewClient creates an AI client for the given provider. Model may be
// empty to use the provider default.
func NewClient(ctx context.Context, provider Provider, apiKey, model string) (Client, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, apiKey, model)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}
