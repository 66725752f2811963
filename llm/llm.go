// Package llm abstracts the chat providers used for answer synthesis,
// question generation and judging.
package llm

import (
	"context"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

// Provider is the chat contract: one system prompt, one user prompt,
// one text completion.
type Provider interface {
	Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Config holds common provider configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		MaxTokens:   4096,
		Temperature: 0.2,
	}
}

// New selects a provider implementation by name: openai, anthropic or
// gemini.
func New(name string, cfg *Config) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	case "gemini":
		return NewGemini(cfg), nil
	}
	return nil, errors.Validationf("unknown llm provider %q", name)
}
