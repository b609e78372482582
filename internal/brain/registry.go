package brain

import (
	"context"
	"fmt"
	"time"
)

// Spec describes one configured backend.
type Spec struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Supported provider names.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGroq       = "groq"
	ProviderAnthropic  = "anthropic"
)

// BuildEntries turns specs into a priority-ordered backend list.
func BuildEntries(ctx context.Context, specs []Spec) ([]Entry, error) {
	entries := make([]Entry, 0, len(specs))
	for i, s := range specs {
		e := Entry{Temperature: s.Temperature, MaxTokens: s.MaxTokens, Timeout: s.Timeout}
		switch s.Provider {
		case ProviderGemini:
			var models []string
			if s.Model != "" {
				models = []string{s.Model}
			}
			b, err := NewGeminiBackend(ctx, s.APIKey, models)
			if err != nil {
				return nil, fmt.Errorf("backend %d (%s): %w", i, s.Provider, err)
			}
			e.Backend = b
		case ProviderOpenAI:
			e.Backend = NewOpenAIBackend(ProviderOpenAI, s.APIKey, s.BaseURL, s.Model)
		case ProviderOpenRouter:
			e.Backend = NewOpenAIBackend(ProviderOpenRouter, s.APIKey, orDefault(s.BaseURL, OpenRouterBaseURL), s.Model)
		case ProviderGroq:
			e.Backend = NewOpenAIBackend(ProviderGroq, s.APIKey, orDefault(s.BaseURL, GroqBaseURL), s.Model)
		case ProviderAnthropic:
			e.Backend = NewAnthropicBackend(s.APIKey, s.Model)
		default:
			return nil, fmt.Errorf("backend %d: unknown provider %q", i, s.Provider)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
