package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tech-ai-bot/internal/core/ports"

	"google.golang.org/genai"
)

// DefaultGeminiModels are tried in order until one answers.
var DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}

// GeminiBackend generates text with the Gemini API. Within the backend each
// model is tried in turn; a model that is rate limited or missing moves on
// to the next one.
type GeminiBackend struct {
	Client *genai.Client
	Models []string
}

// NewGeminiBackend returns a backend that reports itself unavailable when
// apiKey is empty.
func NewGeminiBackend(ctx context.Context, apiKey string, models []string) (*GeminiBackend, error) {
	if len(models) == 0 {
		models = DefaultGeminiModels
	}
	b := &GeminiBackend{Models: models}
	if apiKey == "" {
		return b, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	b.Client = client
	return b, nil
}

var _ ports.Backend = (*GeminiBackend)(nil)

func (b *GeminiBackend) Name() string    { return "gemini" }
func (b *GeminiBackend) Available() bool { return b.Client != nil }

func (b *GeminiBackend) Generate(ctx context.Context, p ports.Prompt) (string, error) {
	if b.Client == nil {
		return "", ports.NewCallError("gemini", ports.KindAuth, errors.New("no api key"))
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.Temperature),
	}
	if p.System != "" {
		config.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.MaxTokens)
	}

	var lastErr error
	for _, model := range b.Models {
		result, err := b.Client.Models.GenerateContent(ctx, model, genai.Text(p.User), config)
		if err != nil {
			kind := classifyGemini(err)
			lastErr = ports.NewCallError("gemini "+model, kind, err)
			if kind == ports.KindRateLimited || isModelMissing(err) {
				continue
			}
			return "", lastErr
		}
		// Text joins every text part of the first candidate and drops thoughts.
		if result != nil {
			if text := result.Text(); text != "" {
				return text, nil
			}
		}
		lastErr = ports.NewCallError("gemini "+model, ports.KindInvalid, errors.New("empty candidates"))
	}
	if lastErr == nil {
		lastErr = ports.NewCallError("gemini", ports.KindInvalid, errors.New("no models configured"))
	}
	return "", lastErr
}

func classifyGemini(err error) ports.Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ports.KindTransient
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "rate limit") || strings.Contains(s, "exhausted"):
		return ports.KindRateLimited
	case strings.Contains(s, "401") || strings.Contains(s, "403") || strings.Contains(s, "api key"):
		return ports.KindAuth
	case strings.Contains(s, "400") || isModelMissing(err):
		return ports.KindInvalid
	}
	return ports.KindTransient
}

func isModelMissing(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "404") || strings.Contains(s, "not found")
}
