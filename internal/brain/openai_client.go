package brain

import (
	"context"
	"errors"
	"net/http"

	"tech-ai-bot/internal/core/ports"

	"github.com/sashabaranov/go-openai"
)

// Base URLs of OpenAI-compatible providers.
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
)

// OpenAIBackend talks to any OpenAI-compatible chat completion endpoint.
type OpenAIBackend struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIBackend builds a backend named name. An empty baseURL uses the
// OpenAI default; an empty apiKey leaves the backend unavailable.
func NewOpenAIBackend(name, apiKey, baseURL, model string) *OpenAIBackend {
	b := &OpenAIBackend{name: name, model: model}
	if apiKey == "" {
		return b
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	b.client = openai.NewClientWithConfig(cfg)
	return b
}

var _ ports.Backend = (*OpenAIBackend)(nil)

func (b *OpenAIBackend) Name() string    { return b.name }
func (b *OpenAIBackend) Available() bool { return b.client != nil }

func (b *OpenAIBackend) Generate(ctx context.Context, p ports.Prompt) (string, error) {
	if b.client == nil {
		return "", ports.NewCallError(b.name, ports.KindAuth, errors.New("no api key"))
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", ports.NewCallError(b.name, classifyOpenAI(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", ports.NewCallError(b.name, ports.KindInvalid, errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) ports.Kind {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return kindForStatus(status)
}

// kindForStatus maps an HTTP status to a failure kind. Zero means the
// request never got a response.
func kindForStatus(status int) ports.Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return ports.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ports.KindAuth
	case status >= 400 && status < 500:
		return ports.KindInvalid
	}
	return ports.KindTransient
}
