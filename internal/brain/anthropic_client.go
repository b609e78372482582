package brain

import (
	"context"
	"errors"
	"strings"

	"tech-ai-bot/internal/core/ports"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend generates text with the Claude messages API.
type AnthropicBackend struct {
	model  string
	client *anthropic.Client
}

func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	b := &AnthropicBackend{model: model}
	if apiKey == "" {
		return b
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	b.client = &client
	return b
}

var _ ports.Backend = (*AnthropicBackend)(nil)

func (b *AnthropicBackend) Name() string    { return "anthropic" }
func (b *AnthropicBackend) Available() bool { return b.client != nil }

func (b *AnthropicBackend) Generate(ctx context.Context, p ports.Prompt) (string, error) {
	if b.client == nil {
		return "", ports.NewCallError("anthropic", ports.KindAuth, errors.New("no api key"))
	}
	maxTokens := int64(p.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 512
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(p.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", ports.NewCallError("anthropic", kindForStatus(status), err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return "", ports.NewCallError("anthropic", ports.KindInvalid, errors.New("empty response"))
	}
	return sb.String(), nil
}
