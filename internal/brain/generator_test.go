package brain

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"
	"tech-ai-bot/internal/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	name      string
	available bool
	text      string
	err       error
	block     bool
	calls     []ports.Prompt
}

func (f *fakeBackend) Name() string    { return f.name }
func (f *fakeBackend) Available() bool { return f.available }

func (f *fakeBackend) Generate(ctx context.Context, p ports.Prompt) (string, error) {
	f.calls = append(f.calls, p)
	if f.block {
		<-ctx.Done()
		return "", ports.NewCallError(f.name, ports.KindTransient, ctx.Err())
	}
	return f.text, f.err
}

var testItem = &domain.QueueItem{Fingerprint: "fp", Title: "New GPU chip unveiled", Summary: "Faster training", Link: "https://example.com"}

func newTestGenerator(t *testing.T, opts Options, backends ...*fakeBackend) *Generator {
	t.Helper()
	engine, err := prompts.Load("", nil)
	require.NoError(t, err)
	entries := make([]Entry, len(backends))
	for i, b := range backends {
		entries[i] = Entry{Backend: b, Temperature: 0.7, MaxTokens: 200}
	}
	if opts.FallbackText == "" {
		opts.FallbackText = "Thanks for reaching out!"
	}
	return NewGenerator(engine, entries, opts, zaptest.NewLogger(t), rand.New(rand.NewSource(1)))
}

func TestGenerateFallsThroughBackendsInOrder(t *testing.T) {
	noKey := &fakeBackend{name: "gemini"}
	failing := &fakeBackend{name: "openrouter", available: true, err: ports.NewCallError("openrouter", ports.KindRateLimited, errors.New("429"))}
	ok := &fakeBackend{name: "groq", available: true, text: "Chips are getting faster. Ready?"}

	g := newTestGenerator(t, Options{}, noKey, failing, ok)
	res := g.Generate(context.Background(), Request{Mode: domain.ModePost, Item: testItem})

	assert.False(t, res.Fallback)
	assert.Equal(t, "groq", res.Backend)
	assert.Equal(t, "Chips are getting faster. Ready", res.Text)
	assert.Equal(t, domain.TopicHardware, res.Topic)
	assert.Empty(t, noKey.calls)
	require.Len(t, failing.calls, 1)
	require.Len(t, ok.calls, 1)

	p := ok.calls[0]
	assert.Contains(t, p.User, "New GPU chip unveiled")
	assert.Contains(t, p.System, "English")
	assert.Equal(t, float32(0.7), p.Temperature)
	assert.Equal(t, 200, p.MaxTokens)
}

func TestGenerateReturnsFallbackWhenAllFail(t *testing.T) {
	a := &fakeBackend{name: "a", available: true, err: errors.New("boom")}
	b := &fakeBackend{name: "b", available: true, text: "<think>only thoughts</think>"}

	g := newTestGenerator(t, Options{FallbackText: "Stay tuned."}, a, b)
	res := g.Generate(context.Background(), Request{Mode: domain.ModePost, Item: testItem})

	assert.True(t, res.Fallback)
	assert.Equal(t, "Stay tuned.", res.Text)
	assert.Equal(t, []string{"Stay tuned."}, res.Parts)
	assert.Empty(t, res.Backend)
}

func TestGenerateNoBackends(t *testing.T) {
	g := newTestGenerator(t, Options{})
	res := g.Generate(context.Background(), Request{Mode: domain.ModeReply, Mention: &domain.Mention{ID: "1", Text: "hi"}})
	assert.True(t, res.Fallback)
}

func TestGenerateMissingInputUsesFallback(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: "x"}
	g := newTestGenerator(t, Options{}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModePost})
	assert.True(t, res.Fallback)
	res = g.Generate(context.Background(), Request{Mode: domain.ModeTool})
	assert.True(t, res.Fallback)
	assert.Empty(t, b.calls)
}

func TestGenerateStripsReasoning(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: "<think>\nplan the post\n</think>\n**Great news** for builders!"}
	g := newTestGenerator(t, Options{}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModePost, Item: testItem})
	require.False(t, res.Fallback)
	assert.Equal(t, "Great news for builders", res.Text)
}

func TestGenerateRespectsPlatformLimit(t *testing.T) {
	long := strings.Repeat("تقنية ", 200)
	b := &fakeBackend{name: "a", available: true, text: long}
	opts := Options{
		PlatformLimit: 280,
		CharBudget:    270,
		Hashtags:      "#AI #Tech",
		BidiPrefix:    "\u202B",
		BidiSuffix:    "\u202C",
	}
	g := newTestGenerator(t, opts, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModePost, Item: testItem})
	require.False(t, res.Fallback)
	assert.LessOrEqual(t, domain.PostLength(res.Text), 280)
	assert.True(t, strings.HasPrefix(res.Text, "\u202B"))
	assert.True(t, strings.HasSuffix(res.Text, "\u202C\n\n#AI #Tech"))
	body := strings.TrimSuffix(strings.TrimPrefix(res.Text, "\u202B"), "\u202C\n\n#AI #Tech")
	assert.False(t, strings.HasSuffix(body, " "))
}

func TestGenerateCountsWideCharactersTwice(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: strings.Repeat("🚀", 200)}
	g := newTestGenerator(t, Options{PlatformLimit: 280, CharBudget: 270, Hashtags: "#AI"}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModePost, Item: testItem})
	require.False(t, res.Fallback)
	assert.LessOrEqual(t, domain.PostLength(res.Text), 280)
	assert.Equal(t, strings.Repeat("🚀", 135)+"\n\n#AI", res.Text)
}

func TestGenerateToolMode(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: "Try prompt chaining today."}
	g := newTestGenerator(t, Options{Hashtags: "#AI"}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModeTool, ToolTopic: "prompt engineering"})
	require.False(t, res.Fallback)
	assert.Equal(t, "Try prompt chaining today\n\n#AI", res.Text)
	assert.Contains(t, b.calls[0].User, "prompt engineering")
}

func TestGenerateReplyHasNoHashtags(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: "Happy to help, check the docs."}
	g := newTestGenerator(t, Options{Hashtags: "#AI"}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModeReply, Mention: &domain.Mention{ID: "43", Text: "how do I start?", Author: "sam"}})
	require.False(t, res.Fallback)
	assert.Equal(t, "Happy to help, check the docs", res.Text)
	assert.Contains(t, b.calls[0].User, "how do I start?")
	assert.Contains(t, b.calls[0].User, "sam")
}

func TestGenerateThreadNumbersParts(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: "First point.\n---\nSecond point.\n---\nThird point."}
	g := newTestGenerator(t, Options{Hashtags: "#AI", ThreadParts: 3}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModeThread, Item: testItem})
	require.False(t, res.Fallback)
	require.Len(t, res.Parts, 3)
	assert.Equal(t, "1/3 First point", res.Parts[0])
	assert.Equal(t, "2/3 Second point", res.Parts[1])
	assert.Equal(t, "3/3 Third point\n\n#AI", res.Parts[2])
	assert.Equal(t, res.Parts[0], res.Text)
	assert.Contains(t, b.calls[0].User, "3 short posts")
}

func TestGenerateThreadWithoutDelimiterIsSinglePost(t *testing.T) {
	b := &fakeBackend{name: "a", available: true, text: "Just one post."}
	g := newTestGenerator(t, Options{}, b)

	res := g.Generate(context.Background(), Request{Mode: domain.ModeThread, Item: testItem})
	assert.Equal(t, []string{"Just one post"}, res.Parts)
}

func TestGenerateBackendTimeout(t *testing.T) {
	slow := &fakeBackend{name: "slow", available: true, block: true}
	fast := &fakeBackend{name: "fast", available: true, text: "done"}

	engine, err := prompts.Load("", nil)
	require.NoError(t, err)
	g := NewGenerator(engine, []Entry{
		{Backend: slow, Timeout: 20 * time.Millisecond},
		{Backend: fast},
	}, Options{FallbackText: "x"}, zaptest.NewLogger(t), rand.New(rand.NewSource(1)))

	res := g.Generate(context.Background(), Request{Mode: domain.ModePost, Item: testItem})
	assert.Equal(t, "fast", res.Backend)
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	a := &fakeBackend{name: "a", available: true, block: true}
	b := &fakeBackend{name: "b", available: true, text: "never"}
	g := newTestGenerator(t, Options{}, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := g.Generate(ctx, Request{Mode: domain.ModePost, Item: testItem})
	assert.True(t, res.Fallback)
	assert.Empty(t, b.calls)
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, ports.KindRateLimited, kindForStatus(429))
	assert.Equal(t, ports.KindAuth, kindForStatus(401))
	assert.Equal(t, ports.KindAuth, kindForStatus(403))
	assert.Equal(t, ports.KindInvalid, kindForStatus(400))
	assert.Equal(t, ports.KindTransient, kindForStatus(503))
	assert.Equal(t, ports.KindTransient, kindForStatus(0))
}

func TestClassifyGemini(t *testing.T) {
	assert.Equal(t, ports.KindRateLimited, classifyGemini(errors.New("Error 429: RESOURCE_EXHAUSTED")))
	assert.Equal(t, ports.KindInvalid, classifyGemini(errors.New("models/foo is not found")))
	assert.Equal(t, ports.KindTransient, classifyGemini(errors.New("connection reset")))
}

func TestBuildEntries(t *testing.T) {
	entries, err := BuildEntries(context.Background(), []Spec{
		{Provider: ProviderGemini},
		{Provider: ProviderOpenRouter, APIKey: "k", Model: "m"},
		{Provider: ProviderGroq},
		{Provider: ProviderAnthropic, APIKey: "k", Model: "claude"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.False(t, entries[0].Backend.Available())
	assert.True(t, entries[1].Backend.Available())
	assert.Equal(t, "openrouter", entries[1].Backend.Name())
	assert.False(t, entries[2].Backend.Available())
	assert.Equal(t, "anthropic", entries[3].Backend.Name())

	_, err = BuildEntries(context.Background(), []Spec{{Provider: "nope"}})
	assert.Error(t, err)
}
