package brain

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"
	"tech-ai-bot/internal/prompts"

	"go.uber.org/zap"
)

// ThreadDelimiter separates thread parts in model output.
const ThreadDelimiter = "\n---\n"

var (
	reasoningRE = regexp.MustCompile(`(?is)<(?:think|thinking|reasoning)>.*?</(?:think|thinking|reasoning)>`)
	threadSplit = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)
)

// Options controls post-processing of generated text.
type Options struct {
	PlatformLimit int
	CharBudget    int
	Hashtags      string
	BidiPrefix    string
	BidiSuffix    string
	FallbackText  string
	Language      string
	ThreadParts   int
}

// Entry is one backend in the priority list with its call parameters.
type Entry struct {
	Backend     ports.Backend
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Request describes what to generate.
type Request struct {
	Mode      domain.Mode
	Item      *domain.QueueItem
	ToolTopic string
	Mention   *domain.Mention
}

// Result is generated text ready for the platform.
type Result struct {
	Text     string
	Parts    []string
	Backend  string
	Topic    domain.Topic
	Fallback bool
}

// Generator turns items and mentions into platform-ready text. It never
// fails: when no backend produces text it returns the fallback sentence.
type Generator struct {
	backends []Entry
	engine   *prompts.Engine
	opts     Options
	log      *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
}

func NewGenerator(engine *prompts.Engine, backends []Entry, opts Options, log *zap.Logger, rng *rand.Rand) *Generator {
	if opts.PlatformLimit <= 0 {
		opts.PlatformLimit = 280
	}
	if opts.CharBudget <= 0 {
		opts.CharBudget = 250
	}
	if opts.ThreadParts <= 0 {
		opts.ThreadParts = 3
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	return &Generator{
		backends: backends,
		engine:   engine,
		opts:     opts,
		log:      log.Named("brain"),
		rng:      rng,
		now:      time.Now,
	}
}

func (g *Generator) Generate(ctx context.Context, req Request) Result {
	prompt, topic, err := g.buildPrompt(req)
	if err != nil {
		g.log.Error("prompt build failed", zap.String("mode", string(req.Mode)), zap.Error(err))
		return g.fallback(topic)
	}

	for _, e := range g.backends {
		name := e.Backend.Name()
		if !e.Backend.Available() {
			g.log.Debug("backend skipped, no credential", zap.String("backend", name))
			continue
		}
		p := prompt
		p.Temperature = e.Temperature
		p.MaxTokens = e.MaxTokens

		raw, err := g.call(ctx, e, p)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			g.log.Warn("backend failed",
				zap.String("backend", name),
				zap.Stringer("kind", ports.KindOf(err)),
				zap.Error(err))
			continue
		}

		parts := g.postProcess(req.Mode, raw)
		if len(parts) == 0 {
			g.log.Warn("backend returned no usable text", zap.String("backend", name))
			continue
		}
		g.log.Debug("generated", zap.String("backend", name), zap.String("mode", string(req.Mode)), zap.Int("parts", len(parts)))
		return Result{Text: parts[0], Parts: parts, Backend: name, Topic: topic}
	}

	g.log.Warn("all backends exhausted, using fallback", zap.String("mode", string(req.Mode)))
	return g.fallback(topic)
}

func (g *Generator) call(ctx context.Context, e Entry, p ports.Prompt) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return e.Backend.Generate(ctx, p)
}

func (g *Generator) fallback(topic domain.Topic) Result {
	return Result{Text: g.opts.FallbackText, Parts: []string{g.opts.FallbackText}, Topic: topic, Fallback: true}
}

func (g *Generator) buildPrompt(req Request) (ports.Prompt, domain.Topic, error) {
	topic := domain.TopicGeneral
	system, err := g.engine.Render(prompts.LabelSystem, prompts.Fields{prompts.FieldLanguage: g.opts.Language})
	if err != nil {
		return ports.Prompt{}, topic, err
	}

	var user string
	switch req.Mode {
	case domain.ModePost, domain.ModeThread:
		if req.Item == nil {
			return ports.Prompt{}, topic, errMissing("item")
		}
		var brief string
		brief, topic, err = g.engine.RenderTopic(prompts.News{Headline: req.Item.Title, Summary: req.Item.Summary}, g.now(), g.rng)
		if err != nil {
			return ports.Prompt{}, topic, err
		}
		fields := prompts.Fields{
			prompts.FieldHeadline: req.Item.Title,
			prompts.FieldSummary:  orDefault(req.Item.Summary, req.Item.Title),
			prompts.FieldBrief:    brief,
			prompts.FieldLanguage: g.opts.Language,
		}
		label := prompts.LabelPost
		if req.Mode == domain.ModeThread {
			label = prompts.LabelThread
			fields[prompts.FieldParts] = strconv.Itoa(g.opts.ThreadParts)
		}
		user, err = g.engine.Render(label, fields)
	case domain.ModeTool:
		if req.ToolTopic == "" {
			return ports.Prompt{}, topic, errMissing("tool topic")
		}
		user, err = g.engine.Render(prompts.LabelTool, prompts.Fields{
			prompts.FieldToolTopic: req.ToolTopic,
			prompts.FieldLanguage:  g.opts.Language,
		})
	case domain.ModeReply:
		if req.Mention == nil {
			return ports.Prompt{}, topic, errMissing("mention")
		}
		user, err = g.engine.Render(prompts.LabelReply, prompts.Fields{
			prompts.FieldMention:  req.Mention.Text,
			prompts.FieldAuthor:   orDefault(req.Mention.Author, "a follower"),
			prompts.FieldLanguage: g.opts.Language,
		})
	default:
		return ports.Prompt{}, topic, errMissing("mode")
	}
	if err != nil {
		return ports.Prompt{}, topic, err
	}
	return ports.Prompt{System: system, User: user}, topic, nil
}

// postProcess cleans model output and shapes it for the platform. It returns
// no parts when nothing usable is left.
func (g *Generator) postProcess(mode domain.Mode, raw string) []string {
	text := clean(raw)
	if text == "" {
		return nil
	}
	hashtags := g.opts.Hashtags
	if mode == domain.ModeReply {
		hashtags = ""
	}
	if mode != domain.ModeThread {
		out := g.shape(text, "", hashtags)
		if out == "" {
			return nil
		}
		return []string{out}
	}

	var chunks []string
	for _, c := range threadSplit.Split(text, -1) {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 1 {
		out := g.shape(chunks[0], "", hashtags)
		if out == "" {
			return nil
		}
		return []string{out}
	}
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		tags := ""
		if i == len(chunks)-1 {
			tags = hashtags
		}
		out := g.shape(c, strconv.Itoa(i+1)+"/"+strconv.Itoa(len(chunks))+" ", tags)
		if out == "" {
			return nil
		}
		parts = append(parts, out)
	}
	return parts
}

// shape truncates text to the budget left after markers, numbering and
// hashtags, then assembles the final post.
func (g *Generator) shape(text, numbering, hashtags string) string {
	suffix := ""
	if hashtags != "" {
		suffix = "\n\n" + hashtags
	}
	overhead := domain.PostLength(numbering) + domain.PostLength(g.opts.BidiPrefix) +
		domain.PostLength(g.opts.BidiSuffix) + domain.PostLength(suffix)
	budget := g.opts.CharBudget
	if limit := g.opts.PlatformLimit - overhead; limit < budget {
		budget = limit
	}
	if budget <= 0 {
		return ""
	}
	text = trimTrailing(domain.TruncateToLength(text, budget))
	if text == "" {
		return ""
	}
	return numbering + g.opts.BidiPrefix + text + g.opts.BidiSuffix + suffix
}

// clean strips reasoning blocks and markdown noise models like to add.
func clean(raw string) string {
	text := reasoningRE.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"“”")
	return strings.TrimSpace(text)
}

func trimTrailing(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

type missingInputError string

func (e missingInputError) Error() string { return "generate: missing " + string(e) }

func errMissing(what string) error { return missingInputError(what) }
