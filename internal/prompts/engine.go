package prompts

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"tech-ai-bot/internal/core/domain"
)

//go:embed templates.txt
var defaultTemplates []byte

// SectionMarker opens a new named section in a prompt file.
const SectionMarker = "## "

// Section labels used by the generator.
const (
	LabelSystem = "system"
	LabelPost   = "mode.post"
	LabelThread = "mode.thread"
	LabelTool   = "mode.tool"
	LabelReply  = "mode.reply"
)

// Fields maps placeholder names to values.
type Fields map[string]string

// Placeholder names.
const (
	FieldHeadline        = "headline"
	FieldSummary         = "summary"
	FieldCompany         = "company"
	FieldDisease         = "disease"
	FieldMetric          = "metric"
	FieldCity            = "city"
	FieldOrganization    = "organization"
	FieldPlatform        = "platform"
	FieldSourcePrimary   = "source_primary"
	FieldSourceSecondary = "source_secondary"
	FieldPublishedAt     = "published_at"
	FieldBenefit1        = "benefit_1"
	FieldBenefit2        = "benefit_2"
	FieldBenefit3        = "benefit_3"
	FieldInsight         = "insight"
	FieldQuestion        = "question"
	FieldBrief           = "brief"
	FieldParts           = "parts"
	FieldToolTopic       = "tool_topic"
	FieldMention         = "mention"
	FieldAuthor          = "author"
	FieldLanguage        = "language"
)

// TimestampLayout is the format of the published_at field.
const TimestampLayout = "2006-01-02 15:04 UTC"

// DefaultAttribution is used when no attribution sources are configured.
var DefaultAttribution = []string{
	"NVIDIA Blog", "OpenAI Blog", "Google AI Blog", "TechCrunch",
	"The Verge", "Reuters", "Nature", "Bloomberg",
}

// Engine holds the parsed prompt sections. It is immutable after load.
type Engine struct {
	templates map[string]*template.Template
	sources   []string
}

// Load reads a prompt file, or the embedded defaults when path is empty.
func Load(path string, sources []string) (*Engine, error) {
	if path == "" {
		return Parse(bytes.NewReader(defaultTemplates), sources)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer f.Close()
	return Parse(f, sources)
}

// Parse splits r into sections and compiles each body.
func Parse(r io.Reader, sources []string) (*Engine, error) {
	if err := checkTables(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		sources = DefaultAttribution
	}
	if len(sources) < 2 {
		return nil, fmt.Errorf("prompts: need at least two attribution sources, got %d", len(sources))
	}

	bodies, err := splitSections(r)
	if err != nil {
		return nil, err
	}

	e := &Engine{templates: make(map[string]*template.Template, len(bodies)), sources: sources}
	for label, body := range bodies {
		t, err := template.New(label).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("prompts: section %q: %w", label, err)
		}
		e.templates[label] = t
	}

	for _, required := range []string{LabelSystem, LabelPost, LabelThread, LabelTool, LabelReply, topicLabel(domain.TopicGeneral)} {
		if _, ok := e.templates[required]; !ok {
			return nil, fmt.Errorf("prompts: missing section %q", required)
		}
	}
	return e, nil
}

func splitSections(r io.Reader) (map[string]string, error) {
	bodies := make(map[string]string)
	var (
		current string
		buf     strings.Builder
	)
	flush := func() {
		if current != "" {
			bodies[current] = strings.TrimRight(buf.String(), "\n")
		}
		buf.Reset()
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, SectionMarker) {
			flush()
			current = strings.TrimSpace(strings.TrimPrefix(line, SectionMarker))
			if _, dup := bodies[current]; dup {
				return nil, fmt.Errorf("prompts: duplicate section %q", current)
			}
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("prompts: read: %w", err)
	}
	flush()
	return bodies, nil
}

// Labels lists the loaded section names.
func (e *Engine) Labels() []string {
	out := make([]string, 0, len(e.templates))
	for l := range e.templates {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Render executes a section. Any placeholder without a value in fields is
// reported as an error.
func (e *Engine) Render(label string, fields Fields) (string, error) {
	t, ok := e.templates[label]
	if !ok {
		return "", fmt.Errorf("prompts: unknown section %q", label)
	}
	var b bytes.Buffer
	if err := t.Execute(&b, map[string]string(fields)); err != nil {
		return "", fmt.Errorf("prompts: render %q: %w", label, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// TemplateFor returns the section label used for a topic, falling back to
// the general template when the prompt file has no section for it.
func (e *Engine) TemplateFor(topic domain.Topic) string {
	label := topicLabel(topic)
	if _, ok := e.templates[label]; ok {
		return label
	}
	return topicLabel(domain.TopicGeneral)
}

// News carries the supplied fields of a news item. Empty values fall back
// to neutral wording.
type News struct {
	Headline     string
	Summary      string
	Company      string
	Disease      string
	Metric       string
	City         string
	Organization string
	Platform     string
}

// RenderTopic detects the topic of the headline and fills its template with
// supplied, derived and canned fields.
func (e *Engine) RenderTopic(n News, now time.Time, rng *rand.Rand) (string, domain.Topic, error) {
	topic := DetectTopic(n.Headline)
	text, err := e.Render(e.TemplateFor(topic), e.TopicFields(topic, n, now, rng))
	return text, topic, err
}

// TopicFields builds the full field set for a topic template.
func (e *Engine) TopicFields(topic domain.Topic, n News, now time.Time, rng *rand.Rand) Fields {
	primary, secondary := e.pickSources(rng)
	content := topicContent[topic]
	return Fields{
		FieldHeadline:        n.Headline,
		FieldSummary:         orDefault(n.Summary, n.Headline),
		FieldCompany:         orDefault(n.Company, "an undisclosed company"),
		FieldDisease:         orDefault(n.Disease, "an unnamed condition"),
		FieldMetric:          orDefault(n.Metric, "high"),
		FieldCity:            orDefault(n.City, "a pilot city"),
		FieldOrganization:    orDefault(n.Organization, "an independent lab"),
		FieldPlatform:        orDefault(n.Platform, "a new platform"),
		FieldSourcePrimary:   primary,
		FieldSourceSecondary: secondary,
		FieldPublishedAt:     now.UTC().Format(TimestampLayout),
		FieldBenefit1:        content.Benefits[0],
		FieldBenefit2:        content.Benefits[1],
		FieldBenefit3:        content.Benefits[2],
		FieldInsight:         content.Insight,
		FieldQuestion:        content.Question,
	}
}

func (e *Engine) pickSources(rng *rand.Rand) (string, string) {
	idx := rng.Perm(len(e.sources))
	return e.sources[idx[0]], e.sources[idx[1]]
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
