package prompts

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"tech-ai-bot/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		headline string
		want     domain.Topic
	}{
		{"AI model X launches", domain.TopicAIModel},
		{"New GPU chip unveiled", domain.TopicHardware},
		{"Cancer diagnosis tool approved", domain.TopicMedical},
		{"Self-driving taxis expand", domain.TopicAutonomousVehicle},
		{"Robotic kitchen opens downtown", domain.TopicRoboticKitchen},
		{"Smart home hub ships", domain.TopicSmartHome},
		{"Brain implant lets patients type", domain.TopicBrainComputer},
		{"Climate satellite launched", domain.TopicEnvironment},
		{"School districts pilot tutors", domain.TopicEducation},
		{"Automation suite for marketers", domain.TopicAutomation},
		{"Quarterly earnings beat estimates", domain.TopicGeneral},
		// "ai" must be a whole word, not part of "said" or "chair".
		{"Chair said nothing new", domain.TopicGeneral},
		// Priority: the model group wins over hardware.
		{"GPU maker releases LLM", domain.TopicAIModel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectTopic(tt.headline), tt.headline)
	}
}

func TestTablesAreComplete(t *testing.T) {
	require.NoError(t, checkTables())
}

func TestDefaultTemplatesCoverEveryTopic(t *testing.T) {
	e, err := Load("", nil)
	require.NoError(t, err)
	for _, topic := range domain.Topics() {
		assert.Equal(t, topicLabel(topic), e.TemplateFor(topic), "no section for %s", topic)
	}
}

func TestParseSections(t *testing.T) {
	src := `preamble ignored
## system
sys {{.language}}
## mode.post
post {{.headline}}

## mode.thread
thread
## mode.tool
tool
## mode.reply
reply
## topic.general
general {{.headline}}
`
	e, err := Parse(strings.NewReader(src), []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mode.post", "mode.reply", "mode.thread", "mode.tool", "system", "topic.general"}, e.Labels())

	out, err := e.Render(LabelPost, Fields{FieldHeadline: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "post hello", out)

	// Topics without their own section fall back to the general one.
	assert.Equal(t, "topic.general", e.TemplateFor(domain.TopicHardware))
}

func TestParseRejectsMissingSections(t *testing.T) {
	_, err := Parse(strings.NewReader("## system\nx\n"), nil)
	assert.ErrorContains(t, err, "missing section")

	_, err = Parse(strings.NewReader("## system\nx\n## system\ny\n"), nil)
	assert.ErrorContains(t, err, "duplicate section")

	_, err = Parse(strings.NewReader(""), []string{"only one"})
	assert.ErrorContains(t, err, "two attribution sources")
}

func TestRenderFailsOnMissingField(t *testing.T) {
	e, err := Load("", nil)
	require.NoError(t, err)

	_, err = e.Render(LabelPost, Fields{FieldHeadline: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode.post")

	_, err = e.Render("mode.unknown", Fields{})
	assert.Error(t, err)
}

func TestRenderTopic(t *testing.T) {
	e, err := Load("", []string{"Reuters", "Nature", "Bloomberg"})
	require.NoError(t, err)

	now := time.Date(2026, 10, 16, 9, 5, 0, 0, time.FixedZone("AST", 3*3600))
	out, topic, err := e.RenderTopic(News{Headline: "New GPU chip unveiled", Company: "Acme"}, now, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, domain.TopicHardware, topic)
	assert.Contains(t, out, "New GPU chip unveiled (Acme)")
	assert.Contains(t, out, "2026-10-16 06:05 UTC")
	assert.Contains(t, out, "Faster model training")
	assert.Contains(t, out, "Is today's infrastructure ready")
	assert.NotContains(t, out, "{{")

	fields := e.TopicFields(topic, News{Headline: "h"}, now, rand.New(rand.NewSource(2)))
	assert.NotEqual(t, fields[FieldSourcePrimary], fields[FieldSourceSecondary])
	assert.Equal(t, "an undisclosed company", fields[FieldCompany])
}
