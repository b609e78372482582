package config

import (
	"fmt"
	"time"
	"unicode/utf8"
)

var knownBackends = map[string]bool{
	"gemini":     true,
	"openai":     true,
	"openrouter": true,
	"groq":       true,
	"anthropic":  true,
}

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.ValidateOffline(); err != nil {
		return err
	}
	if c.X.AccessToken == "" && !c.X.DryRun {
		return fmt.Errorf("x: X_ACCESS_TOKEN is required unless dry_run is on")
	}
	return nil
}

// ValidateOffline checks everything except the X credentials, for commands
// that only read feeds or local state.
func (c *Config) ValidateOffline() error {
	switch c.Storage.Driver {
	case "sqlite", "json":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage: postgres driver needs DATABASE_URL")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}

	if err := c.Publish.validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if c.Reply.PageSize <= 0 {
		return fmt.Errorf("reply: page_size must be > 0 (got %d)", c.Reply.PageSize)
	}
	if c.Reply.MaxPerRun < 0 || c.Reply.Delay < 0 || c.Reply.MaxAge < 0 {
		return fmt.Errorf("reply: max_per_run, delay and max_age must not be negative")
	}

	switch c.Feeds.Mode {
	case "direct", "verified":
	default:
		return fmt.Errorf("feeds: unknown mode %q", c.Feeds.Mode)
	}
	if len(c.FeedSources()) == 0 {
		return fmt.Errorf("feeds: no sources configured")
	}
	if c.Feeds.Mode == "verified" && len(c.FeedSources()) < 2 {
		return fmt.Errorf("feeds: verified mode needs at least two sources")
	}

	if err := c.Generator.validate(c.BackendList()); err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	if c.X.RequestsPerMinute < 0 {
		return fmt.Errorf("x: requests_per_minute must not be negative")
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram: token and chat_id must be set together")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	return nil
}

func (p *PublishConfig) validate() error {
	if p.DailyLimit <= 0 {
		return fmt.Errorf("daily_limit must be > 0 (got %d)", p.DailyLimit)
	}
	if p.DelayMin < 0 || p.DelayMin > p.DelayMax {
		return fmt.Errorf("delay window [%s, %s] is invalid", p.DelayMin, p.DelayMax)
	}
	for name, v := range map[string]float64{
		"poll_probability":   p.PollProbability,
		"tool_probability":   p.ToolProbability,
		"thread_probability": p.ThreadProbability,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1] (got %v)", name, v)
		}
	}
	if p.PollProbability > 0 {
		if n := len(p.PollOptions); n < 2 || n > 4 {
			return fmt.Errorf("poll_options needs 2 to 4 entries (got %d)", n)
		}
		for _, o := range p.PollOptions {
			if o == "" || utf8.RuneCountInString(o) > 25 {
				return fmt.Errorf("poll option %q must be 1 to 25 characters", o)
			}
		}
		if p.PollDuration < 5*time.Minute || p.PollDuration > 7*24*time.Hour {
			return fmt.Errorf("poll_duration must be within 5m..168h (got %s)", p.PollDuration)
		}
	}
	if p.ToolProbability > 0 && len(p.ToolTopics) == 0 {
		return fmt.Errorf("tool_probability is set but tool_topics is empty")
	}
	if p.RateLimitCooldown < 0 {
		return fmt.Errorf("rate_limit_cooldown must not be negative")
	}
	return nil
}

func (g *GeneratorConfig) validate(backends []BackendConfig) error {
	if g.PlatformLimit <= 0 || g.CharBudget <= 0 {
		return fmt.Errorf("platform_limit and char_budget must be > 0")
	}
	if utf8.RuneCountInString(g.FallbackText) == 0 || utf8.RuneCountInString(g.FallbackText) > g.PlatformLimit {
		return fmt.Errorf("fallback_text must be 1 to %d characters", g.PlatformLimit)
	}
	if len(backends) == 0 {
		return fmt.Errorf("no backend configured")
	}
	for i, b := range backends {
		if !knownBackends[b.Name] {
			return fmt.Errorf("backends[%d]: unknown backend %q", i, b.Name)
		}
		if b.Model == "" {
			return fmt.Errorf("backends[%d] (%s): model is required", i, b.Name)
		}
		if b.Temperature < 0 || b.Temperature > 2 {
			return fmt.Errorf("backends[%d] (%s): temperature must be within [0, 2]", i, b.Name)
		}
	}
	if n := len(g.AttributionSources); n == 1 {
		return fmt.Errorf("attribution_sources needs at least two entries")
	}
	return nil
}
