package config

import (
	"time"

	"tech-ai-bot/internal/core/domain"
)

// Config is the root bot configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Publish   PublishConfig   `yaml:"publish"`
	Reply     ReplyConfig     `yaml:"reply"`
	Feeds     FeedsConfig     `yaml:"feeds"`
	Generator GeneratorConfig `yaml:"generator"`
	X         XConfig         `yaml:"x"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig selects the state store.
type StorageConfig struct {
	Driver   string `yaml:"driver"    env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path     string `yaml:"path"      env:"STORAGE_PATH"   env-default:"data/state.db"`
	DSN      string `yaml:"-"         env:"DATABASE_URL"`
	LockPath string `yaml:"lock_path" env:"RUN_LOCK_PATH"  env-default:"data/run.lock"`
}

// PublishConfig holds the publish dispatcher settings.
type PublishConfig struct {
	DailyLimit        int           `yaml:"daily_limit"         env:"DAILY_POST_LIMIT"    env-default:"5"`
	DelayMin          time.Duration `yaml:"delay_min"           env:"POST_DELAY_MIN"      env-default:"30s"`
	DelayMax          time.Duration `yaml:"delay_max"           env:"POST_DELAY_MAX"      env-default:"2m"`
	PollProbability   float64       `yaml:"poll_probability"    env:"POLL_PROBABILITY"    env-default:"0.2"`
	PollOptions       []string      `yaml:"poll_options"        env:"POLL_OPTIONS"        env-default:"Game changer,Overhyped,Too early to tell"`
	PollDuration      time.Duration `yaml:"poll_duration"       env:"POLL_DURATION"       env-default:"24h"`
	ToolProbability   float64       `yaml:"tool_probability"    env:"TOOL_PROBABILITY"    env-default:"0.15"`
	ToolTopics        []string      `yaml:"tool_topics"         env:"TOOL_TOPICS"         env-default:"prompt engineering,AI coding assistants,open-source LLMs,no-code automation"`
	ThreadProbability float64       `yaml:"thread_probability"  env:"THREAD_PROBABILITY"  env-default:"0.1"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown" env:"RATE_LIMIT_COOLDOWN" env-default:"15m"`
}

// ReplyConfig holds the mention responder settings.
type ReplyConfig struct {
	PageSize    int           `yaml:"page_size"    env:"REPLY_PAGE_SIZE"   env-default:"10"`
	Delay       time.Duration `yaml:"delay"        env:"REPLY_DELAY"       env-default:"20s"`
	MaxPerRun   int           `yaml:"max_per_run"  env:"REPLY_MAX_PER_RUN" env-default:"3"`
	MaxAge      time.Duration `yaml:"max_age"      env:"REPLY_MAX_AGE"     env-default:"0s"`
	BotUsername string        `yaml:"bot_username" env:"X_BOT_USERNAME"`
}

// FeedsConfig lists the news sources.
type FeedsConfig struct {
	Mode    string              `yaml:"mode"    env:"FEED_MODE" env-default:"direct"`
	Sources []domain.FeedSource `yaml:"sources"`
	// URLs adds sources from the environment with the default item cap.
	URLs      []string      `yaml:"-"          env:"FEED_URLS"`
	Timeout   time.Duration `yaml:"timeout"    env:"FEED_TIMEOUT"    env-default:"12s"`
	UserAgent string        `yaml:"user_agent" env:"FEED_USER_AGENT" env-default:"TechAIBot/1.0"`
}

// GeneratorConfig controls prompting and post-processing.
type GeneratorConfig struct {
	CharBudget         int             `yaml:"char_budget"         env:"CHAR_BUDGET"    env-default:"250"`
	PlatformLimit      int             `yaml:"platform_limit"      env:"PLATFORM_LIMIT" env-default:"280"`
	Hashtags           string          `yaml:"hashtags"            env:"HASHTAGS"       env-default:"#AI #Tech"`
	BidiPrefix         string          `yaml:"bidi_prefix"         env:"BIDI_PREFIX"`
	BidiSuffix         string          `yaml:"bidi_suffix"         env:"BIDI_SUFFIX"`
	FallbackText       string          `yaml:"fallback_text"       env:"FALLBACK_TEXT"  env-default:"Thanks for reaching out! We are looking into it and will share more soon."`
	Language           string          `yaml:"language"            env:"BOT_LANGUAGE"   env-default:"English"`
	ThreadParts        int             `yaml:"thread_parts"        env:"THREAD_PARTS"   env-default:"3"`
	PromptsPath        string          `yaml:"prompts_path"        env:"PROMPTS_PATH"`
	AttributionSources []string        `yaml:"attribution_sources" env:"ATTRIBUTION_SOURCES"`
	Backends           []BackendConfig `yaml:"backends"`
}

// BackendConfig is one entry of the backend priority list. The API key is
// read from the environment variable named by APIKeyEnv.
type BackendConfig struct {
	Name        string        `yaml:"name"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
}

// XConfig holds the platform client settings. Tokens come from the
// environment only.
type XConfig struct {
	BaseURL           string  `yaml:"base_url"            env:"X_BASE_URL"`
	AccessToken       string  `yaml:"-"                   env:"X_ACCESS_TOKEN"`
	RefreshToken      string  `yaml:"-"                   env:"X_REFRESH_TOKEN"`
	ClientID          string  `yaml:"-"                   env:"X_CLIENT_ID"`
	ClientSecret      string  `yaml:"-"                   env:"X_CLIENT_SECRET"`
	UserID            string  `yaml:"user_id"             env:"X_USER_ID"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" env:"X_REQUESTS_PER_MINUTE" env-default:"30"`
	DryRun            bool    `yaml:"dry_run"             env:"DRY_RUN"               env-default:"false"`
}

// TelegramConfig enables operator notifications when both fields are set.
type TelegramConfig struct {
	Token  string `yaml:"-"       env:"TELEGRAM_BOT_TOKEN"`
	ChatID string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DefaultFeedSources are used when no source is configured.
var DefaultFeedSources = []domain.FeedSource{
	{URL: "https://techcrunch.com/category/artificial-intelligence/feed/", MaxItems: 5},
	{URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml", MaxItems: 5},
	{URL: "https://blogs.nvidia.com/feed/", MaxItems: 5},
	{URL: "https://openai.com/blog/rss/", MaxItems: 5},
}

// DefaultBackends is the priority list used when none is configured.
var DefaultBackends = []BackendConfig{
	{Name: "gemini", Model: "gemini-2.5-flash", Temperature: 0.7, MaxTokens: 300, Timeout: 30 * time.Second, APIKeyEnv: "GEMINI_API_KEY"},
	{Name: "openrouter", Model: "meta-llama/llama-3.3-70b-instruct:free", Temperature: 0.7, MaxTokens: 300, Timeout: 30 * time.Second, APIKeyEnv: "OPENROUTER_API_KEY"},
	{Name: "groq", Model: "llama-3.3-70b-versatile", Temperature: 0.7, MaxTokens: 300, Timeout: 20 * time.Second, APIKeyEnv: "GROQ_API_KEY"},
	{Name: "anthropic", Model: "claude-3-5-haiku-latest", Temperature: 0.7, MaxTokens: 300, Timeout: 30 * time.Second, APIKeyEnv: "ANTHROPIC_API_KEY"},
	{Name: "openai", Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 300, Timeout: 30 * time.Second, APIKeyEnv: "OPENAI_API_KEY"},
}

// FeedSources returns configured sources plus any from FEED_URLS, or the
// defaults when both are empty.
func (c *Config) FeedSources() []domain.FeedSource {
	out := make([]domain.FeedSource, 0, len(c.Feeds.Sources)+len(c.Feeds.URLs))
	out = append(out, c.Feeds.Sources...)
	for _, u := range c.Feeds.URLs {
		if u != "" {
			out = append(out, domain.FeedSource{URL: u})
		}
	}
	if len(out) == 0 {
		return DefaultFeedSources
	}
	return out
}

// BackendList returns the configured backends or the defaults.
func (c *Config) BackendList() []BackendConfig {
	if len(c.Generator.Backends) == 0 {
		return DefaultBackends
	}
	return c.Generator.Backends
}
