package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tech-ai-bot/internal/agent"
	"tech-ai-bot/internal/brain"
	"tech-ai-bot/internal/config"
	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"
	"tech-ai-bot/internal/feeds"
	"tech-ai-bot/internal/prompts"
	"tech-ai-bot/internal/runlock"
	"tech-ai-bot/internal/sites/x"
	"tech-ai-bot/internal/storage"
	"tech-ai-bot/internal/ui/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds everything one invocation builds from the configuration.
type app struct {
	store    ports.Storage
	platform *x.Client
	cycle    *agent.Cycle
}

func openStore(ctx context.Context, c *config.Config) (ports.Storage, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver: c.Storage.Driver,
		Path:   c.Storage.Path,
		DSN:    c.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func newFetcher(c *config.Config) *feeds.HTTPFetcher {
	return feeds.NewHTTPFetcher(c.Feeds.Timeout, c.Feeds.UserAgent)
}

func buildApp(ctx context.Context, c *config.Config, log *zap.Logger) (*app, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	a := &app{store: store}
	if err := a.wire(ctx, c, log); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, c *config.Config, log *zap.Logger) error {
	engine, err := prompts.Load(c.Generator.PromptsPath, c.Generator.AttributionSources)
	if err != nil {
		return err
	}

	specs := make([]brain.Spec, 0, len(c.BackendList()))
	for _, b := range c.BackendList() {
		specs = append(specs, brain.Spec{
			Provider:    b.Name,
			Model:       b.Model,
			APIKey:      os.Getenv(b.APIKeyEnv),
			BaseURL:     b.BaseURL,
			Temperature: b.Temperature,
			MaxTokens:   b.MaxTokens,
			Timeout:     b.Timeout,
		})
	}
	entries, err := brain.BuildEntries(ctx, specs)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	gen := brain.NewGenerator(engine, entries, brain.Options{
		PlatformLimit: c.Generator.PlatformLimit,
		CharBudget:    c.Generator.CharBudget,
		Hashtags:      c.Generator.Hashtags,
		BidiPrefix:    c.Generator.BidiPrefix,
		BidiSuffix:    c.Generator.BidiSuffix,
		FallbackText:  c.Generator.FallbackText,
		Language:      c.Generator.Language,
		ThreadParts:   c.Generator.ThreadParts,
	}, log, rng)

	a.platform, err = x.NewClient(ctx, x.Options{
		BaseURL:           c.X.BaseURL,
		BearerToken:       c.X.AccessToken,
		RefreshToken:      c.X.RefreshToken,
		ClientID:          c.X.ClientID,
		ClientSecret:      c.X.ClientSecret,
		UserID:            c.X.UserID,
		DryRun:            c.X.DryRun,
		RequestsPerMinute: c.X.RequestsPerMinute,
	}, log)
	if err != nil {
		return err
	}

	var notifier ports.Notifier = ports.NopNotifier{}
	if c.Telegram.Enabled() {
		tg, err := telegram.NewNotifier(c.Telegram.Token, c.Telegram.ChatID)
		if err != nil {
			// Notifications are optional; keep running without them.
			log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	deps := agent.Deps{Now: time.Now, Rand: rng, Sleep: agent.Sleep}
	reply := agent.ReplyConfig{
		PageSize:    c.Reply.PageSize,
		Delay:       c.Reply.Delay,
		MaxPerRun:   c.Reply.MaxPerRun,
		MaxAge:      c.Reply.MaxAge,
		BotUsername: c.Reply.BotUsername,
	}
	if reply.BotUsername == "" && !c.X.DryRun {
		if _, name, err := a.platform.Me(ctx); err != nil {
			log.Warn("lookup bot handle", zap.Error(err))
		} else {
			reply.BotUsername = name
		}
	}

	a.cycle = &agent.Cycle{
		Ingestor: feeds.NewIngestor(newFetcher(c), a.store, feeds.Mode(c.Feeds.Mode), log),
		Sources:  c.FeedSources(),
		Dispatcher: agent.NewDispatcher(a.store, a.platform, gen, notifier, agent.PublishConfig{
			DailyLimit:        c.Publish.DailyLimit,
			DelayMin:          c.Publish.DelayMin,
			DelayMax:          c.Publish.DelayMax,
			PollProbability:   c.Publish.PollProbability,
			PollOptions:       c.Publish.PollOptions,
			PollDuration:      c.Publish.PollDuration,
			ToolProbability:   c.Publish.ToolProbability,
			ToolTopics:        c.Publish.ToolTopics,
			ThreadProbability: c.Publish.ThreadProbability,
			RateLimitCooldown: c.Publish.RateLimitCooldown,
			PlatformLimit:     c.Generator.PlatformLimit,
		}, deps, log),
		Responder: agent.NewResponder(a.store, a.platform, gen, notifier, reply, deps, log),
		Lock:      runlock.New(c.Storage.LockPath),
		Log:       log.Named("cycle"),
	}
	return nil
}

func runSteps(ctx context.Context, steps agent.Steps) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	logger.Info("pass started",
		zap.Bool("ingest", steps.Ingest),
		zap.Bool("publish", steps.Publish),
		zap.Bool("reply", steps.Reply),
		zap.Bool("dry_run", cfg.X.DryRun))
	if err := a.cycle.Run(ctx, steps); err != nil {
		logger.Error("pass failed", zap.Error(err))
		return err
	}
	logger.Info("pass finished")
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	v := feeds.NewVerifier(newFetcher(cfg), logger)
	items, err := v.Verify(cmd.Context(), cfg.FeedSources())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "no headline is reported by more than one source")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(out, "%s\t%s\n", it.Title, it.Link)
	}
	return nil
}

func runQueue(cmd *cobra.Command, args []string) error {
	var status domain.Status
	switch domain.Status(strings.ToUpper(queueStatus)) {
	case "ALL", "":
	case domain.StatusPending:
		status = domain.StatusPending
	case domain.StatusPublished:
		status = domain.StatusPublished
	default:
		return fmt.Errorf("unknown status %q", queueStatus)
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.ListItems(cmd.Context(), status, queueLimit)
	if err != nil {
		return err
	}
	day := domain.DayKey(time.Now())
	count, err := store.DailyCount(cmd.Context(), day)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "posts today (%s): %d/%d\n\n", day, count, cfg.Publish.DailyLimit)
	fmt.Fprintln(w, "STATUS\tCREATED\tSOURCE\tTITLE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Status, it.CreatedAt.UTC().Format(time.RFC3339), it.Source, it.Title)
	}
	return w.Flush()
}
