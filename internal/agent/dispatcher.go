package agent

import (
	"context"
	"fmt"
	"time"

	"tech-ai-bot/internal/brain"
	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"go.uber.org/zap"
)

// PublishConfig holds the dispatcher knobs.
type PublishConfig struct {
	DailyLimit        int
	DelayMin          time.Duration
	DelayMax          time.Duration
	PollProbability   float64
	PollOptions       []string
	PollDuration      time.Duration
	ToolProbability   float64
	ToolTopics        []string
	ThreadProbability float64
	RateLimitCooldown time.Duration
	PlatformLimit     int
}

// OutcomeStatus says how a dispatch attempt ended. OutcomeRejected means the
// generated content failed validation.
type OutcomeStatus string

const (
	OutcomePublished    OutcomeStatus = "published"
	OutcomeQuotaReached OutcomeStatus = "quota_reached"
	OutcomeEmptyQueue   OutcomeStatus = "empty_queue"
	OutcomeRejected     OutcomeStatus = "rejected"
	OutcomeRateLimited  OutcomeStatus = "rate_limited"
	OutcomeFailed       OutcomeStatus = "failed"
)

// Outcome reports one Dispatch call.
type Outcome struct {
	Status      OutcomeStatus
	Mode        domain.Mode
	Fingerprint string
	PostIDs     []string
	Poll        bool
	DailyCount  int
}

// Dispatcher publishes at most one post (or thread) per call.
type Dispatcher struct {
	store    ports.Storage
	platform ports.Platform
	gen      ContentGenerator
	notifier ports.Notifier
	cfg      PublishConfig
	deps     Deps
	log      *zap.Logger
}

func NewDispatcher(store ports.Storage, platform ports.Platform, gen ContentGenerator, notifier ports.Notifier,
	cfg PublishConfig, deps Deps, log *zap.Logger) *Dispatcher {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if cfg.PlatformLimit <= 0 {
		cfg.PlatformLimit = 280
	}
	return &Dispatcher{
		store:    store,
		platform: platform,
		gen:      gen,
		notifier: notifier,
		cfg:      cfg,
		deps:     deps.withDefaults(),
		log:      log.Named("dispatch"),
	}
}

// Dispatch runs the publish state machine once. Only persistence failures
// are returned as errors; platform and content failures end in an Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context) (Outcome, error) {
	now := d.deps.Now()
	day := domain.DayKey(now)

	count, err := d.store.DailyCount(ctx, day)
	if err != nil {
		return Outcome{}, fmt.Errorf("dispatch: read daily count: %w", err)
	}
	if count >= d.cfg.DailyLimit {
		d.log.Info("daily limit reached", zap.String("day", day), zap.Int("count", count), zap.Int("limit", d.cfg.DailyLimit))
		return Outcome{Status: OutcomeQuotaReached, DailyCount: count}, nil
	}

	req, item, err := d.pick(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if req == nil {
		d.log.Info("no pending items")
		return Outcome{Status: OutcomeEmptyQueue, DailyCount: count}, nil
	}
	out := Outcome{Mode: req.Mode, DailyCount: count}
	if item != nil {
		out.Fingerprint = item.Fingerprint
	}

	res := d.gen.Generate(ctx, *req)
	if reason := d.validate(res); reason != "" {
		d.log.Warn("content rejected", zap.String("reason", reason), zap.String("mode", string(req.Mode)), zap.String("fingerprint", out.Fingerprint))
		out.Status = OutcomeRejected
		return out, nil
	}

	var poll *domain.Poll
	if len(res.Parts) == 1 && len(d.cfg.PollOptions) >= 2 && d.deps.Rand.Float64() < d.cfg.PollProbability {
		poll = &domain.Poll{Options: d.cfg.PollOptions, Duration: d.cfg.PollDuration}
		out.Poll = true
	}

	ids, err := d.publish(ctx, res.Parts, poll)
	out.PostIDs = ids
	if len(ids) == 0 {
		if ports.IsRateLimited(err) {
			out.Status = OutcomeRateLimited
			d.log.Warn("rate limited, cooling down", zap.Duration("cooldown", d.cfg.RateLimitCooldown), zap.Error(err))
			if serr := d.deps.Sleep(ctx, d.cfg.RateLimitCooldown); serr != nil {
				d.log.Debug("cooldown interrupted", zap.Error(serr))
			}
			return out, nil
		}
		out.Status = OutcomeFailed
		d.log.Error("publish failed", zap.Stringer("kind", ports.KindOf(err)), zap.Error(err))
		return out, nil
	}
	if err != nil {
		// The thread went out partially; the head post exists so the item
		// still counts as published.
		d.log.Warn("thread truncated", zap.Int("posted", len(ids)), zap.Int("parts", len(res.Parts)), zap.Error(err))
	}

	newCount, err := d.store.RecordPublish(ctx, out.Fingerprint, day, now)
	if err != nil {
		return out, fmt.Errorf("dispatch: record publish %s: %w", ids[0], err)
	}
	out.Status = OutcomePublished
	out.DailyCount = newCount
	d.log.Info("published",
		zap.String("post_id", ids[0]),
		zap.String("mode", string(req.Mode)),
		zap.String("backend", res.Backend),
		zap.Stringer("topic", res.Topic),
		zap.Bool("poll", out.Poll),
		zap.Int("parts", len(ids)),
		zap.Int("daily_count", newCount))

	if nerr := d.notifier.Notify(ctx, "Published "+string(req.Mode), res.Text); nerr != nil {
		d.log.Warn("notify failed", zap.Error(nerr))
	}

	delay := randomDelay(d.deps.Rand, d.cfg.DelayMin, d.cfg.DelayMax)
	d.log.Debug("post delay", zap.Duration("delay", delay))
	if serr := d.deps.Sleep(ctx, delay); serr != nil {
		d.log.Debug("post delay interrupted", zap.Error(serr))
	}
	return out, nil
}

// pick decides what to publish. A nil request means there is nothing to do.
func (d *Dispatcher) pick(ctx context.Context) (*brain.Request, *domain.QueueItem, error) {
	if len(d.cfg.ToolTopics) > 0 && d.deps.Rand.Float64() < d.cfg.ToolProbability {
		topic := d.cfg.ToolTopics[d.deps.Rand.Intn(len(d.cfg.ToolTopics))]
		return &brain.Request{Mode: domain.ModeTool, ToolTopic: topic}, nil, nil
	}

	items, err := d.store.ListItems(ctx, domain.StatusPending, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("dispatch: list pending: %w", err)
	}
	if len(items) == 0 {
		return nil, nil, nil
	}
	item := items[d.deps.Rand.Intn(len(items))]
	mode := domain.ModePost
	if d.deps.Rand.Float64() < d.cfg.ThreadProbability {
		mode = domain.ModeThread
	}
	return &brain.Request{Mode: mode, Item: &item}, &item, nil
}

func (d *Dispatcher) validate(res brain.Result) string {
	if res.Fallback {
		return "fallback text"
	}
	if len(res.Parts) == 0 {
		return "empty"
	}
	for _, p := range res.Parts {
		if p == "" {
			return "empty"
		}
		if domain.PostLength(p) > d.cfg.PlatformLimit {
			return "too long"
		}
	}
	return ""
}

// publish posts parts as a chain, each replying to the previous one. It
// returns the ids that were created before any error.
func (d *Dispatcher) publish(ctx context.Context, parts []string, poll *domain.Poll) ([]string, error) {
	ids := make([]string, 0, len(parts))
	prev := ""
	for i, text := range parts {
		req := domain.PostRequest{Text: text, InReplyTo: prev}
		if i == 0 {
			req.Poll = poll
		}
		id, err := d.platform.CreatePost(ctx, req)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
		prev = id
	}
	return ids, nil
}
