package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tech-ai-bot/internal/brain"
	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"go.uber.org/zap"
)

// ReplyConfig holds the responder knobs.
type ReplyConfig struct {
	PageSize  int
	Delay     time.Duration
	MaxPerRun int
	// MaxAge skips mentions older than this. Zero disables the check.
	MaxAge      time.Duration
	BotUsername string
}

// ReplyReport summarizes one Respond call.
type ReplyReport struct {
	Fetched int
	Replied int
	// Known counts mentions already in the reply ledger.
	Known  int
	Stale  int
	Capped bool
	// Aborted is set when a platform failure stopped the batch; the cursor
	// is not advanced in that case.
	Aborted bool
	Cursor  string
}

// Responder answers new mentions at most once each.
type Responder struct {
	store    ports.Storage
	platform ports.Platform
	gen      ContentGenerator
	notifier ports.Notifier
	cfg      ReplyConfig
	deps     Deps
	log      *zap.Logger
	handleRE *regexp.Regexp
}

func NewResponder(store ports.Storage, platform ports.Platform, gen ContentGenerator, notifier ports.Notifier,
	cfg ReplyConfig, deps Deps, log *zap.Logger) *Responder {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	r := &Responder{
		store:    store,
		platform: platform,
		gen:      gen,
		notifier: notifier,
		cfg:      cfg,
		deps:     deps.withDefaults(),
		log:      log.Named("reply"),
	}
	if h := strings.TrimPrefix(cfg.BotUsername, "@"); h != "" {
		r.handleRE = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(h) + `\b`)
	}
	return r
}

// Respond processes one page of mentions newer than the stored cursor.
// Platform failures are logged and end the batch; only persistence failures
// are returned.
func (r *Responder) Respond(ctx context.Context) (ReplyReport, error) {
	var report ReplyReport

	cursor, err := r.store.LoadCursor(ctx)
	if err != nil {
		return report, fmt.Errorf("reply: load cursor: %w", err)
	}
	report.Cursor = cursor

	mentions, err := r.platform.GetMentions(ctx, cursor, r.cfg.PageSize)
	if err != nil {
		r.log.Warn("fetch mentions failed", zap.String("since_id", cursor), zap.Stringer("kind", ports.KindOf(err)), zap.Error(err))
		report.Aborted = true
		return report, nil
	}
	report.Fetched = len(mentions)
	if len(mentions) == 0 {
		r.log.Debug("no new mentions", zap.String("since_id", cursor))
		return report, nil
	}

	batchMax := cursor
	for _, m := range mentions {
		batchMax = domain.MaxID(batchMax, m.ID)
	}

	processedMax := cursor
	for i, m := range mentions {
		if r.capReached(report) {
			report.Capped = true
			break
		}

		seen, err := r.store.HasReplied(ctx, m.ID)
		if err != nil {
			return report, fmt.Errorf("reply: check ledger %s: %w", m.ID, err)
		}
		if seen {
			report.Known++
			processedMax = domain.MaxID(processedMax, m.ID)
			r.log.Debug("already replied", zap.String("mention_id", m.ID))
			continue
		}

		now := r.deps.Now()
		if r.cfg.MaxAge > 0 && !m.CreatedAt.IsZero() && now.Sub(m.CreatedAt) > r.cfg.MaxAge {
			report.Stale++
			processedMax = domain.MaxID(processedMax, m.ID)
			r.log.Debug("stale mention skipped", zap.String("mention_id", m.ID), zap.Time("created_at", m.CreatedAt))
			continue
		}

		mention := m
		mention.Text = r.stripHandle(m.Text)
		res := r.gen.Generate(ctx, brain.Request{Mode: domain.ModeReply, Mention: &mention})

		replyID, err := r.platform.CreateReply(ctx, res.Text, m.ID)
		if err != nil {
			r.log.Warn("reply failed, batch stopped",
				zap.String("mention_id", m.ID),
				zap.Stringer("kind", ports.KindOf(err)),
				zap.Error(err))
			report.Aborted = true
			return report, nil
		}
		if err := r.store.RecordReply(ctx, domain.ReplyRecord{MentionID: m.ID, ReplyID: replyID, CreatedAt: now}); err != nil {
			return report, fmt.Errorf("reply: record %s: %w", m.ID, err)
		}
		report.Replied++
		processedMax = domain.MaxID(processedMax, m.ID)
		r.log.Info("replied",
			zap.String("mention_id", m.ID),
			zap.String("reply_id", replyID),
			zap.String("author", m.Author),
			zap.Bool("fallback", res.Fallback))

		if nerr := r.notifier.Notify(ctx, "Replied to @"+m.Author, res.Text); nerr != nil {
			r.log.Warn("notify failed", zap.Error(nerr))
		}
		if i == len(mentions)-1 || r.capReached(report) {
			continue
		}
		if err := r.deps.Sleep(ctx, r.cfg.Delay); err != nil {
			return report, err
		}
	}

	next := batchMax
	if report.Capped {
		next = processedMax
	}
	if err := r.store.AdvanceCursor(ctx, next); err != nil {
		return report, fmt.Errorf("reply: advance cursor: %w", err)
	}
	report.Cursor = domain.MaxID(cursor, next)
	r.log.Info("mentions processed",
		zap.Int("fetched", report.Fetched),
		zap.Int("replied", report.Replied),
		zap.Int("known", report.Known),
		zap.Int("stale", report.Stale),
		zap.Bool("capped", report.Capped),
		zap.String("cursor", report.Cursor))
	return report, nil
}

func (r *Responder) capReached(report ReplyReport) bool {
	return r.cfg.MaxPerRun > 0 && report.Replied >= r.cfg.MaxPerRun
}

func (r *Responder) stripHandle(text string) string {
	if r.handleRE == nil {
		return text
	}
	return strings.Join(strings.Fields(r.handleRE.ReplaceAllString(text, "")), " ")
}
