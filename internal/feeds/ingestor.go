package feeds

import (
	"context"
	"fmt"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"go.uber.org/zap"
)

// DefaultMaxItems caps a source that does not configure its own limit.
const DefaultMaxItems = 5

// Mode selects how candidate items reach the queue.
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModeVerified Mode = "verified"
)

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	Sources    int
	Failed     int
	Seen       int
	Inserted   int
	Duplicates int
}

type Ingestor struct {
	fetcher  ports.FeedFetcher
	store    ports.Storage
	verifier *Verifier
	mode     Mode
	log      *zap.Logger
	now      func() time.Time
}

func NewIngestor(fetcher ports.FeedFetcher, store ports.Storage, mode Mode, log *zap.Logger) *Ingestor {
	if mode == "" {
		mode = ModeDirect
	}
	return &Ingestor{
		fetcher:  fetcher,
		store:    store,
		verifier: NewVerifier(fetcher, log),
		mode:     mode,
		log:      log.Named("ingest"),
		now:      time.Now,
	}
}

// Ingest pulls every source and enqueues unseen titles. A failing source is
// logged and skipped; only storage failures abort the pass.
func (in *Ingestor) Ingest(ctx context.Context, sources []domain.FeedSource) (IngestReport, error) {
	report := IngestReport{Sources: len(sources)}

	var candidates []domain.FeedItem
	if in.mode == ModeVerified {
		items, failed, err := in.verifier.verify(ctx, sources)
		if err != nil {
			return report, err
		}
		report.Failed = failed
		candidates = items
	} else {
		for _, src := range sources {
			items, err := fetchCapped(ctx, in.fetcher, src)
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failed++
				in.log.Warn("feed source failed",
					zap.String("url", src.URL),
					zap.Stringer("kind", ports.KindOf(err)),
					zap.Error(err))
				continue
			}
			candidates = append(candidates, items...)
		}
	}

	for _, it := range candidates {
		title := domain.NormalizeTitle(it.Title)
		if title == "" {
			continue
		}
		report.Seen++
		inserted, err := in.store.EnqueueItem(ctx, domain.QueueItem{
			Fingerprint: domain.Fingerprint(title),
			Title:       title,
			Summary:     it.Summary,
			Link:        it.Link,
			Source:      it.Source,
			Status:      domain.StatusPending,
			CreatedAt:   in.now(),
		})
		if err != nil {
			return report, fmt.Errorf("ingest: %w", err)
		}
		if inserted {
			report.Inserted++
			in.log.Debug("queued", zap.String("title", title), zap.String("source", it.Source))
		} else {
			report.Duplicates++
		}
	}

	in.log.Info("ingestion finished",
		zap.String("mode", string(in.mode)),
		zap.Int("sources", report.Sources),
		zap.Int("failed", report.Failed),
		zap.Int("seen", report.Seen),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.Duplicates))
	return report, nil
}

func fetchCapped(ctx context.Context, f ports.FeedFetcher, src domain.FeedSource) ([]domain.FeedItem, error) {
	items, err := f.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	limit := src.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}
	if len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		if items[i].Source == "" {
			items[i].Source = src.URL
		}
	}
	return items, nil
}
