package feeds

import (
	"context"
	"strings"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"go.uber.org/zap"
)

// Verifier accepts an item only when its title shows up in more than one
// source. Repeats inside a single source do not count.
type Verifier struct {
	fetcher ports.FeedFetcher
	log     *zap.Logger
}

func NewVerifier(fetcher ports.FeedFetcher, log *zap.Logger) *Verifier {
	return &Verifier{fetcher: fetcher, log: log.Named("verify")}
}

// Verify returns corroborated items in first-seen order.
func (v *Verifier) Verify(ctx context.Context, sources []domain.FeedSource) ([]domain.FeedItem, error) {
	items, _, err := v.verify(ctx, sources)
	return items, err
}

func (v *Verifier) verify(ctx context.Context, sources []domain.FeedSource) ([]domain.FeedItem, int, error) {
	type tally struct {
		first   domain.FeedItem
		sources map[string]struct{}
	}
	seen := make(map[string]*tally)
	var order []string
	failed := 0

	for _, src := range sources {
		items, err := fetchCapped(ctx, v.fetcher, src)
		if err != nil {
			if ctx.Err() != nil {
				return nil, failed, ctx.Err()
			}
			failed++
			v.log.Warn("feed source failed", zap.String("url", src.URL), zap.Error(err))
			continue
		}
		for _, it := range items {
			key := corroborationKey(it.Title)
			if key == "" {
				continue
			}
			t, ok := seen[key]
			if !ok {
				t = &tally{first: it, sources: make(map[string]struct{})}
				seen[key] = t
				order = append(order, key)
			}
			t.sources[src.URL] = struct{}{}
		}
	}

	var accepted []domain.FeedItem
	for _, key := range order {
		t := seen[key]
		if len(t.sources) > 1 {
			accepted = append(accepted, t.first)
		}
	}
	v.log.Info("verification finished",
		zap.Int("titles", len(order)),
		zap.Int("accepted", len(accepted)),
		zap.Int("failed_sources", failed))
	return accepted, failed, nil
}

func corroborationKey(title string) string {
	return strings.ToLower(domain.NormalizeTitle(title))
}
