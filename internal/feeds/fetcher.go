package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const defaultUserAgent = "TechAIBot/1.0"

// HTTPFetcher downloads RSS/Atom/JSON feeds and parses them with gofeed.
type HTTPFetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

var _ ports.FeedFetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]domain.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.NewCallError("feed request", ports.KindInvalid, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ports.NewCallError("feed fetch", ports.KindTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ports.NewCallError("feed fetch", ports.KindRateLimited, fmt.Errorf("%s: status %d", url, resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, ports.NewCallError("feed fetch", ports.KindTransient, fmt.Errorf("%s: status %d", url, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, ports.NewCallError("feed fetch", ports.KindInvalid, fmt.Errorf("%s: status %d", url, resp.StatusCode))
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, ports.NewCallError("feed parse", ports.KindInvalid, fmt.Errorf("%s: %w", url, err))
	}
	if feed == nil {
		return nil, ports.NewCallError("feed parse", ports.KindInvalid, errors.New("empty feed"))
	}

	items := make([]domain.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		items = append(items, domain.FeedItem{
			Source:    url,
			Title:     stripHTML(entry.Title),
			Summary:   truncate(stripHTML(summary), 500),
			Link:      strings.TrimSpace(entry.Link),
			Published: entry.PublishedParsed,
		})
	}
	return items, nil
}

func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
