package ports

import (
	"context"
	"time"

	"tech-ai-bot/internal/core/domain"
)

// Storage holds the pending queue, the meta register and the reply ledger.
type Storage interface {
	// EnqueueItem inserts the item unless its fingerprint already exists.
	// It reports whether a new row was created.
	EnqueueItem(ctx context.Context, item domain.QueueItem) (bool, error)
	ListItems(ctx context.Context, status domain.Status, limit int) ([]domain.QueueItem, error)
	// RecordPublish marks the item published (when fingerprint is not empty)
	// and increments the day's post counter in one transaction. It returns
	// the counter value after the increment.
	RecordPublish(ctx context.Context, fingerprint, day string, at time.Time) (int, error)
	DailyCount(ctx context.Context, day string) (int, error)

	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	LoadCursor(ctx context.Context) (string, error)
	// AdvanceCursor stores id only if it is numerically greater than the
	// stored cursor, keeping the cursor monotonic.
	AdvanceCursor(ctx context.Context, id string) error

	HasReplied(ctx context.Context, mentionID string) (bool, error)
	RecordReply(ctx context.Context, rec domain.ReplyRecord) error

	Close() error
}

// Platform is the social network the bot publishes to.
type Platform interface {
	Name() string
	CreatePost(ctx context.Context, req domain.PostRequest) (string, error)
	GetMentions(ctx context.Context, sinceID string, maxResults int) ([]domain.Mention, error)
	CreateReply(ctx context.Context, text, inReplyToID string) (string, error)
}

// Prompt is a single request to a text generation backend.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Backend is one text generation service.
type Backend interface {
	Name() string
	// Available is false when the backend has no credential configured.
	Available() bool
	Generate(ctx context.Context, p Prompt) (string, error)
}

// FeedFetcher downloads and parses one feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]domain.FeedItem, error)
}

// Notifier reports bot activity to the operator.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }
