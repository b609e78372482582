package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Status is the lifecycle state of a queued item.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
)

// QueueItem is a candidate piece of source content waiting to be published.
// Items are never deleted; published ones remain as an audit trail.
type QueueItem struct {
	Fingerprint string
	Title       string
	Summary     string
	Link        string
	Source      string
	Status      Status
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// FeedItem is one entry extracted from a feed source.
type FeedItem struct {
	Source    string
	Title     string
	Summary   string
	Link      string
	Published *time.Time
}

// FeedSource describes one configured feed.
type FeedSource struct {
	URL      string `yaml:"url"`
	MaxItems int    `yaml:"max_items"`
}

// Mention is a post on the platform that mentions the bot account.
type Mention struct {
	ID        string
	Text      string
	AuthorID  string
	Author    string
	CreatedAt time.Time
}

// ReplyRecord marks a mention as answered.
type ReplyRecord struct {
	MentionID string
	ReplyID   string
	CreatedAt time.Time
}

// Poll is an optional poll attached to a post.
type Poll struct {
	Options  []string
	Duration time.Duration
}

// PostRequest is what the dispatcher and responder hand to the platform.
type PostRequest struct {
	Text      string
	MediaIDs  []string
	Poll      *Poll
	InReplyTo string
}

// Meta keys. Each key is owned by exactly one component.
const (
	MetaLastMentionID    = "last_mention_id"
	metaDailyCountPrefix = "daily_count_"

	// CursorSentinel is the cursor value before the first mention is seen.
	CursorSentinel = "0"
)

// DayKey formats the calendar date used for daily counters.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyCountKey returns the meta key holding the post counter for a day.
func DailyCountKey(day string) string {
	return metaDailyCountPrefix + day
}

// NormalizeTitle trims surrounding whitespace and collapses inner runs.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// Fingerprint returns the dedup key for a title. Same text, same fingerprint.
func Fingerprint(title string) string {
	sum := sha256.Sum256([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(sum[:])
}

// CompareIDs compares two decimal id strings numerically without parsing
// them into a fixed-width integer. Leading zeros are ignored.
func CompareIDs(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}

// MaxID returns the numerically larger of two ids. Empty ids lose.
func MaxID(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if CompareIDs(a, b) >= 0 {
		return a
	}
	return b
}
