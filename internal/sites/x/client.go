package x

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.twitter.com"
	DefaultTokenURL = "https://api.twitter.com/2/oauth2/token"

	// DryRunPrefix marks ids returned while dry run is on.
	DryRunPrefix = "dryrun-"

	minMentionResults = 5
	maxMentionResults = 100
)

// Options configures the X API client.
type Options struct {
	BaseURL string
	// BearerToken is an OAuth 2.0 user access token.
	BearerToken string
	// With a refresh token and client id the access token is refreshed
	// when it expires.
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURL     string
	// UserID skips the users/me lookup when set.
	UserID string
	DryRun bool
	// RequestsPerMinute caps outgoing calls. Zero means no cap.
	RequestsPerMinute float64
	Timeout           time.Duration
}

// Client is the X API v2 adapter.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	DryRun     bool

	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	userID string
}

var _ ports.Platform = (*Client)(nil)

// NewClient builds a client. Without a bearer token only dry run is
// allowed.
func NewClient(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	if opts.BearerToken == "" && !opts.DryRun {
		return nil, errors.New("x: bearer token is required unless dry run is on")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60), 1)
	}

	c := &Client{
		BaseURL: opts.BaseURL,
		DryRun:  opts.DryRun,
		limiter: limiter,
		log:     log.Named("x"),
		now:     time.Now,
		userID:  opts.UserID,
	}
	if opts.BearerToken != "" {
		c.HTTPClient = newAuthClient(ctx, opts)
	}
	return c, nil
}

func newAuthClient(ctx context.Context, opts Options) *http.Client {
	base := &http.Client{Timeout: opts.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	tok := &oauth2.Token{AccessToken: opts.BearerToken, TokenType: "Bearer"}

	var src oauth2.TokenSource
	if opts.RefreshToken != "" && opts.ClientID != "" {
		tokenURL := opts.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		cfg := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		}
		tok.RefreshToken = opts.RefreshToken
		// Access tokens are short lived; refresh on first use.
		tok.Expiry = time.Now().Add(-time.Minute)
		src = cfg.TokenSource(ctx, tok)
	} else {
		src = oauth2.StaticTokenSource(tok)
	}
	return oauth2.NewClient(ctx, src)
}

func (c *Client) Name() string { return "x" }

func (c *Client) CreatePost(ctx context.Context, req domain.PostRequest) (string, error) {
	body := createPostRequest{Text: req.Text}
	if req.Poll != nil && len(req.Poll.Options) > 0 {
		body.Poll = &pollSpec{Options: req.Poll.Options, DurationMinutes: int(req.Poll.Duration / time.Minute)}
	}
	if len(req.MediaIDs) > 0 {
		body.Media = &mediaSpec{MediaIDs: req.MediaIDs}
	}
	if req.InReplyTo != "" {
		body.Reply = &replySpec{InReplyToTweetID: req.InReplyTo}
	}

	if c.DryRun {
		id := DryRunPrefix + uuid.NewString()
		c.log.Info("dry run: post not sent",
			zap.String("id", id),
			zap.String("in_reply_to", req.InReplyTo),
			zap.Bool("poll", body.Poll != nil),
			zap.String("text", req.Text))
		return id, nil
	}

	var out createPostResponse
	if err := c.do(ctx, "create post", http.MethodPost, "/2/tweets", body, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", ports.NewCallError("create post", ports.KindInvalid, errors.New("response has no id"))
	}
	return out.Data.ID, nil
}

func (c *Client) CreateReply(ctx context.Context, text, inReplyToID string) (string, error) {
	return c.CreatePost(ctx, domain.PostRequest{Text: text, InReplyTo: inReplyToID})
}

// GetMentions returns mentions newer than sinceID, oldest first.
func (c *Client) GetMentions(ctx context.Context, sinceID string, maxResults int) ([]domain.Mention, error) {
	if c.HTTPClient == nil {
		c.log.Info("dry run without credentials: no mentions fetched")
		return nil, nil
	}
	uid, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	if maxResults < minMentionResults {
		maxResults = minMentionResults
	}
	if maxResults > maxMentionResults {
		maxResults = maxMentionResults
	}
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("expansions", "author_id")
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("user.fields", "username")
	if sinceID != "" && sinceID != domain.CursorSentinel {
		q.Set("since_id", sinceID)
	}

	var out mentionsResponse
	path := "/2/users/" + url.PathEscape(uid) + "/mentions?" + q.Encode()
	if err := c.do(ctx, "get mentions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	handles := make(map[string]string, len(out.Includes.Users))
	for _, u := range out.Includes.Users {
		handles[u.ID] = u.Username
	}
	mentions := make([]domain.Mention, 0, len(out.Data))
	for _, t := range out.Data {
		mentions = append(mentions, domain.Mention{
			ID:        t.ID,
			Text:      t.Text,
			AuthorID:  t.AuthorID,
			Author:    handles[t.AuthorID],
			CreatedAt: t.CreatedAt,
		})
	}
	sort.Slice(mentions, func(i, j int) bool {
		return domain.CompareIDs(mentions[i].ID, mentions[j].ID) < 0
	})
	return mentions, nil
}

// Me returns the id and handle of the authenticated account.
func (c *Client) Me(ctx context.Context) (string, string, error) {
	if c.HTTPClient == nil {
		return "", "", ports.NewCallError("users me", ports.KindAuth, errors.New("no credentials"))
	}
	var out meResponse
	if err := c.do(ctx, "users me", http.MethodGet, "/2/users/me", nil, &out); err != nil {
		return "", "", err
	}
	return out.Data.ID, out.Data.Username, nil
}

func (c *Client) me(ctx context.Context) (string, error) {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()
	if uid != "" {
		return uid, nil
	}

	id, _, err := c.Me(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.HTTPClient == nil {
		return ports.NewCallError(op, ports.KindAuth, errors.New("no credentials"))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.NewCallError(op, ports.KindTransient, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return ports.NewCallError(op, ports.KindInvalid, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return ports.NewCallError(op, ports.KindInvalid, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return ports.NewCallError(op, ports.KindAuth, err)
		}
		return ports.NewCallError(op, ports.KindTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ports.NewCallError(op, ports.KindTransient, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := string(raw)
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.message() != "" {
		msg = apiErr.message()
	}
	err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		ce := ports.NewCallError(op, ports.KindRateLimited, err)
		ce.RetryAfter = c.retryAfter(resp.Header)
		return ce
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ports.NewCallError(op, ports.KindAuth, err)
	case resp.StatusCode >= 500:
		return ports.NewCallError(op, ports.KindTransient, err)
	}
	return ports.NewCallError(op, ports.KindInvalid, err)
}

// retryAfter reads the x-rate-limit-reset header, a unix timestamp.
func (c *Client) retryAfter(h http.Header) time.Duration {
	reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return 0
	}
	d := time.Unix(reset, 0).Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}
