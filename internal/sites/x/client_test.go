package x

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	if opts.BearerToken == "" && !opts.DryRun {
		opts.BearerToken = "tok"
	}
	c, err := NewClient(context.Background(), opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestCreatePostWithPoll(t *testing.T) {
	var got createPostRequest
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1001","text":"hi"}}`))
	})
	c := newTestClient(t, h, Options{})

	id, err := c.CreatePost(context.Background(), domain.PostRequest{
		Text: "hi",
		Poll: &domain.Poll{Options: []string{"Yes", "No"}, Duration: 24 * time.Hour},
	})
	require.NoError(t, err)
	assert.Equal(t, "1001", id)
	require.NotNil(t, got.Poll)
	assert.Equal(t, 1440, got.Poll.DurationMinutes)
	assert.Equal(t, []string{"Yes", "No"}, got.Poll.Options)
	assert.Nil(t, got.Reply)
}

func TestCreateReply(t *testing.T) {
	var got createPostRequest
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"id":"2002"}}`))
	})
	c := newTestClient(t, h, Options{})

	id, err := c.CreateReply(context.Background(), "thanks", "43")
	require.NoError(t, err)
	assert.Equal(t, "2002", id)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "43", got.Reply.InReplyToTweetID)
}

func TestDryRunDoesNotCallAPI(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	c := newTestClient(t, h, Options{DryRun: true})

	id, err := c.CreatePost(context.Background(), domain.PostRequest{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, DryRunPrefix))

	mentions, err := c.GetMentions(context.Background(), "0", 10)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestGetMentions(t *testing.T) {
	h := http.NewServeMux()
	h.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"99","username":"techbot"}}`))
	})
	h.HandleFunc("/2/users/99/mentions", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "42", q.Get("since_id"))
		assert.Equal(t, "5", q.Get("max_results"))
		assert.Equal(t, "author_id", q.Get("expansions"))
		_, _ = w.Write([]byte(`{
			"data":[
				{"id":"110","text":"@techbot second","author_id":"7","created_at":"2026-10-16T08:00:00.000Z"},
				{"id":"43","text":"@techbot first","author_id":"8","created_at":"2026-10-16T07:00:00.000Z"}
			],
			"includes":{"users":[{"id":"7","username":"ana"},{"id":"8","username":"lee"}]},
			"meta":{"result_count":2,"newest_id":"110"}
		}`))
	})
	c := newTestClient(t, h, Options{})

	mentions, err := c.GetMentions(context.Background(), "42", 3)
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	assert.Equal(t, "43", mentions[0].ID)
	assert.Equal(t, "lee", mentions[0].Author)
	assert.Equal(t, "110", mentions[1].ID)
	assert.Equal(t, "ana", mentions[1].Author)
	assert.Equal(t, 2026, mentions[1].CreatedAt.Year())
}

func TestGetMentionsSentinelOmitsSinceID(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/5/mentions", r.URL.Path)
		assert.False(t, r.URL.Query().Has("since_id"))
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	})
	c := newTestClient(t, h, Options{UserID: "5"})

	mentions, err := c.GetMentions(context.Background(), domain.CursorSentinel, 10)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestRateLimitError(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(now.Add(15*time.Minute).Unix(), 10))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests","detail":"Too Many Requests","status":429}`))
	})
	c := newTestClient(t, h, Options{})
	c.now = func() time.Time { return now }

	_, err := c.CreatePost(context.Background(), domain.PostRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, ports.IsRateLimited(err))

	var ce *ports.CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 15*time.Minute, ce.RetryAfter)
	assert.Contains(t, ce.Error(), "Too Many Requests")
}

func TestStatusKinds(t *testing.T) {
	tests := []struct {
		status int
		want   ports.Kind
	}{
		{http.StatusUnauthorized, ports.KindAuth},
		{http.StatusForbidden, ports.KindAuth},
		{http.StatusBadRequest, ports.KindInvalid},
		{http.StatusServiceUnavailable, ports.KindTransient},
	}
	for _, tt := range tests {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		c := newTestClient(t, h, Options{})
		_, err := c.CreatePost(context.Background(), domain.PostRequest{Text: "x"})
		assert.Equal(t, tt.want, ports.KindOf(err), "status %d", tt.status)
	}
}

func TestRefreshTokenIsExchanged(t *testing.T) {
	h := http.NewServeMux()
	h.HandleFunc("/2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"bearer","expires_in":7200,"refresh_token":"rt2"}`))
	})
	h.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"id":"99","username":"techbot"}}`))
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Options{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/2/oauth2/token",
		BearerToken:  "stale",
		RefreshToken: "rt",
		ClientID:     "cid",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	id, handle, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "99", id)
	assert.Equal(t, "techbot", handle)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(context.Background(), Options{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
