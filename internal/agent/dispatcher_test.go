package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tech-ai-bot/internal/brain"
	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func (h *harness) dispatcher(t *testing.T, cfg PublishConfig) *Dispatcher {
	t.Helper()
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = 10
	}
	return NewDispatcher(h.store, h.platform, h.gen, h.notifier, cfg, h.deps, zaptest.NewLogger(t))
}

func TestDispatchDailyQuota(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "one", "two", "three", "four", "five")
	d := h.dispatcher(t, PublishConfig{DailyLimit: 3})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		out, err := d.Dispatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, OutcomePublished, out.Status)
		assert.Equal(t, i, out.DailyCount)
	}

	out, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuotaReached, out.Status)
	assert.Len(t, h.platform.posts, 3)

	count, err := h.store.DailyCount(ctx, domain.DayKey(testNow))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	pending, err := h.store.ListItems(ctx, domain.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestDispatchQuotaResetsNextDay(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "one", "two")
	d := h.dispatcher(t, PublishConfig{DailyLimit: 1})
	ctx := context.Background()

	out, err := d.Dispatch(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomePublished, out.Status)

	d.deps.Now = func() time.Time { return testNow.Add(24 * time.Hour) }
	out, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Status)
	assert.Equal(t, 1, out.DailyCount)
}

func TestDispatchPublishesItemAtMostOnce(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "only item")
	d := h.dispatcher(t, PublishConfig{})
	ctx := context.Background()

	out, err := d.Dispatch(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomePublished, out.Status)
	assert.Equal(t, domain.Fingerprint("only item"), out.Fingerprint)
	require.Len(t, h.gen.requests, 1)
	assert.Equal(t, "only item", h.gen.requests[0].Item.Title)

	out, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmptyQueue, out.Status)
	assert.Len(t, h.platform.posts, 1)

	published, err := h.store.ListItems(ctx, domain.StatusPublished, 0)
	require.NoError(t, err)
	require.Len(t, published, 1)
	require.NotNil(t, published[0].PublishedAt)
	assert.True(t, published[0].PublishedAt.Equal(testNow))
}

func TestDispatchRejectsBadContent(t *testing.T) {
	tests := []struct {
		name   string
		result brain.Result
	}{
		{"fallback", brain.Result{Text: "Thanks!", Parts: []string{"Thanks!"}, Fallback: true}},
		{"empty", brain.Result{}},
		{"too long", brain.Result{Text: longText(281), Parts: []string{longText(281)}}},
		{"too long when weighted", brain.Result{Text: strings.Repeat("日", 141), Parts: []string{strings.Repeat("日", 141)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.enqueue(t, "item")
			h.gen.result = func(brain.Request) brain.Result { return tt.result }
			d := h.dispatcher(t, PublishConfig{PlatformLimit: 280})

			out, err := d.Dispatch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeRejected, out.Status)
			assert.Empty(t, h.platform.posts)

			count, err := h.store.DailyCount(context.Background(), domain.DayKey(testNow))
			require.NoError(t, err)
			assert.Zero(t, count)
			pending, err := h.store.ListItems(context.Background(), domain.StatusPending, 0)
			require.NoError(t, err)
			assert.Len(t, pending, 1)
		})
	}
}

func TestDispatchRateLimitCooldown(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	h.platform.postErr = func(int) error {
		return ports.NewCallError("create post", ports.KindRateLimited, errors.New("429"))
	}
	d := h.dispatcher(t, PublishConfig{RateLimitCooldown: 15 * time.Minute, DelayMin: time.Minute, DelayMax: time.Minute})

	out, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, out.Status)
	assert.Equal(t, []time.Duration{15 * time.Minute}, h.sleeper.calls)

	count, err := h.store.DailyCount(context.Background(), domain.DayKey(testNow))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDispatchPlatformFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	h.platform.postErr = func(int) error {
		return ports.NewCallError("create post", ports.KindTransient, errors.New("503"))
	}
	d := h.dispatcher(t, PublishConfig{})

	out, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Status)
	assert.Empty(t, h.sleeper.calls)

	pending, err := h.store.ListItems(context.Background(), domain.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDispatchToolSpotlight(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	d := h.dispatcher(t, PublishConfig{ToolProbability: 1, ToolTopics: []string{"prompt engineering"}})

	out, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Status)
	assert.Equal(t, domain.ModeTool, out.Mode)
	assert.Empty(t, out.Fingerprint)
	assert.Equal(t, 1, out.DailyCount)
	require.Len(t, h.gen.requests, 1)
	assert.Equal(t, "prompt engineering", h.gen.requests[0].ToolTopic)

	pending, err := h.store.ListItems(context.Background(), domain.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDispatchPoll(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	d := h.dispatcher(t, PublishConfig{
		PollProbability: 1,
		PollOptions:     []string{"Yes", "No", "Maybe"},
		PollDuration:    24 * time.Hour,
	})

	out, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Poll)
	require.Len(t, h.platform.posts, 1)
	require.NotNil(t, h.platform.posts[0].Poll)
	assert.Equal(t, []string{"Yes", "No", "Maybe"}, h.platform.posts[0].Poll.Options)
	assert.Equal(t, 24*time.Hour, h.platform.posts[0].Poll.Duration)
}

func TestDispatchThread(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	h.gen.result = func(brain.Request) brain.Result {
		parts := []string{"1/3 a", "2/3 b", "3/3 c"}
		return brain.Result{Text: parts[0], Parts: parts}
	}
	d := h.dispatcher(t, PublishConfig{ThreadProbability: 1, PollProbability: 1, PollOptions: []string{"Yes", "No"}})

	out, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Status)
	assert.Equal(t, domain.ModeThread, out.Mode)
	assert.False(t, out.Poll)
	assert.Equal(t, []string{"post-1", "post-2", "post-3"}, out.PostIDs)
	assert.Equal(t, 1, out.DailyCount)

	require.Len(t, h.platform.posts, 3)
	assert.Empty(t, h.platform.posts[0].InReplyTo)
	assert.Equal(t, "post-1", h.platform.posts[1].InReplyTo)
	assert.Equal(t, "post-2", h.platform.posts[2].InReplyTo)
	assert.Nil(t, h.platform.posts[0].Poll)
}

func TestDispatchPartialThreadCountsAsPublished(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	h.gen.result = func(brain.Request) brain.Result {
		return brain.Result{Text: "1/2 a", Parts: []string{"1/2 a", "2/2 b"}}
	}
	h.platform.postErr = func(n int) error {
		if n == 1 {
			return errors.New("connection reset")
		}
		return nil
	}
	d := h.dispatcher(t, PublishConfig{ThreadProbability: 1})

	out, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Status)
	assert.Equal(t, []string{"post-1"}, out.PostIDs)

	pending, err := h.store.ListItems(context.Background(), domain.StatusPending, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatchDelayWithinWindow(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "a", "b", "c")
	d := h.dispatcher(t, PublishConfig{DelayMin: 2 * time.Minute, DelayMax: 5 * time.Minute})

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, h.sleeper.calls, 3)
	for _, delay := range h.sleeper.calls {
		assert.GreaterOrEqual(t, delay, 2*time.Minute)
		assert.LessOrEqual(t, delay, 5*time.Minute)
	}
	assert.Equal(t, []string{"Published post", "Published post", "Published post"}, h.notifier.titles)
}

func TestDispatchPersistenceFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "item")
	d := NewDispatcher(failingStore{Storage: h.store, err: errDiskFull}, h.platform, h.gen, nil,
		PublishConfig{DailyLimit: 3}, h.deps, zaptest.NewLogger(t))

	_, err := d.Dispatch(context.Background())
	require.ErrorIs(t, err, errDiskFull)
	assert.Len(t, h.platform.posts, 1)
}
