package agent

import (
	"context"
	"errors"
	"fmt"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/feeds"
	"tech-ai-bot/internal/runlock"

	"go.uber.org/zap"
)

// Locker serializes runs across processes. TryLock returns
// runlock.ErrLocked when another run holds the lock.
type Locker interface {
	TryLock() (unlock func() error, err error)
}

// Steps selects which stages a cycle runs.
type Steps struct {
	Ingest  bool
	Publish bool
	Reply   bool
}

// AllSteps runs ingest, publish and reply.
var AllSteps = Steps{Ingest: true, Publish: true, Reply: true}

// Cycle is one scheduled pass: ingest, then publish, then reply.
type Cycle struct {
	Ingestor   *feeds.Ingestor
	Sources    []domain.FeedSource
	Dispatcher *Dispatcher
	Responder  *Responder
	Lock       Locker
	Log        *zap.Logger
}

// Run executes the selected steps under the run lock. A held lock is not an
// error: the pass is skipped. Persistence failures abort the cycle.
func (c *Cycle) Run(ctx context.Context, steps Steps) error {
	if c.Lock != nil {
		unlock, err := c.Lock.TryLock()
		if errors.Is(err, runlock.ErrLocked) {
			c.Log.Info("skipping pass, lock held")
			return nil
		}
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				c.Log.Warn("release run lock", zap.Error(err))
			}
		}()
	}

	if steps.Ingest && c.Ingestor != nil {
		if _, err := c.Ingestor.Ingest(ctx, c.Sources); err != nil {
			return err
		}
	}
	if steps.Publish && c.Dispatcher != nil {
		out, err := c.Dispatcher.Dispatch(ctx)
		if err != nil {
			return err
		}
		c.Log.Debug("dispatch finished", zap.String("status", string(out.Status)), zap.Int("daily_count", out.DailyCount))
	}
	if steps.Reply && c.Responder != nil {
		rep, err := c.Responder.Respond(ctx)
		if err != nil {
			return err
		}
		c.Log.Debug("respond finished", zap.Int("replied", rep.Replied), zap.String("cursor", rep.Cursor))
	}
	return nil
}
