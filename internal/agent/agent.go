// Package agent drives one bot pass: publish from the queue and answer
// mentions.
package agent

import (
	"context"
	"math/rand"
	"time"

	"tech-ai-bot/internal/brain"
)

// ContentGenerator produces platform-ready text. brain.Generator is the
// production implementation.
type ContentGenerator interface {
	Generate(ctx context.Context, req brain.Request) brain.Result
}

var _ ContentGenerator = (*brain.Generator)(nil)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deps are the collaborators shared by the dispatcher and the responder.
type Deps struct {
	Now   func() time.Time
	Rand  *rand.Rand
	Sleep Sleeper
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.Sleep == nil {
		d.Sleep = Sleep
	}
	return d
}

// randomDelay returns a duration uniformly drawn from [lo, hi].
func randomDelay(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}
