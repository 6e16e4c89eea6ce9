// Package governor enforces a randomized delay before outbound requests.
package governor

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	defaultMinDelay = 1 * time.Second
	defaultMaxDelay = 3 * time.Second
)

// Governor imposes a uniform random wait in [min, max] before every network
// operation. In concurrent mode each worker waits on its own schedule; the
// aggregate request rate is bounded only probabilistically.
type Governor struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a governor. Non-positive bounds fall back to the defaults;
// inverted bounds are swapped.
func New(min, max time.Duration) *Governor {
	if min <= 0 {
		min = defaultMinDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	if max < min {
		min, max = max, min
	}
	return &Governor{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns one drawn delay without sleeping.
func (g *Governor) Delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.max == g.min {
		return g.min
	}
	return g.min + time.Duration(g.rng.Int63n(int64(g.max-g.min)))
}

// Wait blocks the caller for one drawn delay, or until ctx is done.
func (g *Governor) Wait(ctx context.Context) error {
	t := time.NewTimer(g.Delay())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
