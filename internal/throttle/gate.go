package throttle

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Options configures a Gate.
type Options struct {
	// MinDelay is the minimum spacing between two gate exits.
	// Default: 1.5s
	MinDelay time.Duration

	// MaxDelay bounds the jittered wait. Values below MinDelay are raised
	// to MinDelay (no jitter).
	// Default: 3s
	MaxDelay time.Duration

	// Rand supplies jitter. Nil uses the global math/rand/v2 source.
	Rand *rand.Rand

	// Now and Sleep replace the clock in tests. Sleep must return early
	// with ctx.Err() when ctx is done.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the conservative spacing used against the CDN.
func DefaultOptions() Options {
	return Options{
		MinDelay: 1500 * time.Millisecond,
		MaxDelay: 3 * time.Second,
	}
}

// Gate spaces outbound requests across every worker of a process.
//
// The last-request timestamp is shared by all callers. Wait holds the lock
// across the read, the sleep and the write, so callers pass the gate one at
// a time and consecutive exits are at least MinDelay apart. The gate spaces
// request starts only: time spent inside the HTTP round trip and the
// fetcher's own backoff sleeps are not accounted for.
type Gate struct {
	opts Options

	mu   sync.Mutex
	last time.Time
}

// NewGate creates a Gate. The first Wait never blocks.
func NewGate(opts Options) *Gate {
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Gate{opts: opts}
}

// Wait blocks until the caller may issue a request.
//
// If less than MinDelay has passed since the previous exit, Wait sleeps for
// the remainder plus a jitter drawn uniformly from [0, MaxDelay-MinDelay).
// It returns ctx.Err() if ctx is done while waiting; the timestamp is left
// untouched in that case.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() {
		elapsed := g.opts.Now().Sub(g.last)
		if elapsed < g.opts.MinDelay {
			delay := g.opts.MinDelay - elapsed + g.jitter()
			if err := g.opts.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	g.last = g.opts.Now()
	return nil
}

// Last returns the timestamp of the most recent gate exit.
func (g *Gate) Last() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *Gate) jitter() time.Duration {
	span := g.opts.MaxDelay - g.opts.MinDelay
	if span <= 0 {
		return 0
	}
	if g.opts.Rand != nil {
		return time.Duration(g.opts.Rand.Int64N(int64(span)))
	}
	return time.Duration(rand.Int64N(int64(span)))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// lockedSource serializes draws from a *rand.Rand, which is not safe for
// concurrent use.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Uint64()
}

// LockedRand returns a *rand.Rand drawing from r under a mutex, so one
// seeded source can be shared by the gate and every worker. A nil r stays
// nil.
func LockedRand(r *rand.Rand) *rand.Rand {
	if r == nil {
		return nil
	}
	return rand.New(&lockedSource{r: r})
}

// Window is a closed range of durations to draw a random wait from.
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Draw returns a duration uniformly distributed in [Min, Max]. A window with
// Max <= Min always yields Min. r may be nil.
func (w Window) Draw(r *rand.Rand) time.Duration {
	span := w.Max - w.Min
	if span <= 0 {
		return w.Min
	}
	if r != nil {
		return w.Min + time.Duration(r.Int64N(int64(span)+1))
	}
	return w.Min + time.Duration(rand.Int64N(int64(span)+1))
}
