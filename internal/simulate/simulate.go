// Package simulate provides the randomness and artificial latency used by the
// placeholder ingest and question-answering services.
package simulate

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is a goroutine-safe pseudo-random source.
type Rand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand returns a source seeded with seed. A zero seed draws one from the clock.
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Rand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN returns a uniform int in [0, n). It returns 0 when n <= 0.
func (r *Rand) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

// Between returns a uniform int in [lo, lo+span).
func (r *Rand) Between(lo, span int) int {
	return lo + r.IntN(span)
}

// Delay describes a uniformly distributed latency in [Min, Max). A zero Delay
// does not wait at all.
type Delay struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// Fixed returns a Delay that always waits d.
func Fixed(d time.Duration) Delay {
	return Delay{Min: d, Max: d}
}

// Pick chooses a duration from the range, truncated to whole milliseconds.
func (d Delay) Pick(r *Rand) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	spanMillis := int((d.Max - d.Min) / time.Millisecond)
	return d.Min + time.Duration(r.IntN(spanMillis))*time.Millisecond
}

// Wait blocks for a duration picked from the range or until ctx is done,
// whichever comes first, and returns ctx.Err() in the latter case.
func (d Delay) Wait(ctx context.Context, r *Rand) error {
	wait := d.Pick(r)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
