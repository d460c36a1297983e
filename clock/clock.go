// Package clock abstracts time so pacing delays can be replaced in tests.
package clock

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Clock provides time operations that can be substituted in tests.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real uses the standard time package.
type Real struct{}

func (Real) Now() time.Time                  { return time.Now() }
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake is a virtual clock. Sleep returns immediately and advances the clock by
// the requested duration; every sleep is recorded.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	sleeps  []time.Duration
	onSleep func(time.Duration)
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.current = f.current.Add(d)
	hook := f.onSleep
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Advance moves the clock forward without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Sleeps returns every duration passed to Sleep, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// OnSleep registers a hook called after each Sleep. Tests use it to cancel a
// context at a specific point.
func (f *Fake) OnSleep(hook func(time.Duration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSleep = hook
}

// Range is an inclusive duration interval sampled uniformly.
type Range struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// Fixed returns a Range that always yields d.
func Fixed(d time.Duration) Range {
	return Range{Min: d, Max: d}
}

// Pick returns a duration in [Min, Max]. A Range with Max <= Min yields Min.
func (r Range) Pick(rnd *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rnd.Int63n(int64(r.Max-r.Min)+1))
}

// Valid reports whether the range is non-negative and ordered.
func (r Range) Valid() bool {
	return r.Min >= 0 && r.Max >= r.Min
}
