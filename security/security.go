// Package security enforces per-account action budgets and pacing.
package security

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
)

const (
	defaultMaxPerHour       = 30
	defaultMaxPerDay        = 200
	defaultActionsPerMinute = 6
)

// Counter reports how many successful actions an account performed in [from, to).
// store.StatsStore satisfies it.
type Counter interface {
	CountActionsWithin(ctx context.Context, account string, from, to time.Time) (int, error)
}

// Limits configures a Guard. Zero values disable the corresponding check.
type Limits struct {
	MaxPerHour       int     `yaml:"max_actions_per_hour"`
	MaxPerDay        int     `yaml:"max_actions_per_day"`
	ActionsPerMinute float64 `yaml:"actions_per_minute"`
}

// DefaultLimits returns the limits applied when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPerHour:       defaultMaxPerHour,
		MaxPerDay:        defaultMaxPerDay,
		ActionsPerMinute: defaultActionsPerMinute,
	}
}

// Guard decides whether an account may perform another action.
type Guard struct {
	counter Counter
	limits  Limits
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock sets the clock used for the hourly and daily windows and for pacing.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) {
		g.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a Guard backed by counter.
func NewGuard(counter Counter, limits Limits, opts ...Option) *Guard {
	g := &Guard{
		counter:  counter,
		limits:   limits,
		clock:    clock.Real{},
		logger:   slog.Default(),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow checks the account's hourly and daily budgets. It returns false once
// either budget is exhausted.
func (g *Guard) Allow(ctx context.Context, account string, category actions.Category) (bool, error) {
	now := g.clock.Now()
	startHour := now.Truncate(time.Hour)
	startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if g.limits.MaxPerHour > 0 {
		n, err := g.counter.CountActionsWithin(ctx, account, startHour, startHour.Add(time.Hour))
		if err != nil {
			return false, fmt.Errorf("counting hourly actions for %s: %w", account, err)
		}
		if n >= g.limits.MaxPerHour {
			g.logger.Warn("Hourly action limit reached",
				"account", account, "category", category, "count", n, "limit", g.limits.MaxPerHour)
			return false, nil
		}
	}

	if g.limits.MaxPerDay > 0 {
		n, err := g.counter.CountActionsWithin(ctx, account, startDay, startDay.AddDate(0, 0, 1))
		if err != nil {
			return false, fmt.Errorf("counting daily actions for %s: %w", account, err)
		}
		if n >= g.limits.MaxPerDay {
			g.logger.Warn("Daily action limit reached",
				"account", account, "category", category, "count", n, "limit", g.limits.MaxPerDay)
			return false, nil
		}
	}
	return true, nil
}

// Wait blocks on the Guard's clock until the account's pacing limiter admits
// another action or ctx is done. It is a no-op when ActionsPerMinute is not set.
func (g *Guard) Wait(ctx context.Context, account string) error {
	l := g.limiter(account)
	if l == nil {
		return nil
	}
	now := g.clock.Now()
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("pacing limiter for %s cannot admit an action", account)
	}
	d := r.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	if err := g.clock.Sleep(ctx, d); err != nil {
		// Hand the token back so the next action is not delayed twice.
		r.CancelAt(now)
		return err
	}
	return nil
}

func (g *Guard) limiter(account string) *rate.Limiter {
	if g.limits.ActionsPerMinute <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[account]
	if !ok {
		burst := int(g.limits.ActionsPerMinute)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(g.limits.ActionsPerMinute/60), burst)
		g.limiters[account] = l
	}
	return l
}

var baseDelays = map[actions.Category]clock.Range{
	actions.LikePosts:        {Min: 2 * time.Second, Max: 5 * time.Second},
	actions.StoryInteraction: {Min: 5 * time.Second, Max: 10 * time.Second},
	actions.DirectMessage:    {Min: 10 * time.Second, Max: 20 * time.Second},
}

var defaultDelay = clock.Range{Min: time.Second, Max: 3 * time.Second}

// RecommendedDelay returns a randomized pause to take after an action of the
// given category: a base interval per category scaled by a factor in [0.8, 1.5].
func RecommendedDelay(category actions.Category, rnd *rand.Rand) time.Duration {
	r, ok := baseDelays[category]
	if !ok {
		r = defaultDelay
	}
	factor := 0.8 + rnd.Float64()*0.7
	return time.Duration(float64(r.Pick(rnd)) * factor)
}
