package runner

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/activity"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/metrics"
)

const (
	defaultStorySettle = 5 * time.Second
	// DefaultSessionTimeout bounds a single account's run.
	DefaultSessionTimeout = 2 * time.Hour
)

// Delays are the pauses taken inside an account's run.
type Delays struct {
	BetweenTargets      clock.Range   `yaml:"between_targets" json:"between_targets"`
	BetweenStages       clock.Range   `yaml:"between_stages" json:"between_stages"`
	StorySettle         time.Duration `yaml:"story_settle" json:"story_settle"`
	BeforeDirectMessage clock.Range   `yaml:"before_direct_message" json:"before_direct_message"`
}

// DefaultDelays returns the pacing used against the live site.
func DefaultDelays() Delays {
	return Delays{
		BetweenTargets:      clock.Range{Min: 30 * time.Second, Max: 60 * time.Second},
		BetweenStages:       clock.Range{Min: 15 * time.Second, Max: 25 * time.Second},
		StorySettle:         defaultStorySettle,
		BeforeDirectMessage: clock.Range{Min: 10 * time.Second, Max: 15 * time.Second},
	}
}

// Recorder receives outcomes and progress as the run goes. store.StatsStore
// satisfies it.
type Recorder interface {
	RecordOutcome(ctx context.Context, account string, outcome actions.Outcome) error
	MarkTargetProcessed(ctx context.Context, sessionID, account, target string, success bool) error
}

// Guard gates each stage on the account's action budget. *security.Guard
// satisfies it.
type Guard interface {
	Allow(ctx context.Context, account string, category actions.Category) (bool, error)
	Wait(ctx context.Context, account string) error
}

type settings struct {
	clock          clock.Clock
	rnd            *rand.Rand
	delays         Delays
	recorder       Recorder
	guard          Guard
	metrics        *metrics.Automation
	status         *activity.StatusLine
	logger         *slog.Logger
	sessionID      string
	sessionTimeout time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		clock:          clock.Real{},
		delays:         DefaultDelays(),
		logger:         slog.Default(),
		sessionTimeout: DefaultSessionTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Option configures a TargetRunner or an AccountRunner.
type Option func(*settings)

// WithClock sets the clock used for every delay.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithRand sets the source used for delays and message selection. The runner
// must be the only user of rnd.
func WithRand(rnd *rand.Rand) Option {
	return func(s *settings) {
		s.rnd = rnd
	}
}

// WithDelays overrides DefaultDelays.
func WithDelays(d Delays) Option {
	return func(s *settings) {
		s.delays = d
	}
}

// WithRecorder persists every outcome and marks targets processed.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		s.recorder = r
	}
}

// WithGuard enforces action limits before every stage.
func WithGuard(g Guard) Option {
	return func(s *settings) {
		s.guard = g
	}
}

// WithMetrics reports outcomes to m.
func WithMetrics(m *metrics.Automation) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithStatusLine publishes progress on sl.
func WithStatusLine(sl *activity.StatusLine) Option {
	return func(s *settings) {
		s.status = sl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithSessionID tags the report and the processed-target marks with id.
func WithSessionID(id string) Option {
	return func(s *settings) {
		s.sessionID = id
	}
}

// WithSessionTimeout bounds the account run. Zero disables the bound.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.sessionTimeout = d
	}
}
