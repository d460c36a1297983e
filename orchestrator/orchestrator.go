package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/activity"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/metrics"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/session"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/store"
)

const (
	defaultMaxParallel  = 10
	defaultAccountStart = 2 * time.Second
	defaultBatchDelay   = 300 * time.Second
)

var (
	// ErrTooManyAccounts is returned under OverflowReject when a plan selects
	// more accounts than may run in parallel.
	ErrTooManyAccounts = errors.New("too many accounts selected")
	// ErrNoAccounts is returned when a plan has no accounts.
	ErrNoAccounts = errors.New("no accounts selected")
	// ErrUnknownSession is returned when resuming a session the store has no
	// assignments for.
	ErrUnknownSession = errors.New("unknown session")
)

// Overflow is the policy for plans with more accounts than MaxParallel.
type Overflow string

const (
	OverflowReject Overflow = "reject"
	OverflowQueue  Overflow = "queue"
)

// ParseOverflow converts a config value. An empty string selects OverflowQueue.
func ParseOverflow(s string) (Overflow, error) {
	switch Overflow(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowQueue:
		return OverflowQueue, nil
	case OverflowReject:
		return OverflowReject, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q (valid: %s, %s)", s, OverflowReject, OverflowQueue)
}

// Account is an operating account selected for a session.
type Account struct {
	Username string
	Proxy    string
}

// ExecutorFactory opens an executor for account. The orchestrator closes it
// through the account's session when the worker ends.
type ExecutorFactory func(ctx context.Context, account Account) (actions.Executor, error)

// Plan describes one session.
type Plan struct {
	// SessionID identifies the session. A new id is generated when empty.
	SessionID string
	// Resume continues SessionID: every account runs the targets the store
	// still has unprocessed for it, and Targets is ignored.
	Resume               bool
	Targets              []string
	Accounts             []Account
	Messages             []string
	Flags                actions.Flags
	Strategy             distribution.Strategy
	MinTargetsPerAccount int
}

// Summary aggregates a finished session.
type Summary struct {
	SessionID    string              `json:"session_id"`
	StartedAt    time.Time           `json:"started_at"`
	EndedAt      time.Time           `json:"ended_at"`
	Distribution distribution.Stats  `json:"distribution"`
	Reports      []runner.RunReport  `json:"reports"`
	Errors       map[string]string   `json:"errors,omitempty"`
	States       map[string]string   `json:"states"`
	Assignments  map[string][]string `json:"assignments"`
	TotalTargets int                 `json:"total_targets"`
	Succeeded    int                 `json:"succeeded"`
	Failed       int                 `json:"failed"`
	SuccessRate  float64             `json:"success_rate"`
	SnapshotPath string              `json:"snapshot_path,omitempty"`
}

// Orchestrator runs sessions. It may run one session at a time.
type Orchestrator struct {
	factory      ExecutorFactory
	logger       *slog.Logger
	store        store.StatsStore
	clock        clock.Clock
	metrics      *metrics.Automation
	collector    *logging.Collector
	statuses     *activity.StatusHandler
	runnerOpts   []runner.Option
	distributor  *distribution.Distributor
	snapshotDir  string
	maxParallel  int
	batchSize    int
	batchDelay   time.Duration
	accountStart time.Duration
	overflow     Overflow

	mu      sync.RWMutex
	results map[string]*Result
	cancels map[string]context.CancelFunc
	stopped map[string]bool
	active  int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With("component", "orchestrator")
	}
}

// WithStore persists accounts, the distribution, outcomes and session records.
func WithStore(s store.StatsStore) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithClock sets the clock for staggered starts and batch delays. It is also
// passed to every runner.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithMetrics reports session metrics.
func WithMetrics(m *metrics.Automation) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogCollector captures every account's log records.
func WithLogCollector(c *logging.Collector) Option {
	return func(o *Orchestrator) {
		o.collector = c
	}
}

// WithStatusHandler publishes per-account status lines.
func WithStatusHandler(h *activity.StatusHandler) Option {
	return func(o *Orchestrator) {
		o.statuses = h
	}
}

// WithRunnerOptions adds options applied to every account runner, e.g.
// delays, the session timeout or an action guard.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(o *Orchestrator) {
		o.runnerOpts = append(o.runnerOpts, opts...)
	}
}

// WithDistributor sets the distributor used for new sessions.
func WithDistributor(d *distribution.Distributor) Option {
	return func(o *Orchestrator) {
		o.distributor = d
	}
}

// WithSnapshotDir writes a distribution snapshot for every new session to dir.
func WithSnapshotDir(dir string) Option {
	return func(o *Orchestrator) {
		o.snapshotDir = dir
	}
}

// WithMaxParallel bounds the number of concurrently running accounts.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		o.maxParallel = n
	}
}

// WithOverflow sets the policy for plans larger than MaxParallel.
func WithOverflow(p Overflow) Option {
	return func(o *Orchestrator) {
		o.overflow = p
	}
}

// WithBatches sets the wave size and the pause between waves under OverflowQueue.
func WithBatches(size int, delay time.Duration) Option {
	return func(o *Orchestrator) {
		o.batchSize = size
		o.batchDelay = delay
	}
}

// WithAccountStart sets the stagger between worker starts within a wave.
func WithAccountStart(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.accountStart = d
	}
}

// New creates an Orchestrator that opens executors with factory.
func New(factory ExecutorFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:      factory,
		logger:       slog.Default().With("component", "orchestrator"),
		clock:        clock.Real{},
		maxParallel:  defaultMaxParallel,
		batchDelay:   defaultBatchDelay,
		accountStart: defaultAccountStart,
		overflow:     OverflowQueue,
		results:      make(map[string]*Result),
		cancels:      make(map[string]context.CancelFunc),
		stopped:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxParallel <= 0 {
		o.maxParallel = defaultMaxParallel
	}
	if o.batchSize <= 0 || o.batchSize > o.maxParallel {
		o.batchSize = o.maxParallel
	}
	if o.distributor == nil {
		o.distributor = distribution.New(distribution.WithLogger(o.logger))
	}
	return o
}

// Execute runs plan and blocks until every account worker has finished.
//
// The returned error only reports plan-level failures (no accounts, too many
// accounts, the distribution could not be computed or stored). Per-account
// failures are reported in the Summary and by Results.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) (Summary, error) {
	accounts := uniqueAccounts(plan.Accounts)
	if len(accounts) == 0 {
		return Summary{}, ErrNoAccounts
	}
	if len(accounts) > o.maxParallel && o.overflow == OverflowReject {
		return Summary{}, fmt.Errorf("%w: %d selected, at most %d can run in parallel",
			ErrTooManyAccounts, len(accounts), o.maxParallel)
	}

	sessionID := plan.SessionID
	if sessionID == "" {
		if plan.Resume {
			return Summary{}, errors.New("resume requires a session id")
		}
		sessionID = uuid.NewString()
	}
	logger := o.logger.With("session_id", sessionID)
	summary := Summary{SessionID: sessionID, StartedAt: o.clock.Now()}

	usernames := make([]string, len(accounts))
	for i, a := range accounts {
		usernames[i] = a.Username
	}

	d, err := o.assign(ctx, plan, sessionID, usernames)
	if err != nil {
		return summary, err
	}
	summary.Distribution = d.Stats()
	summary.Assignments = d.Map()

	if !plan.Resume && o.snapshotDir != "" {
		snap := distribution.NewSnapshot(sessionID, d, distribution.SnapshotConfig{
			Strategy:             plan.Strategy,
			MinTargetsPerAccount: plan.MinTargetsPerAccount,
		}, summary.StartedAt)
		path, err := distribution.SaveSnapshot(o.snapshotDir, snap)
		if err != nil {
			logger.Warn("Failed to save distribution snapshot", "error", err)
		} else {
			summary.SnapshotPath = path
			logger.Info("Distribution snapshot saved", "path", path)
		}
	}

	o.reset(usernames)
	for _, a := range accounts {
		if o.store == nil {
			break
		}
		if err := o.store.SaveAccount(ctx, store.Account{Username: a.Username, Proxy: a.Proxy}); err != nil {
			logger.Warn("Failed to save account", "account", a.Username, "error", err)
		}
	}

	waves := chunk(accounts, o.batchSize)
	logger.Info("Starting session",
		"accounts", len(accounts),
		"targets", d.TotalTargets(),
		"max_parallel", o.maxParallel,
		"waves", len(waves),
		"resume", plan.Resume)

	for w, wave := range waves {
		if w > 0 && o.batchDelay > 0 {
			logger.Info("Waiting before next wave", "wave", w+1, "delay", o.batchDelay)
			if err := o.clock.Sleep(ctx, o.batchDelay); err != nil {
				for _, rest := range waves[w:] {
					for _, a := range rest {
						o.skip(a.Username, fmt.Errorf("session cancelled: %w", err))
					}
				}
				break
			}
		}

		var g errgroup.Group
		g.SetLimit(o.maxParallel)
		for i, a := range wave {
			g.Go(func() error {
				o.runAccount(ctx, i, a, d.TargetsFor(a.Username), plan, sessionID)
				return nil
			})
		}
		_ = g.Wait()
	}

	summary.EndedAt = o.clock.Now()
	o.summarize(&summary, usernames)
	o.metrics.SessionFinished(summary.EndedAt)

	logger.Info("Session finished",
		"total", summary.TotalTargets,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"success_rate", fmt.Sprintf("%.1f%%", summary.SuccessRate),
		"duration", summary.EndedAt.Sub(summary.StartedAt).Round(time.Second))
	return summary, nil
}

// assign computes (or, when resuming, reloads) the session's distribution.
func (o *Orchestrator) assign(ctx context.Context, plan Plan, sessionID string, usernames []string) (distribution.Distribution, error) {
	if plan.Resume {
		if o.store == nil {
			return distribution.Distribution{}, errors.New("resume requires a store")
		}
		ok, err := o.store.HasDistribution(ctx, sessionID)
		if err != nil {
			return distribution.Distribution{}, err
		}
		if !ok {
			return distribution.Distribution{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
		}
		m := make(map[string][]string, len(usernames))
		for _, u := range usernames {
			targets, err := o.store.GetTargetsForAccount(ctx, u, sessionID)
			if err != nil {
				return distribution.Distribution{}, fmt.Errorf("loading remaining targets for %s: %w", u, err)
			}
			m[u] = targets
		}
		return distribution.FromMap(m, usernames), nil
	}

	d, err := o.distributor.Distribute(plan.Targets, usernames, plan.Strategy, plan.MinTargetsPerAccount)
	if err != nil {
		return d, fmt.Errorf("distributing targets: %w", err)
	}
	if o.store != nil {
		if err := o.store.SaveDistribution(ctx, sessionID, d); err != nil {
			return d, fmt.Errorf("saving distribution: %w", err)
		}
	}
	return d, nil
}

func (o *Orchestrator) runAccount(ctx context.Context, index int, account Account, targets []string, plan Plan, sessionID string) {
	username := account.Username
	if len(targets) == 0 {
		// Nothing to do: no browser, no login.
		o.logger.Info("Account has no targets", "session_id", sessionID, "account", username)
		now := o.clock.Now()
		o.setResult(username, Result{State: Completed, Report: &runner.RunReport{
			Account:       username,
			SessionID:     sessionID,
			StartedAt:     now,
			EndedAt:       now,
			FailedTargets: []string{},
		}})
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !o.register(username, cancel) {
		o.skip(username, errors.New("stopped before start"))
		return
	}
	defer o.unregister(username)

	base := o.logger.With("session_id", sessionID)
	var logger *slog.Logger
	if o.collector != nil {
		logger = o.collector.ForAccount(base, username)
	} else {
		logger = base.With("account", username)
	}
	sl := activity.NewStatusLine(username, logger, o.statuses)

	if delay := o.accountStart * time.Duration(index); delay > 0 {
		sl.Setf("starting in %s", delay)
		if err := o.clock.Sleep(ctx, delay); err != nil {
			o.skip(username, fmt.Errorf("stopped before start: %w", err))
			return
		}
	}

	o.setResult(username, Result{State: Running})
	o.adjustActive(1)
	defer o.adjustActive(-1)

	var exec actions.Executor
	err := activity.CaptureError(sl, func() error {
		var err error
		exec, err = o.factory(ctx, account)
		if err != nil {
			return fmt.Errorf("opening executor: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("Account failed to start", "error", err)
		o.finish(ctx, username, sessionID, runner.RunReport{Account: username, SessionID: sessionID, TotalTargets: len(targets)}, err)
		return
	}

	coord := session.New(username, exec, logger)
	defer coord.Close()

	opts := []runner.Option{runner.WithClock(o.clock), runner.WithMetrics(o.metrics)}
	if o.store != nil {
		opts = append(opts, runner.WithRecorder(o.store))
	}
	opts = append(opts, o.runnerOpts...)
	opts = append(opts,
		runner.WithLogger(logger),
		runner.WithStatusLine(sl),
		runner.WithSessionID(sessionID),
	)

	report, err := runner.NewAccountRunner(coord, opts...).Run(ctx, targets, plan.Messages, plan.Flags)
	o.finish(ctx, username, sessionID, report, err)
}

func (o *Orchestrator) finish(ctx context.Context, username, sessionID string, report runner.RunReport, err error) {
	o.metrics.ObserveAccountRun(username, err == nil, report.SuccessRate)
	if o.store != nil {
		rec := store.SessionRecord{
			SessionID:    sessionID,
			Account:      username,
			StartedAt:    report.StartedAt,
			EndedAt:      report.EndedAt,
			TotalTargets: report.TotalTargets,
			Succeeded:    report.Succeeded,
			Failed:       len(report.FailedTargets),
			SuccessRate:  report.SuccessRate,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if rec.EndedAt.IsZero() {
			rec.StartedAt = o.clock.Now()
			rec.EndedAt = rec.StartedAt
		}
		if serr := o.store.SaveSession(context.WithoutCancel(ctx), rec); serr != nil {
			o.logger.Warn("Failed to save session record", "account", username, "error", serr)
		}
	}
	o.setResult(username, Result{State: Completed, Report: &report, Error: err})
}

// Stop cancels account. It reports false when the account is not part of the
// running session or has already finished.
func (o *Orchestrator) Stop(account string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	res, ok := o.results[account]
	if !ok || res.State == Completed || res.State == Skipped {
		return false
	}
	o.stopped[account] = true
	if cancel, ok := o.cancels[account]; ok {
		cancel()
	}
	o.logger.Info("Stop requested", "account", account)
	return true
}

// Results returns a snapshot of every account's result.
func (o *Orchestrator) Results() map[string]Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]Result, len(o.results))
	for k, v := range o.results {
		out[k] = *v
	}
	return out
}

// Logs returns the records captured for account, if a collector is configured.
func (o *Orchestrator) Logs(account string) []logging.Entry {
	if o.collector == nil {
		return nil
	}
	return o.collector.Logs(account)
}

func (o *Orchestrator) reset(usernames []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = make(map[string]*Result, len(usernames))
	o.cancels = make(map[string]context.CancelFunc)
	o.stopped = make(map[string]bool)
	for _, u := range usernames {
		o.results[u] = &Result{State: Pending}
	}
	if o.collector != nil {
		o.collector.Reset()
	}
	if o.statuses != nil {
		o.statuses.Reset()
	}
}

// register records the account's cancel func. It returns false when the
// account was stopped while queued.
func (o *Orchestrator) register(account string, cancel context.CancelFunc) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped[account] {
		return false
	}
	o.cancels[account] = cancel
	return true
}

func (o *Orchestrator) unregister(account string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, account)
}

func (o *Orchestrator) setResult(account string, r Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[account] = &r
}

func (o *Orchestrator) skip(account string, err error) {
	o.logger.Info("Account skipped", "account", account, "reason", err)
	o.setResult(account, Result{State: Skipped, Error: err})
}

func (o *Orchestrator) adjustActive(delta int) {
	o.mu.Lock()
	o.active += delta
	n := o.active
	o.mu.Unlock()
	o.metrics.SetActiveAccounts(n)
}

func (o *Orchestrator) summarize(s *Summary, usernames []string) {
	results := o.Results()
	s.States = make(map[string]string, len(results))
	s.TotalTargets = s.Distribution.TotalTargets
	for _, u := range usernames {
		res := results[u]
		s.States[u] = res.State.String()
		if res.Error != nil {
			if s.Errors == nil {
				s.Errors = make(map[string]string)
			}
			s.Errors[u] = res.Error.Error()
		}
		if res.Report == nil {
			continue
		}
		s.Reports = append(s.Reports, *res.Report)
		s.Succeeded += res.Report.Succeeded
		s.Failed += len(res.Report.FailedTargets)
	}
	sort.Slice(s.Reports, func(i, j int) bool { return s.Reports[i].Account < s.Reports[j].Account })
	if s.TotalTargets > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.TotalTargets) * 100
	}
}

func uniqueAccounts(in []Account) []Account {
	seen := make(map[string]bool, len(in))
	out := make([]Account, 0, len(in))
	for _, a := range in {
		if a.Username == "" || seen[a.Username] {
			continue
		}
		seen[a.Username] = true
		out = append(out, a)
	}
	return out
}

func chunk(accounts []Account, size int) [][]Account {
	var out [][]Account
	for size < len(accounts) {
		out = append(out, accounts[:size:size])
		accounts = accounts[size:]
	}
	if len(accounts) > 0 {
		out = append(out, accounts)
	}
	return out
}
