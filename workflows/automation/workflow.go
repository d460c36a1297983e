// Package automation assembles a session from the configuration: the
// accounts and their browsers, targets, messages, pacing and limits.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/activity"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/browser"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/messages"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/metrics"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/orchestrator"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/security"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/store"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/validate"
)

var (
	// ErrNoTargets is returned when a new session has nothing to process.
	ErrNoTargets = errors.New("no valid targets")
	// ErrUnknownAccount is returned when a request names an account that is
	// not configured or not enabled.
	ErrUnknownAccount = errors.New("unknown or disabled account")
)

// Request selects what a session works on.
type Request struct {
	// Targets are raw usernames. When empty and not resuming, the configured
	// targets file is used.
	Targets []string
	// Accounts restricts the session to these enabled accounts. Empty selects all.
	Accounts []string
	// ResumeSessionID continues an earlier session with its unprocessed targets.
	ResumeSessionID string
}

// WorkflowOption configures workflow creation.
type WorkflowOption func(*workflowOptions)

type workflowOptions struct {
	store     store.StatsStore
	metrics   *metrics.Automation
	statuses  *activity.StatusHandler
	collector *logging.Collector
	factory   orchestrator.ExecutorFactory
	clock     clock.Clock
}

// WithStore persists the session and enables action limits.
func WithStore(s store.StatsStore) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.store = s
	}
}

// WithMetrics reports session metrics.
func WithMetrics(m *metrics.Automation) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.metrics = m
	}
}

// WithStatusCollection publishes per-account status lines to collection.
func WithStatusCollection(collection *activity.StatusHandler) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.statuses = collection
	}
}

// WithLogCollector captures every account's log records.
func WithLogCollector(c *logging.Collector) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.collector = c
	}
}

// WithExecutorFactory replaces the browser executors.
func WithExecutorFactory(f orchestrator.ExecutorFactory) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.factory = f
	}
}

// WithClock sets the clock for every pause of the session.
func WithClock(c clock.Clock) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.clock = c
	}
}

// Workflow is a fully configured session, ready to execute once.
type Workflow struct {
	orch *orchestrator.Orchestrator
	plan orchestrator.Plan
}

// NewWorkflow builds a session for req from cfg.
func NewWorkflow(cfg *config.Config, logger *slog.Logger, req Request, opts ...WorkflowOption) (*Workflow, error) {
	options := &workflowOptions{clock: clock.Real{}}
	for _, opt := range opts {
		opt(options)
	}

	accounts, err := selectAccounts(cfg, req.Accounts)
	if err != nil {
		return nil, err
	}

	plan := orchestrator.Plan{
		SessionID:            req.ResumeSessionID,
		Resume:               req.ResumeSessionID != "",
		Accounts:             accounts,
		Flags:                cfg.Actions,
		MinTargetsPerAccount: cfg.Distribution.MinTargetsPerAccount,
	}
	if !plan.Resume {
		plan.SessionID = uuid.NewString()
	}
	if plan.Strategy, err = distribution.ParseStrategy(string(cfg.Distribution.Strategy)); err != nil {
		return nil, err
	}
	if !plan.Resume {
		if plan.Targets, err = loadTargets(cfg, req.Targets, logger); err != nil {
			return nil, err
		}
	}

	pool, err := messages.Load(cfg.Storage.MessagesFile)
	if err != nil {
		return nil, err
	}
	plan.Messages = pool.All()

	overflow, err := orchestrator.ParseOverflow(string(cfg.Parallel.Overflow))
	if err != nil {
		return nil, err
	}

	runnerOpts := []runner.Option{
		runner.WithDelays(cfg.Delays.Delays),
		runner.WithSessionTimeout(cfg.Security.SessionTimeout),
	}
	if options.store != nil {
		guard := security.NewGuard(options.store, cfg.Security.Limits,
			security.WithClock(options.clock),
			security.WithLogger(logger))
		runnerOpts = append(runnerOpts, runner.WithGuard(guard))
	}

	factory := options.factory
	if factory == nil {
		factory = browserFactory(cfg, logger, options.clock)
	}

	orch := orchestrator.New(factory,
		orchestrator.WithLogger(logger),
		orchestrator.WithStore(options.store),
		orchestrator.WithClock(options.clock),
		orchestrator.WithMetrics(options.metrics),
		orchestrator.WithLogCollector(options.collector),
		orchestrator.WithStatusHandler(options.statuses),
		orchestrator.WithRunnerOptions(runnerOpts...),
		orchestrator.WithSnapshotDir(cfg.Storage.ReportsDir),
		orchestrator.WithMaxParallel(cfg.Parallel.MaxParallelAccounts),
		orchestrator.WithOverflow(overflow),
		orchestrator.WithBatches(cfg.Parallel.BatchSize, cfg.Delays.BatchDelay),
		orchestrator.WithAccountStart(cfg.Delays.AccountStart),
	)

	return &Workflow{orch: orch, plan: plan}, nil
}

// Plan returns the session plan.
func (w *Workflow) Plan() orchestrator.Plan {
	return w.plan
}

// Execute runs the session and blocks until every account has finished.
func (w *Workflow) Execute(ctx context.Context) (orchestrator.Summary, error) {
	return w.orch.Execute(ctx, w.plan)
}

// Stop cancels one account of the running session.
func (w *Workflow) Stop(account string) bool {
	return w.orch.Stop(account)
}

// Results returns every account's current result.
func (w *Workflow) Results() map[string]orchestrator.Result {
	return w.orch.Results()
}

// Logs returns the records captured for account.
func (w *Workflow) Logs(account string) []logging.Entry {
	return w.orch.Logs(account)
}

func selectAccounts(cfg *config.Config, names []string) ([]orchestrator.Account, error) {
	enabled := cfg.EnabledAccounts()
	if len(names) == 0 {
		out := make([]orchestrator.Account, len(enabled))
		for i, a := range enabled {
			out[i] = orchestrator.Account{Username: a.Username, Proxy: a.Proxy}
		}
		return out, nil
	}

	byName := make(map[string]config.AccountConfig, len(enabled))
	for _, a := range enabled {
		byName[a.Username] = a
	}
	out := make([]orchestrator.Account, 0, len(names))
	for _, name := range names {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
		}
		out = append(out, orchestrator.Account{Username: a.Username, Proxy: a.Proxy})
	}
	return out, nil
}

func loadTargets(cfg *config.Config, raw []string, logger *slog.Logger) ([]string, error) {
	var (
		names    []string
		problems []*validate.Error
		err      error
	)
	if len(raw) > 0 {
		names, problems = validate.Dedupe(raw, validate.Options{CaseSensitive: cfg.Targets.CaseSensitive})
	} else if cfg.Targets.File != "" {
		if names, problems, err = cfg.Targets.Load(); err != nil {
			return nil, err
		}
	}
	for _, p := range problems {
		logger.Warn("Skipping invalid target", "input", p.Input, "reason", p.Reason.String())
	}
	if len(names) == 0 {
		return nil, ErrNoTargets
	}
	return names, nil
}

func browserFactory(cfg *config.Config, logger *slog.Logger, c clock.Clock) orchestrator.ExecutorFactory {
	browserCfg := cfg.Browser
	sessionsDir := cfg.Directories.Sessions
	accounts := make(map[string]config.AccountConfig, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts[a.Username] = a
	}

	return func(_ context.Context, account orchestrator.Account) (actions.Executor, error) {
		acc, ok := accounts[account.Username]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Username)
		}
		proxy, err := validate.ValidateProxy(acc.Proxy)
		if err != nil {
			return nil, err
		}
		creds := browser.Credentials{Username: acc.Username, Password: acc.Password, Proxy: proxy}
		return browser.NewExecutor(creds, browserCfg,
			browser.WithLogger(logger),
			browser.WithClock(c),
			browser.WithCookieDir(sessionsDir)), nil
	}
}
