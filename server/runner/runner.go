// Package runner manages session execution for the instabot server.
//
// The runner handles:
//   - Starting sessions in the background
//   - Preventing concurrent sessions
//   - Tracking live per-account status and logs
//   - Maintaining history of completed sessions
//
// Each session is assembled from the current configuration, so config
// changes take effect on the next session.
//
// # Example
//
//	r := runner.New(logger, configProvider)
//
//	if err := r.Run(automation.Request{Targets: []string{"alice", "bob"}}); err != nil {
//	    if errors.Is(err, runner.ErrRunInProgress) {
//	        // Handle concurrent run attempt
//	    }
//	}
//
//	status := r.Status()
//	for _, exec := range status.Executions {
//	    fmt.Printf("%s [%s]: %s\n", exec.Account, exec.State, exec.Status)
//	}
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/activity"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/metrics"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/orchestrator"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/store"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/workflows/automation"
)

// defaultMemoryHistory bounds the in-memory history used without WithStateStore.
const defaultMemoryHistory = 100

var (
	// ErrRunInProgress is returned when attempting to start a session while one is already running.
	ErrRunInProgress = errors.New("session already in progress")
	// ErrNotRunning is returned by Stop when no session is running.
	ErrNotRunning = errors.New("no session in progress")
	// ErrAccountNotActive is returned by Stop for an account that is not part
	// of the running session or has already finished.
	ErrAccountNotActive = errors.New("account is not active")
)

// Runner manages session execution.
type Runner struct {
	logger         *slog.Logger
	configProvider ConfigProvider
	history        StateStore
	stats          store.StatsStore
	metrics        *metrics.Automation
	factory        orchestrator.ExecutorFactory
	clock          clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	runStatus RunStatus
	workflow  *automation.Workflow    // current or last session
	statuses  *activity.StatusHandler // current session's statuses
	collector *logging.Collector      // current session's captured logs
}

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for session history.
func WithStateStore(s StateStore) Option {
	return func(r *Runner) {
		r.history = s
	}
}

// WithStatsStore persists distributions and outcomes, enabling resume and
// action limits. Old rows are cleaned up after each session.
func WithStatsStore(s store.StatsStore) Option {
	return func(r *Runner) {
		r.stats = s
	}
}

// WithMetrics reports session metrics.
func WithMetrics(m *metrics.Automation) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithExecutorFactory replaces the browser executors.
func WithExecutorFactory(f orchestrator.ExecutorFactory) Option {
	return func(r *Runner) {
		r.factory = f
	}
}

// WithClock sets the clock used for sessions and timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// New creates a new Runner.
func New(logger *slog.Logger, provider ConfigProvider, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger:         logger,
		configProvider: provider,
		history:        NewMemoryStore(defaultMemoryHistory),
		clock:          clock.Real{},
		ctx:            ctx,
		cancel:         cancel,
		runStatus:      RunStatus{State: RunStateIdle},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run starts a session in the background. It returns ErrRunInProgress if a
// session is already running and the workflow error if the request cannot be
// turned into a session.
func (r *Runner) Run(req automation.Request) error {
	if r.IsRunning() {
		return ErrRunInProgress
	}

	cfg := r.configProvider.Config()
	if cfg == nil {
		return errors.New("no configuration available")
	}

	statuses := activity.NewStatusHandler()
	collector := logging.NewCollector(0)
	opts := []automation.WorkflowOption{
		automation.WithStatusCollection(statuses),
		automation.WithLogCollector(collector),
		automation.WithMetrics(r.metrics),
		automation.WithClock(r.clock),
	}
	if r.stats != nil {
		opts = append(opts, automation.WithStore(r.stats))
	}
	if r.factory != nil {
		opts = append(opts, automation.WithExecutorFactory(r.factory))
	}

	wf, err := automation.NewWorkflow(cfg, r.logger, req, opts...)
	if err != nil {
		return err
	}

	if !r.tryStart(wf, statuses, collector) {
		return ErrRunInProgress
	}

	r.logger.Info("starting session", "accounts", len(wf.Plan().Accounts), "targets", len(wf.Plan().Targets))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		summary, err := wf.Execute(r.ctx)
		r.finish(summary, err)
		r.cleanup(cfg.Storage.Retention)
	}()

	return nil
}

// Stop cancels one account of the running session.
func (r *Runner) Stop(account string) error {
	r.mu.Lock()
	running := r.runStatus.State == RunStateRunning
	wf := r.workflow
	r.mu.Unlock()

	if !running || wf == nil {
		return ErrNotRunning
	}
	if !wf.Stop(account) {
		return ErrAccountNotActive
	}
	r.logger.Info("stopping account", "account", account)
	return nil
}

// Close cancels a running session and waits for it to be recorded.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// Status returns the current session status. While running it includes live
// per-account statuses and logs; when idle it returns the last session.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.runStatus
	if r.runStatus.State == RunStateRunning && r.workflow != nil {
		status.Executions = r.buildExecutions()
	}
	return status
}

// IsRunning returns true if a session is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runStatus.State == RunStateRunning
}

// History returns the completed sessions, most recent first.
func (r *Runner) History() []RunSummary {
	return r.history.History()
}

// Logs returns the account executions of a completed session.
func (r *Runner) Logs(id string) []AccountExecution {
	return r.history.Logs(id)
}

// tryStart transitions from idle to running.
// Returns true if successful, false if already running.
func (r *Runner) tryStart(wf *automation.Workflow, statuses *activity.StatusHandler, collector *logging.Collector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runStatus.State == RunStateRunning {
		return false
	}

	now := r.clock.Now()
	plan := wf.Plan()
	accounts := make([]string, len(plan.Accounts))
	for i, a := range plan.Accounts {
		accounts[i] = a.Username
	}
	r.runStatus = RunStatus{
		State: RunStateRunning,
		RunSummary: RunSummary{
			ID:           plan.SessionID,
			StartedAt:    &now,
			Accounts:     accounts,
			TotalTargets: len(plan.Targets),
		},
	}
	r.workflow = wf
	r.statuses = statuses
	r.collector = collector
	return true
}

// finish transitions from running to idle and records the session.
func (r *Runner) finish(summary orchestrator.Summary, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	endTime := r.clock.Now()
	duration := endTime.Sub(*r.runStatus.StartedAt)

	r.runStatus.State = RunStateIdle
	r.runStatus.EndedAt = &endTime
	if summary.SessionID != "" {
		r.runStatus.ID = summary.SessionID
	}
	r.runStatus.TotalTargets = summary.TotalTargets
	r.runStatus.Succeeded = summary.Succeeded
	r.runStatus.Failed = summary.Failed
	r.runStatus.SuccessRate = summary.SuccessRate
	r.runStatus.SnapshotPath = summary.SnapshotPath

	if err != nil {
		r.runStatus.Error = err.Error()
		r.logger.Error("session failed", "error", err, "duration", duration)
	} else {
		r.runStatus.Error = ""
		r.logger.Info("session completed", "session_id", summary.SessionID,
			"succeeded", summary.Succeeded, "total", summary.TotalTargets, "duration", duration)
	}

	r.runStatus.Executions = r.buildExecutions()

	if err := r.history.Save(r.runStatus.RunSummary, r.runStatus.Executions); err != nil {
		r.logger.Error("failed to save session to history", "error", err)
	}
}

func (r *Runner) cleanup(retention time.Duration) {
	if r.stats == nil || retention <= 0 {
		return
	}
	n, err := r.stats.CleanupOldData(context.Background(), r.clock.Now().Add(-retention))
	if err != nil {
		r.logger.Warn("failed to clean up old data", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("cleaned up old data", "rows", n)
	}
}

// buildExecutions combines account results, statuses and logs. Callers hold mu.
func (r *Runner) buildExecutions() []AccountExecution {
	results := r.workflow.Results()

	var statuses map[string]activity.Status
	if r.statuses != nil {
		statuses = r.statuses.All()
	}

	executions := make([]AccountExecution, 0, len(results))
	for account, result := range results {
		exec := AccountExecution{
			Account: account,
			State:   result.State.String(),
			Status:  statuses[account].Text,
			Report:  result.Report,
		}
		if result.Error != nil {
			exec.Error = result.Error.Error()
		}
		if r.collector != nil {
			exec.Logs = r.collector.Logs(account)
		}
		executions = append(executions, exec)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].Account < executions[j].Account
	})

	return executions
}
