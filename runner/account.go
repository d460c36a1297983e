package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/session"
)

var (
	// ErrSessionTimeout is returned when an account run exceeds its session timeout.
	ErrSessionTimeout = errors.New("session timeout exceeded")
	// ErrCancelled is returned when an account run is stopped before finishing its targets.
	ErrCancelled = errors.New("run cancelled")
)

// AccountRunner processes one account's target list sequentially through a
// TargetRunner sharing the account's session.
type AccountRunner struct {
	session *session.Coordinator
	targets *TargetRunner
	settings
}

// NewAccountRunner creates an AccountRunner for the account owned by s.
func NewAccountRunner(s *session.Coordinator, opts ...Option) *AccountRunner {
	st := newSettings(opts)
	return &AccountRunner{
		session:  s,
		targets:  newTargetRunner(s.Account(), s.Executor(), st),
		settings: st,
	}
}

// Run logs in (once) and processes targets in order, pausing between them.
//
// A login failure aborts the run and is returned wrapped around
// session.ErrLoginFailed. Cancellation of ctx and the session timeout take
// effect between targets; the partial report is returned together with
// ErrCancelled or ErrSessionTimeout. Failures of individual targets never
// abort the run.
func (r *AccountRunner) Run(ctx context.Context, targets, msgs []string, flags actions.Flags) (RunReport, error) {
	account := r.session.Account()
	logger := r.logger.With("account", account)
	start := r.clock.Now()
	report := RunReport{
		Account:      account,
		SessionID:    r.sessionID,
		StartedAt:    start,
		TotalTargets: len(targets),
	}

	r.status.Set("logging in")
	if err := r.session.Login(ctx); err != nil {
		r.status.Set("❌ login failed")
		report.finish(r.clock.Now(), targets)
		report.Error = err.Error()
		return report, err
	}

	logger.Info("Starting account run", "targets", len(targets), "session_id", r.sessionID)

	var stopErr error
	processed := 0
	for i, target := range targets {
		if i > 0 {
			if err := r.clock.Sleep(ctx, r.delays.BetweenTargets.Pick(r.rnd)); err != nil {
				stopErr = fmt.Errorf("%w: %w", ErrCancelled, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			stopErr = fmt.Errorf("%w: %w", ErrCancelled, err)
			break
		}
		if r.sessionTimeout > 0 && r.clock.Since(start) >= r.sessionTimeout {
			stopErr = fmt.Errorf("%w after %s", ErrSessionTimeout, r.clock.Since(start).Round(time.Second))
			break
		}

		r.status.Setf("processing %d/%d: %s", i+1, len(targets), target)
		res := r.runTarget(ctx, target, msgs, flags)
		report.add(res)
		processed++
		r.metrics.ObserveTarget(string(res.Status))

		if r.recorder != nil && r.sessionID != "" {
			if err := r.recorder.MarkTargetProcessed(context.WithoutCancel(ctx), r.sessionID, account, target, res.Succeeded()); err != nil {
				logger.Warn("Failed to mark target processed", "target", target, "error", err)
			}
		}
	}

	report.finish(r.clock.Now(), targets[processed:])
	if stopErr != nil {
		report.Error = stopErr.Error()
		logger.Warn("Account run stopped early",
			"reason", stopErr, "processed", processed, "skipped", len(report.Skipped))
	}

	logger.Info("Account run finished",
		"total", report.TotalTargets,
		"succeeded", report.Succeeded,
		"failed", len(report.FailedTargets),
		"success_rate", fmt.Sprintf("%.1f%%", report.SuccessRate),
		"rating", report.Rating())
	if len(report.FailedTargets) > 0 {
		logger.Info("Failed targets", "targets", report.FailedTargets)
	}
	r.status.Setf("done: %d/%d succeeded (%s)", report.Succeeded, report.TotalTargets, report.Rating())
	return report, stopErr
}

// runTarget isolates the account loop from anything that escapes the
// per-stage recovery.
func (r *AccountRunner) runTarget(ctx context.Context, target string, msgs []string, flags actions.Flags) (res UserRunResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Target aborted", "account", r.session.Account(), "target", target, "panic", p)
			now := r.clock.Now()
			res = UserRunResult{Target: target, Status: Failed, StartedAt: now, EndedAt: now, Error: fmt.Sprint(p)}
		}
	}()
	return r.targets.Run(ctx, target, msgs, flags)
}
