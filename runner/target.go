package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/messages"
)

const limitReached = "action limit reached"

// TargetRunner runs the fixed stage sequence for one account against one
// target at a time: LikePosts, then StoryInteraction, then DirectMessage as a
// fallback when the story stage did not succeed. Each stage runs at most once.
type TargetRunner struct {
	account  string
	executor actions.Executor
	settings
}

// NewTargetRunner creates a TargetRunner acting as account through executor.
func NewTargetRunner(account string, executor actions.Executor, opts ...Option) *TargetRunner {
	return newTargetRunner(account, executor, newSettings(opts))
}

func newTargetRunner(account string, executor actions.Executor, s settings) *TargetRunner {
	s.logger = s.logger.With("account", account)
	return &TargetRunner{account: account, executor: executor, settings: s}
}

// Run processes target. Stage failures, executor errors and panics are
// recorded as Failure outcomes and never stop the remaining stages.
//
// Once started, a target always runs to completion: cancellation of ctx is
// observed by the caller between targets, not here.
func (r *TargetRunner) Run(ctx context.Context, target string, msgs []string, flags actions.Flags) UserRunResult {
	ctx = context.WithoutCancel(ctx)
	logger := r.logger.With("target", target)
	res := UserRunResult{Target: target, StartedAt: r.clock.Now()}

	if flags.LikePosts {
		count := flags.PostsCount
		if count <= 0 {
			count = 1
		}
		res.Outcomes = append(res.Outcomes, r.stage(ctx, actions.LikePosts, target, func() (bool, string, error) {
			liked, err := r.executor.LikePosts(ctx, target, count)
			return liked > 0, fmt.Sprintf("liked %d/%d posts", liked, count), err
		}))
		r.pause(ctx, r.delays.BetweenStages.Pick(r.rnd), "between stages")
	}

	storySucceeded := false
	if flags.StoryEnabled() {
		req := actions.StoryRequest{Like: flags.LikeStories}
		if flags.ReplyStories {
			req.Reply = messages.Pick(r.rnd, msgs)
		}
		o := r.stage(ctx, actions.StoryInteraction, target, func() (bool, string, error) {
			sr, err := r.executor.InteractWithStory(ctx, target, req)
			if err != nil {
				return false, "", err
			}
			if !sr.Found {
				return false, "no active story", nil
			}
			return sr.Success(), fmt.Sprintf("liked=%t replied=%t", sr.Liked, sr.Replied), nil
		})
		res.Outcomes = append(res.Outcomes, o)
		storySucceeded = o.Success
		r.pause(ctx, r.delays.StorySettle, "story settle")
	}

	if flags.SendDirectMessage && !storySucceeded {
		r.pause(ctx, r.delays.BeforeDirectMessage.Pick(r.rnd), "before direct message")
		msg := messages.Pick(r.rnd, msgs)
		res.Outcomes = append(res.Outcomes, r.stage(ctx, actions.DirectMessage, target, func() (bool, string, error) {
			sent, err := r.executor.SendDirectMessage(ctx, target, msg)
			return sent, "", err
		}))
	}

	res.EndedAt = r.clock.Now()
	res.Status = statusOf(res.Outcomes)
	logger.Info("Target processed", "status", res.Status, "stages", len(res.Outcomes))
	return res
}

// stage runs one executor call behind the guard and turns every kind of
// failure into a Failure outcome.
func (r *TargetRunner) stage(ctx context.Context, c actions.Category, target string, call func() (bool, string, error)) actions.Outcome {
	logger := r.logger.With("target", target, "stage", c)
	o := actions.Outcome{Category: c, Target: target}

	func() {
		defer func() {
			if p := recover(); p != nil {
				o.Success = false
				o.Detail = fmt.Sprintf("panic: %v", p)
				logger.Error("Stage panicked", "panic", p)
			}
		}()

		if r.guard != nil {
			allowed, err := r.guard.Allow(ctx, r.account, c)
			if err != nil {
				logger.Warn("Could not check action limits", "error", err)
			} else if !allowed {
				o.Detail = limitReached
				return
			}
			if err := r.guard.Wait(ctx, r.account); err != nil {
				o.Detail = err.Error()
				return
			}
		}

		r.status.Setf("%s: %s", target, c)
		ok, detail, err := call()
		o.Success = ok && err == nil
		o.Detail = detail
		if err != nil {
			o.Detail = err.Error()
			logger.Warn("Stage failed", "error", err)
		}
	}()

	o.At = r.clock.Now()
	logger.Debug("Stage finished", "success", o.Success, "detail", o.Detail)
	r.metrics.ObserveAction(o)
	if r.recorder != nil {
		if err := r.recorder.RecordOutcome(ctx, r.account, o); err != nil {
			logger.Warn("Failed to record outcome", "error", err)
		}
	}
	return o
}

func (r *TargetRunner) pause(ctx context.Context, d time.Duration, reason string) {
	if d <= 0 {
		return
	}
	r.logger.Debug("Pausing", "reason", reason, "duration", d)
	// ctx is never cancelled here; an error can only come from a broken clock.
	if err := r.clock.Sleep(ctx, d); err != nil {
		r.logger.Warn("Pause interrupted", "reason", reason, "error", err)
	}
}
