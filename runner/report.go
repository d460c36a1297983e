package runner

import (
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
)

// TargetStatus is the overall result of one (account, target) pair.
type TargetStatus string

const (
	// Completed means every attempted stage succeeded.
	Completed TargetStatus = "completed"
	// PartiallyCompleted means at least one stage succeeded and at least one failed.
	PartiallyCompleted TargetStatus = "partially_completed"
	// Failed means no stage succeeded.
	Failed TargetStatus = "failed"
)

// UserRunResult is the outcome of running the stage sequence against one target.
type UserRunResult struct {
	Target    string            `json:"target"`
	Outcomes  []actions.Outcome `json:"outcomes"`
	Status    TargetStatus      `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	// Error is set when the target was aborted by an unexpected failure
	// outside of a stage.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether at least one stage succeeded.
func (r UserRunResult) Succeeded() bool {
	for _, o := range r.Outcomes {
		if o.Success {
			return true
		}
	}
	return false
}

// Outcome returns the outcome recorded for category, if that stage ran.
func (r UserRunResult) Outcome(c actions.Category) (actions.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Category == c {
			return o, true
		}
	}
	return actions.Outcome{}, false
}

func statusOf(outcomes []actions.Outcome) TargetStatus {
	var ok, failed int
	for _, o := range outcomes {
		if o.Success {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case ok == 0:
		return Failed
	case failed == 0:
		return Completed
	default:
		return PartiallyCompleted
	}
}

// Rating grades a success rate for the run summary.
type Rating string

const (
	RatingExcellent        Rating = "excellent"
	RatingGood             Rating = "good"
	RatingSatisfactory     Rating = "satisfactory"
	RatingNeedsImprovement Rating = "needs improvement"
)

// RunReport summarizes one account's run.
type RunReport struct {
	Account      string    `json:"account"`
	SessionID    string    `json:"session_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	TotalTargets int       `json:"total_targets"`
	Succeeded    int       `json:"succeeded"`
	// FailedTargets lists processed targets with no successful stage.
	FailedTargets []string `json:"failed_targets"`
	// Skipped lists targets never reached because the run stopped early.
	Skipped     []string        `json:"skipped,omitempty"`
	SuccessRate float64         `json:"success_rate"`
	Results     []UserRunResult `json:"results"`
	// Incomplete is set when the run stopped before every target was processed.
	Incomplete bool   `json:"incomplete"`
	Error      string `json:"error,omitempty"`
}

// Processed returns how many targets were run.
func (r RunReport) Processed() int {
	return len(r.Results)
}

// Rating grades the report's success rate.
func (r RunReport) Rating() Rating {
	switch {
	case r.TotalTargets > 0 && r.Succeeded == r.TotalTargets:
		return RatingExcellent
	case r.SuccessRate >= 80:
		return RatingGood
	case r.SuccessRate >= 50:
		return RatingSatisfactory
	default:
		return RatingNeedsImprovement
	}
}

func (r *RunReport) add(res UserRunResult) {
	r.Results = append(r.Results, res)
	if res.Succeeded() {
		r.Succeeded++
	} else {
		r.FailedTargets = append(r.FailedTargets, res.Target)
	}
}

// finish computes the derived fields. remaining are the targets that were never run.
func (r *RunReport) finish(end time.Time, remaining []string) {
	r.EndedAt = end
	if len(remaining) > 0 {
		r.Skipped = append([]string(nil), remaining...)
		r.Incomplete = true
	}
	if r.FailedTargets == nil {
		r.FailedTargets = []string{}
	}
	if r.TotalTargets > 0 {
		r.SuccessRate = float64(r.Succeeded) / float64(r.TotalTargets) * 100
	}
}
