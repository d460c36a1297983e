package runner

import (
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	botrunner "github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/runner"
)

// historyIDFormat names history entries that have no session id and the
// files DiskStore writes.
const historyIDFormat = "2006-01-02T15-04-05"

// RunState represents the current state of a session.
type RunState int

const (
	// RunStateIdle indicates no session is running.
	RunStateIdle RunState = iota
	// RunStateRunning indicates a session is in progress.
	RunStateRunning
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s RunState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// RunSummary is the history entry of one session.
type RunSummary struct {
	// ID is the session id, or the start time when the session failed before
	// one was assigned.
	ID        string     `json:"id"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	// Error contains the error message if the session failed. Empty on success.
	Error        string   `json:"error,omitempty"`
	Accounts     []string `json:"accounts,omitempty"`
	TotalTargets int      `json:"total_targets"`
	Succeeded    int      `json:"succeeded"`
	Failed       int      `json:"failed"`
	SuccessRate  float64  `json:"success_rate"`
	SnapshotPath string   `json:"snapshot_path,omitempty"`
}

// CalculateID derives an id from the start time.
func (s RunSummary) CalculateID() string {
	if s.StartedAt == nil {
		return ""
	}
	return s.StartedAt.Format(historyIDFormat)
}

// AccountExecution is one account's part of a session.
type AccountExecution struct {
	Account string               `json:"account"`
	State   string               `json:"state"`
	Status  string               `json:"status,omitempty"`
	Error   string               `json:"error,omitempty"`
	Report  *botrunner.RunReport `json:"report,omitempty"`
	Logs    []logging.Entry      `json:"logs,omitempty"`
}

// RunStatus contains information about the current or last session.
type RunStatus struct {
	State RunState `json:"state"`
	RunSummary
	// Executions holds live per-account progress while running and the final
	// per-account outcome afterwards.
	Executions []AccountExecution `json:"executions,omitempty"`
}

// runRecord is the on-disk form of a session.
type runRecord struct {
	RunSummary
	Executions []AccountExecution `json:"executions"`
}
