package orchestrator

import (
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/runner"
)

// AccountState is the execution state of one account in a session.
type AccountState int

const (
	NotStarted AccountState = iota
	// Pending means the account is queued or waiting for its staggered start.
	Pending
	Running
	// Completed means the worker finished; check Result.Error.
	Completed
	// Skipped means the account was stopped before its worker began.
	Skipped
)

func (s AccountState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s AccountState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the state and outcome of one account.
type Result struct {
	State  AccountState
	Report *runner.RunReport
	Error  error
}

// IsSuccess reports whether the account processed all of its targets without
// a session-level failure.
func (r Result) IsSuccess() bool {
	return r.State == Completed && r.Error == nil
}
