package runner

// StateStore manages persistence of session history.
type StateStore interface {
	// History returns all sessions, most recent first.
	History() []RunSummary
	// Logs returns the account executions of session id.
	Logs(id string) []AccountExecution
	// Save persists a session.
	Save(summary RunSummary, executions []AccountExecution) error
}
