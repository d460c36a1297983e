// Package handlers provides HTTP handlers for the instabot server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/workflows/automation"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader re-reads its state from disk.
type Reloader interface {
	Reload() error
}

// SessionRunner can start sessions.
type SessionRunner interface {
	Run(req automation.Request) error
	Status() runner.RunStatus
}

// AccountStopper can stop one account of the running session.
type AccountStopper interface {
	Stop(account string) error
}

// MessagePool lists and edits the reply and direct-message pool.
// *messages.Pool satisfies it.
type MessagePool interface {
	All() []string
	Add(msg string) (bool, error)
	Remove(msg string) (bool, error)
}

// HistoryProvider provides access to session history.
type HistoryProvider interface {
	History() []runner.RunSummary
	Logs(id string) []runner.AccountExecution
}
