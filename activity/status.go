// Package activity tracks what each account worker is currently doing.
//
// A StatusLine is handed to the runner of one account. Every Set both logs the
// message with the account attached and stores it in the shared StatusHandler,
// which the server reads to answer GET /api/status:
//
//	handler := activity.NewStatusHandler()
//	line := activity.NewStatusLine("acc1", logger, handler)
//	line.Setf("processing %d/%d: %s", i+1, total, target)
//
//	handler.All() // map[account]Status
package activity

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status is the latest message reported for an account.
type Status struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusHandler stores the latest status per account.
type StatusHandler struct {
	mu       sync.RWMutex
	now      func() time.Time
	statuses map[string]Status
}

// NewStatusHandler creates an empty handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{
		now:      time.Now,
		statuses: make(map[string]Status),
	}
}

// Set replaces the status of account.
func (h *StatusHandler) Set(account, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[account] = Status{Text: text, UpdatedAt: h.now()}
}

// Get returns the current status text of account, or "" if none was reported.
func (h *StatusHandler) Get(account string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statuses[account].Text
}

// All returns a snapshot of every account's status.
func (h *StatusHandler) All() map[string]Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Status, len(h.statuses))
	for k, v := range h.statuses {
		out[k] = v
	}
	return out
}

// Reset forgets all statuses. Called when a new session starts.
func (h *StatusHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = make(map[string]Status)
}

// StatusLine reports status for a single account. The zero value and a nil
// *StatusLine discard everything.
type StatusLine struct {
	account string
	logger  *slog.Logger
	handler *StatusHandler
}

// NewStatusLine binds a status line to account. handler may be nil, in which
// case statuses are only logged.
func NewStatusLine(account string, logger *slog.Logger, handler *StatusHandler) *StatusLine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusLine{account: account, logger: logger, handler: handler}
}

// Set logs status and publishes it to the handler.
func (sl *StatusLine) Set(status string) {
	if sl == nil || sl.logger == nil {
		return
	}
	sl.logger.Info(status, "account", sl.account)
	if sl.handler != nil {
		sl.handler.Set(sl.account, status)
	}
}

// Setf is Set with formatting.
func (sl *StatusLine) Setf(format string, args ...any) {
	sl.Set(fmt.Sprintf(format, args...))
}

// CaptureError runs f and, when it fails, publishes the error as the status
// prefixed with ❌.
func CaptureError(sl *StatusLine, f func() error) error {
	err := f()
	if err != nil {
		sl.Set("❌ " + err.Error())
	}
	return err
}
