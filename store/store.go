// Package store persists distributions, per-action outcomes and account
// session records.
//
// Two implementations are provided: MemoryStore for tests and one-shot runs
// without persistence, and SQLiteStore for durable state. Writes are scoped to
// a single account so concurrent account workers never contend on shared rows.
package store

import (
	"context"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
)

// StatsStore is the persistence contract used by the orchestration core.
type StatsStore interface {
	// SaveAccount records an operating account.
	SaveAccount(ctx context.Context, account Account) error
	// SaveDistribution stores the assignment for a session.
	SaveDistribution(ctx context.Context, sessionID string, d distribution.Distribution) error
	// HasDistribution reports whether any assignment of sessionID is stored.
	HasDistribution(ctx context.Context, sessionID string) (bool, error)
	// GetTargetsForAccount returns the targets of a session not yet processed by account, in assignment order.
	GetTargetsForAccount(ctx context.Context, account, sessionID string) ([]string, error)
	// MarkTargetProcessed flags a target of a session as handled.
	MarkTargetProcessed(ctx context.Context, sessionID, account, target string, success bool) error
	// RecordOutcome appends one action outcome to the account's action log.
	RecordOutcome(ctx context.Context, account string, outcome actions.Outcome) error
	// CountActionsWithin counts the account's successful actions in [from, to).
	CountActionsWithin(ctx context.Context, account string, from, to time.Time) (int, error)
	// TodayActions counts the account's successful actions per category since local midnight of now.
	TodayActions(ctx context.Context, account string, now time.Time) (map[actions.Category]int, error)
	// SaveSession records the summary of one account run.
	SaveSession(ctx context.Context, rec SessionRecord) error
	// Sessions returns the account runs of a session.
	Sessions(ctx context.Context, sessionID string) ([]SessionRecord, error)
	// CleanupOldData deletes action rows and processed assignments older than before.
	CleanupOldData(ctx context.Context, before time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// Account is an operating account row.
type Account struct {
	Username string
	Proxy    string
	LastUsed time.Time
}

// SessionRecord is the persisted summary of one account's run within a session.
type SessionRecord struct {
	SessionID    string    `json:"session_id"`
	Account      string    `json:"account"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	TotalTargets int       `json:"total_targets"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	SuccessRate  float64   `json:"success_rate"`
	Error        string    `json:"error,omitempty"`
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
