package store

import (
	"context"
	"sync"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
)

type assignment struct {
	target      string
	assignedAt  time.Time
	processed   bool
	processedAt time.Time
	success     bool
}

type actionRow struct {
	account string
	outcome actions.Outcome
}

// MemoryStore keeps everything in memory only (no persistence).
type MemoryStore struct {
	mu          sync.Mutex
	now         func() time.Time
	accounts    map[string]Account
	assignments map[string]map[string][]*assignment // session -> account -> targets
	actions     []actionRow
	sessions    []SessionRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		accounts:    make(map[string]Account),
		assignments: make(map[string]map[string][]*assignment),
	}
}

func (s *MemoryStore) SaveAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Username] = account
	return nil
}

// Accounts returns the saved accounts.
func (s *MemoryStore) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}

func (s *MemoryStore) SaveDistribution(_ context.Context, sessionID string, d distribution.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	bySession := make(map[string][]*assignment)
	for _, account := range d.Accounts() {
		for _, target := range d.TargetsFor(account) {
			bySession[account] = append(bySession[account], &assignment{target: target, assignedAt: now})
		}
	}
	s.assignments[sessionID] = bySession
	return nil
}

func (s *MemoryStore) HasDistribution(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, targets := range s.assignments[sessionID] {
		if len(targets) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetTargetsForAccount(_ context.Context, account, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, a := range s.assignments[sessionID][account] {
		if !a.processed {
			out = append(out, a.target)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkTargetProcessed(_ context.Context, sessionID, account, target string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.assignments[sessionID][account] {
		if a.target == target {
			a.processed = true
			a.processedAt = s.now()
			a.success = success
		}
	}
	return nil
}

func (s *MemoryStore) RecordOutcome(_ context.Context, account string, outcome actions.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome.At.IsZero() {
		outcome.At = s.now()
	}
	s.actions = append(s.actions, actionRow{account: account, outcome: outcome})
	return nil
}

// Outcomes returns the recorded outcomes of account in insertion order.
func (s *MemoryStore) Outcomes(account string) []actions.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []actions.Outcome
	for _, row := range s.actions {
		if row.account == account {
			out = append(out, row.outcome)
		}
	}
	return out
}

func (s *MemoryStore) CountActionsWithin(_ context.Context, account string, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.actions {
		if row.account != account || !row.outcome.Success {
			continue
		}
		if !row.outcome.At.Before(from) && row.outcome.At.Before(to) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TodayActions(_ context.Context, account string, now time.Time) (map[actions.Category]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := startOfDay(now)
	out := make(map[actions.Category]int)
	for _, row := range s.actions {
		if row.account == account && row.outcome.Success && !row.outcome.At.Before(start) {
			out[row.outcome.Category]++
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, rec)
	return nil
}

func (s *MemoryStore) Sessions(_ context.Context, sessionID string) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SessionRecord
	for _, rec := range s.sessions {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) CleanupOldData(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	kept := s.actions[:0]
	for _, row := range s.actions {
		if row.outcome.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.actions = kept

	for _, byAccount := range s.assignments {
		for account, list := range byAccount {
			keptAssignments := list[:0]
			for _, a := range list {
				if a.processed && a.processedAt.Before(before) {
					removed++
					continue
				}
				keptAssignments = append(keptAssignments, a)
			}
			byAccount[account] = keptAssignments
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
