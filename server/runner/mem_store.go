package runner

import (
	"slices"
	"sync"
)

// MemoryStore keeps the most recent sessions in memory. It is the runner's
// default when no DiskStore is configured.
type MemoryStore struct {
	mu       sync.Mutex
	maxCount int
	records  []runRecord // most recent first
}

// NewMemoryStore creates a store keeping at most maxCount sessions.
// Zero or less keeps every session.
func NewMemoryStore(maxCount int) *MemoryStore {
	return &MemoryStore{maxCount: maxCount}
}

// History returns the stored sessions, most recent first.
func (s *MemoryStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunSummary, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.RunSummary
	}
	return out
}

// Logs returns a copy of the account executions of session id, or nil when
// the session is unknown.
func (s *MemoryStore) Logs(id string) []AccountExecution {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.records, func(rec runRecord) bool { return rec.ID == id })
	if i < 0 {
		return nil
	}
	return slices.Clone(s.records[i].Executions)
}

// Save records a finished session. A session saved again under the same id
// (a resumed session) replaces the earlier record.
func (s *MemoryStore) Save(summary RunSummary, executions []AccountExecution) error {
	if summary.ID == "" {
		summary.ID = summary.CalculateID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = slices.DeleteFunc(s.records, func(rec runRecord) bool { return rec.ID == summary.ID })
	s.records = slices.Insert(s.records, 0, runRecord{RunSummary: summary, Executions: executions})
	if s.maxCount > 0 && len(s.records) > s.maxCount {
		s.records = s.records[:s.maxCount]
	}
	return nil
}
