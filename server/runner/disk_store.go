package runner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
)

// DiskStore keeps the latest sessions in memory and mirrors each one to a
// JSON file named after its start time.
type DiskStore struct {
	dir        string
	logger     *slog.Logger
	maxCount   int
	summaries  []RunSummary                  // protected by mu
	executions map[string][]AccountExecution // protected by mu
	mu         sync.Mutex
}

// NewDiskStore opens the history kept in dir, creating dir when missing. A
// history that cannot be read is logged and the store starts empty.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:        dir,
		logger:     logger,
		maxCount:   maxCount,
		summaries:  make([]RunSummary, 0),
		executions: make(map[string][]AccountExecution),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory %s: %w", dir, err)
	}

	summaries, executions, err := s.load()
	if err != nil {
		logger.Warn("session history unavailable, starting empty", "dir", dir, "error", err)
	} else {
		s.summaries = summaries
		s.executions = executions
	}

	return s, nil
}

// History returns the stored sessions, newest first.
func (s *DiskStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, len(s.summaries))
	copy(result, s.summaries)
	return result
}

// Logs returns the per-account executions of session id, or nil if unknown.
func (s *DiskStore) Logs(id string) []AccountExecution {
	s.mu.Lock()
	defer s.mu.Unlock()

	if executions, ok := s.executions[id]; ok {
		result := make([]AccountExecution, len(executions))
		copy(result, executions)
		return result
	}
	return nil
}

// Save writes the session file and makes it the newest entry. Entries beyond
// maxCount lose their file too.
func (s *DiskStore) Save(summary RunSummary, executions []AccountExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if summary.StartedAt == nil {
		return fmt.Errorf("session %q has no start time", summary.ID)
	}
	if summary.ID == "" {
		summary.ID = summary.CalculateID()
	}

	run := runRecord{
		RunSummary: summary,
		Executions: executions,
	}

	filename := summary.StartedAt.Format(historyIDFormat) + ".json"
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", summary.ID, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	// A resumed session keeps its id; its earlier record is superseded.
	if i := slices.IndexFunc(s.summaries, func(r RunSummary) bool { return r.ID == summary.ID }); i >= 0 {
		s.removeFile(s.summaries[i], path)
		s.summaries = slices.Delete(s.summaries, i, i+1)
	}
	s.summaries = append([]RunSummary{summary}, s.summaries...)
	s.executions[summary.ID] = executions

	if len(s.summaries) > s.maxCount {
		oldest := s.summaries[len(s.summaries)-1]
		delete(s.executions, oldest.ID)
		s.summaries = s.summaries[:s.maxCount]
		s.removeFile(oldest, path)
	}

	s.logger.Debug("session history written", "id", summary.ID, "path", path)
	return nil
}

// removeFile drops the file behind summary; keep is the file just written.
func (s *DiskStore) removeFile(summary RunSummary, keep string) {
	if summary.StartedAt == nil {
		return
	}
	stale := filepath.Join(s.dir, summary.StartedAt.Format(historyIDFormat)+".json")
	if stale == keep {
		return
	}
	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("stale history file left behind", "path", stale, "error", err)
	}
}

// Reload swaps the in-memory history for what is on disk.
func (s *DiskStore) Reload() error {
	summaries, executions, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = summaries
	s.executions = executions

	return nil
}

func (s *DiskStore) load() ([]RunSummary, map[string][]AccountExecution, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}

	runs := make([]runRecord, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable history file", "file", path, "error", err)
			continue
		}

		var run runRecord
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("skipping malformed history file", "file", path, "error", err)
			continue
		}

		if run.ID == "" {
			run.ID = run.CalculateID()
		}

		runs = append(runs, run)
	}

	// newest first; a resumed session keeps only its latest record
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt == nil {
			return false
		}
		if runs[j].StartedAt == nil {
			return true
		}
		return runs[i].StartedAt.After(*runs[j].StartedAt)
	})

	seen := make(map[string]bool, len(runs))
	runs = slices.DeleteFunc(runs, func(run runRecord) bool {
		dup := seen[run.ID]
		seen[run.ID] = true
		return dup
	})
	if len(runs) > s.maxCount {
		runs = runs[:s.maxCount]
	}

	summaries := make([]RunSummary, len(runs))
	executions := make(map[string][]AccountExecution, len(runs))
	for i, run := range runs {
		summaries[i] = run.RunSummary
		executions[run.ID] = run.Executions
	}

	s.logger.Info("session history loaded", "dir", s.dir, "sessions", len(summaries))

	return summaries, executions, nil
}
