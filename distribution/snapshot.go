package distribution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotTimeFormat = "20060102_150405"

// SnapshotConfig records the settings a distribution was computed with.
type SnapshotConfig struct {
	Strategy             Strategy `json:"strategy"`
	MinTargetsPerAccount int      `json:"min_targets_per_account"`
}

// Snapshot is the on-disk form of a session's distribution.
type Snapshot struct {
	SessionID     string              `json:"session_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Config        SnapshotConfig      `json:"config"`
	Stats         Stats               `json:"stats"`
	Accounts      []string            `json:"accounts"`
	Distributions map[string][]string `json:"distributions"`
}

// NewSnapshot captures d for persistence.
func NewSnapshot(sessionID string, d Distribution, cfg SnapshotConfig, now time.Time) Snapshot {
	return Snapshot{
		SessionID:     sessionID,
		Timestamp:     now,
		Config:        cfg,
		Stats:         d.Stats(),
		Accounts:      d.Accounts(),
		Distributions: d.Map(),
	}
}

// Distribution rebuilds the Distribution held by the snapshot.
func (s Snapshot) Distribution() Distribution {
	return FromMap(s.Distributions, s.Accounts)
}

// SaveSnapshot writes snap to dir as target_distribution_YYYYmmdd_HHMMSS.json
// and returns the file path. The directory is created if needed.
func SaveSnapshot(dir string, snap Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(dir, "target_distribution_"+snap.Timestamp.Format(snapshotTimeFormat)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if snap.Distributions == nil {
		snap.Distributions = map[string][]string{}
	}
	return snap, nil
}
