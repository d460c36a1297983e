package distribution

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	d, err := newTestDistributor().Distribute([]string{"a", "b", "c"}, []string{"Y", "X"}, RoundRobin, 1)
	require.NoError(t, err)

	now := time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)
	snap := NewSnapshot("session-1", d, SnapshotConfig{Strategy: RoundRobin, MinTargetsPerAccount: 1}, now)

	path, err := SaveSnapshot(dir, snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "target_distribution_20240305_143015.json"), path)

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "session-1", loaded.SessionID)
	assert.True(t, now.Equal(loaded.Timestamp))
	assert.Equal(t, RoundRobin, loaded.Config.Strategy)
	assert.Equal(t, 3, loaded.Stats.TotalTargets)

	restored := loaded.Distribution()
	assert.Equal(t, []string{"Y", "X"}, restored.Accounts())
	assert.Equal(t, []string{"a", "c"}, restored.TargetsFor("Y"))
	assert.Equal(t, []string{"b"}, restored.TargetsFor("X"))
}

func TestLoadSnapshot_Errors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
