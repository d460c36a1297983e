package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "json to stdout", cfg: Config{Level: "debug", Format: "json", Output: "stdout"}},
		{name: "upper case level", cfg: Config{Level: "WARN"}},
		{name: "bad level", cfg: Config{Level: "verbose"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger.Logger)
			assert.NoError(t, logger.Close())
		})
	}
}

func TestNew_FileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")

	logger, err := New(Config{Format: "json", Output: "stderr", File: path})
	require.NoError(t, err)
	logger.Info("session started", "session_id", "abc")
	logger.Debug("hidden")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"session started"`)
	assert.Contains(t, string(data), `"session_id":"abc"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
