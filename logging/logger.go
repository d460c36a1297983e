// Package logging builds the slog loggers used by the bot and captures the
// records of each account run so they can be served back with the run history.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "text"})
//	logger.Info("account finished", "account", "acc1", "success_rate", 75.0)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var (
	levels  = []string{"debug", "info", "warn", "error"}
	formats = []string{"json", "text"}
)

// Config holds the logger configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`
	// Format is json or text. Defaults to text.
	Format string `yaml:"format"`
	// Output is stdout, stderr or a file path. Defaults to stderr.
	Output string `yaml:"output"`
	// File, when set, receives a copy of every record in addition to Output.
	File      string `yaml:"file"`
	AddSource bool   `yaml:"add_source"`
}

// Logger is a slog.Logger that owns its output files.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// New creates a logger for cfg.
func New(cfg Config) (*Logger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	cfg.setDefaults()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{}
	out, err := l.open(cfg.Output)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		file, err := l.open(cfg.File)
		if err != nil {
			l.Close()
			return nil, err
		}
		out = io.MultiWriter(out, file)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	l.Logger = slog.New(handler)
	return l, nil
}

// Close closes any log files opened by New.
func (l *Logger) Close() error {
	var errs []error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("closing log files: %v", errs)
	}
	return nil
}

func (l *Logger) open(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", output, err)
	}
	l.closers = append(l.closers, f)
	return f, nil
}

func (cfg *Config) validate() error {
	if cfg.Level != "" && !slices.Contains(levels, strings.ToLower(cfg.Level)) {
		return fmt.Errorf("level must be one of: %s", strings.Join(levels, ", "))
	}
	if cfg.Format != "" && !slices.Contains(formats, cfg.Format) {
		return fmt.Errorf("format must be one of: %s", strings.Join(formats, ", "))
	}
	return nil
}

func (cfg *Config) setDefaults() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
