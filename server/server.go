// Package server provides the HTTP control plane for the instabot automation.
//
// The server exposes a REST API to start sessions, stop individual accounts
// and inspect live progress and history.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - GET /api/status - Consolidated status (session, next scheduled run, today's actions)
//   - GET /api/server - Build and instance metadata
//   - GET /config - Returns current configuration as YAML (or ?format=json), secrets redacted
//   - POST /reload - Reloads configuration from disk
//   - POST /run - Starts a session
//   - GET /run/status - Current or last session with per-account progress
//   - POST /stop - Stops one account of the running session
//   - GET /history - Returns history of completed sessions (?account=, ?limit=)
//   - GET /history/logs?id= - Per-account results and logs of one session
//   - GET /history/snapshot?id= - Distribution snapshot saved for a session
//   - POST /history/reload - Re-reads session history from disk
//   - GET /messages - Lists the reply and direct-message pool
//   - POST /messages - Adds a message to the pool
//   - DELETE /messages - Removes a message from the pool
//   - GET /metrics - Prometheus metrics
//
// # Architecture
//
// The configuration is swapped atomically on reload. Every session is
// assembled from the configuration current when it starts, so changes take
// effect on the next session without interrupting a running one. Cron
// schedules and storage paths are read once at startup.
//
// # Example
//
//	srv, err := server.New("/etc/instabot/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"io/fs"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/buildinfo"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/messages"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/metrics"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/orchestrator"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/cron"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/handlers"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/types"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/store"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultMaxHistory      = 100
)

// Server is the HTTP server for the instabot control plane.
type Server struct {
	addr        string
	configPath  string
	cronSpec    string
	logger      *slog.Logger
	logCloser   *logging.Logger
	config      atomic.Pointer[config.Config]
	httpServer  *http.Server
	stats       store.StatsStore
	history     *runner.DiskStore
	messages    *messages.Pool
	registry    *metrics.ScrapeRegistry
	factory     orchestrator.ExecutorFactory
	runner      *runner.Runner
	cronManager *cron.CronTriggerManager
	startedAt   time.Time
	hostname    string
}

// Option configures a Server.
type Option func(*Server) error

// WithCron replaces the configured schedules with a trigger spec in the form
// "account1,account2:0 9 * * *;*:0 18 * * *".
func WithCron(spec string) Option {
	return func(s *Server) error {
		s.cronSpec = spec
		return nil
	}
}

// WithListenAddr overrides the configured listen address.
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithStatsStore replaces the SQLite store opened from the configuration.
func WithStatsStore(st store.StatsStore) Option {
	return func(s *Server) error {
		s.stats = st
		return nil
	}
}

// WithExecutorFactory replaces the browser executors.
func WithExecutorFactory(f orchestrator.ExecutorFactory) Option {
	return func(s *Server) error {
		s.factory = f
		return nil
	}
}

// New creates a new Server with the given config path and options.
// It loads the configuration and initializes all dependencies.
func New(configPath string, opts ...Option) (*Server, error) {
	s := &Server{
		configPath: configPath,
		startedAt:  time.Now(),
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	cfg := s.Config()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	s.logger = logger.Logger
	s.logCloser = logger
	s.addr = cfg.Server.Listener.Addr

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.close()
			return nil, err
		}
	}

	if err := s.init(cfg); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(cfg *config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if s.stats == nil {
		st, err := store.NewSQLiteStore(cfg.Storage.Database)
		if err != nil {
			return fmt.Errorf("opening stats store: %w", err)
		}
		s.stats = st
	}
	if cfg.Storage.Retention > 0 {
		n, err := s.stats.CleanupOldData(context.Background(), time.Now().Add(-cfg.Storage.Retention))
		if err != nil {
			s.logger.Warn("failed to clean up old data", "error", err)
		} else if n > 0 {
			s.logger.Info("cleaned up old data", "rows", n)
		}
	}

	if err := s.initMessages(cfg.Storage.MessagesFile); err != nil {
		return err
	}

	history, err := runner.NewDiskStore(cfg.Storage.HistoryDir, defaultMaxHistory, s.logger)
	if err != nil {
		return err
	}
	s.history = history

	if s.registry, err = metrics.NewScrapeRegistry(); err != nil {
		return err
	}
	automationMetrics, err := metrics.NewAutomation(s.registry)
	if err != nil {
		return err
	}

	runnerOpts := []runner.Option{
		runner.WithStateStore(history),
		runner.WithStatsStore(s.stats),
		runner.WithMetrics(automationMetrics),
	}
	if s.factory != nil {
		runnerOpts = append(runnerOpts, runner.WithExecutorFactory(s.factory))
	}
	s.runner = runner.New(s.logger, s, runnerOpts...)

	s.hostname, err = os.Hostname()
	if err != nil {
		s.logger.Warn("failed to get hostname", "error", err)
	}

	return s.initCron(cfg)
}

// initMessages loads the message pool. A missing file is created with the
// default messages so it can be edited in place.
func (s *Server) initMessages(path string) error {
	_, statErr := os.Stat(path)
	pool, err := messages.Load(path)
	if err != nil {
		return err
	}
	if errors.Is(statErr, fs.ErrNotExist) {
		if err := pool.Save(); err != nil {
			return err
		}
		s.logger.Info("wrote default messages", "path", path, "count", pool.Len())
	}
	s.messages = pool
	return nil
}

func (s *Server) initCron(cfg *config.Config) error {
	known := make(map[string]bool)
	for _, a := range cfg.EnabledAccounts() {
		known[a.Username] = true
	}

	var (
		specs []cron.TriggerSpec
		err   error
	)
	if s.cronSpec != "" {
		specs, err = cron.ParseTriggerSpecs(s.cronSpec, known)
	} else {
		specs, err = cron.FromConfig(cfg.Server.Cron, known)
	}
	if err != nil {
		return fmt.Errorf("creating cron triggers: %w", err)
	}
	if len(specs) == 0 {
		return nil
	}

	s.cronManager, err = cron.NewCronTriggerManager(specs, s.runner, s.logger)
	return err
}

// Reload reads the config from disk and swaps it in for the next session.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}

	s.config.Store(&cfg)
	if s.logger != nil {
		s.logger.Info("configuration loaded", "config_path", s.configPath)
	}
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.config.Load()
}

// NextRun returns the next scheduled session time, or nil if no cron is configured.
func (s *Server) NextRun() *time.Time {
	if s.cronManager == nil {
		return nil
	}
	next := s.cronManager.NextRun()
	return &next
}

// Status returns the current session status by delegating to the runner.
func (s *Server) Status() runner.RunStatus {
	return s.runner.Status()
}

// TodayActions counts the successful actions of every enabled account since
// local midnight, by category.
func (s *Server) TodayActions(ctx context.Context) (map[string]map[string]int, error) {
	now := time.Now()
	out := make(map[string]map[string]int)
	for _, a := range s.Config().EnabledAccounts() {
		counts, err := s.stats.TodayActions(ctx, a.Username, now)
		if err != nil {
			return nil, fmt.Errorf("counting actions of %s: %w", a.Username, err)
		}
		byName := make(map[string]int, len(counts))
		for c, n := range counts {
			byName[c.String()] = n
		}
		out[a.Username] = byName
	}
	return out, nil
}

// Properties describes the running instance.
func (s *Server) Properties() types.ServerProperties {
	props := types.ServerProperties{
		Build:      buildinfo.Get(),
		StartedAt:  s.startedAt,
		Hostname:   s.hostname,
		ListenAddr: s.addr,
		ConfigPath: s.configPath,
	}
	for _, a := range s.Config().EnabledAccounts() {
		props.Accounts = append(props.Accounts, a.Username)
	}
	if s.cronManager != nil {
		for _, spec := range s.cronManager.Specs() {
			props.Schedules = append(props.Schedules, spec.CronSpec)
		}
	}
	return props
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done: the running
// session is cancelled and recorded before the stores are closed.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	if s.cronManager != nil {
		s.logger.Info("starting cron triggers", "next_run", s.cronManager.NextRun())
		s.cronManager.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"version", buildinfo.Get().Version,
			"config_path", s.configPath,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) close() {
	if s.runner != nil {
		s.runner.Close()
	}
	if s.stats != nil {
		if err := s.stats.Close(); err != nil {
			s.logger.Warn("failed to close stats store", "error", err)
		}
	}
	if s.logCloser != nil {
		s.logCloser.Close()
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s.logger, s))
	mux.Handle("GET /api/server", handlers.NewServerInfoHandler(s))
	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger, "configuration", s))
	mux.Handle("POST /run", handlers.NewRunHandler(s.runner))
	mux.Handle("GET /run/status", handlers.NewRunStatusHandler(s.runner))
	mux.Handle("POST /stop", handlers.NewStopHandler(s.logger, s.runner))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.runner))
	mux.Handle("GET /history/logs", handlers.NewHistoryLogsHandler(s.runner))
	mux.Handle("GET /history/snapshot", handlers.NewHistorySnapshotHandler(s.runner))
	mux.Handle("POST /history/reload", handlers.NewReloadHandler(s.logger, "session history", s.history))
	messagesHandler := handlers.NewMessagesHandler(s.logger, s.messages)
	mux.Handle("GET /messages", messagesHandler)
	mux.Handle("POST /messages", messagesHandler)
	mux.Handle("DELETE /messages", messagesHandler)
	mux.Handle("GET /metrics", s.registry.Handler())

	return mux
}
