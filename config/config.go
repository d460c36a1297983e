package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/browser"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/orchestrator"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/security"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/validate"
)

// redactedValue replaces secrets in Redacted.
const redactedValue = "REDACTED"

const (
	// Default distribution settings
	defaultStrategy             = distribution.RoundRobin
	defaultMinTargetsPerAccount = 1

	// Default delays
	defaultStorySettle  = 5 * time.Second
	defaultAccountStart = 2 * time.Second
	defaultBatchDelay   = 300 * time.Second

	defaultPostsCount = 2

	// Default parallelism
	defaultMaxParallelAccounts = 10
	defaultBatchSize           = 10
	defaultOverflow            = orchestrator.OverflowQueue

	defaultSessionTimeout = 2 * time.Hour

	// Default storage settings
	defaultDatabase     = "data/instabot.db"
	defaultReportsDir   = "data/reports"
	defaultHistoryDir   = "data/history"
	defaultMessagesFile = "data/messages.txt"
	defaultRetention    = 30 * 24 * time.Hour

	// Default directories
	defaultLogsDir     = "logs"
	defaultSessionsDir = "sessions"
	defaultTempDir     = "temp"
	defaultDataDir     = "data"

	// Default monitoring settings
	defaultMetricsPrefix = "instabot"
	defaultJobName       = "instabot"

	defaultListenAddr = ":8080"
)

var (
	defaultBetweenTargets      = clock.Range{Min: 30 * time.Second, Max: 60 * time.Second}
	defaultBetweenStages       = clock.Range{Min: 15 * time.Second, Max: 25 * time.Second}
	defaultBeforeDirectMessage = clock.Range{Min: 10 * time.Second, Max: 15 * time.Second}
)

// Config represents the complete application configuration
type Config struct {
	Accounts     []AccountConfig    `yaml:"accounts"`
	Targets      TargetsConfig      `yaml:"targets"`
	Distribution DistributionConfig `yaml:"distribution"`
	Delays       DelaysConfig       `yaml:"delays"`
	Actions      actions.Flags      `yaml:"actions"`
	Parallel     ParallelConfig     `yaml:"parallel"`
	Security     SecurityConfig     `yaml:"security"`
	Browser      browser.Config     `yaml:"browser"`
	Storage      StorageConfig      `yaml:"storage"`
	Directories  DirectoriesConfig  `yaml:"directories"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      logging.Config     `yaml:"logging"`
	Server       ServerConfig       `yaml:"server"`
}

// AccountConfig is one operating account.
type AccountConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Proxy is ip:port or ip:port:user:pass.
	Proxy string `yaml:"proxy"`
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the account takes part in sessions.
func (a AccountConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// TargetsConfig controls where targets come from and how they are normalized.
type TargetsConfig struct {
	// File holds targets separated by commas, semicolons, newlines or spaces.
	File          string `yaml:"file"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

// Load reads and parses the targets file. Invalid entries are returned
// alongside the valid targets.
func (t TargetsConfig) Load() ([]string, []*validate.Error, error) {
	data, err := os.ReadFile(t.File)
	if err != nil {
		return nil, nil, fmt.Errorf("reading targets: %w", err)
	}
	names, problems := validate.ParseList(string(data), validate.Options{CaseSensitive: t.CaseSensitive})
	return names, problems, nil
}

// DistributionConfig selects how targets are split across accounts.
type DistributionConfig struct {
	Strategy             distribution.Strategy `yaml:"strategy"`
	MinTargetsPerAccount int                   `yaml:"min_targets_per_account"`
}

// DelaysConfig holds the pauses of an account run plus the orchestrator's
// start offsets.
type DelaysConfig struct {
	runner.Delays `yaml:",inline"`
	// AccountStart staggers workers: worker i starts after i x AccountStart.
	AccountStart time.Duration `yaml:"account_start"`
	// BatchDelay is the pause between waves of queued accounts.
	BatchDelay time.Duration `yaml:"batch_delay"`
}

// ParallelConfig bounds concurrently running accounts.
type ParallelConfig struct {
	MaxParallelAccounts int                   `yaml:"max_parallel_accounts"`
	Overflow            orchestrator.Overflow `yaml:"overflow"`
	BatchSize           int                   `yaml:"batch_size"`
}

// SecurityConfig holds the action limits and the per-account session timeout.
type SecurityConfig struct {
	security.Limits `yaml:",inline"`
	SessionTimeout  time.Duration `yaml:"session_timeout"`
}

// StorageConfig locates persistent data.
type StorageConfig struct {
	Database     string        `yaml:"database"`
	ReportsDir   string        `yaml:"reports_dir"`
	HistoryDir   string        `yaml:"history_dir"`
	MessagesFile string        `yaml:"messages_file"`
	Retention    time.Duration `yaml:"retention"`
}

// DirectoriesConfig lists the working directories created at startup.
type DirectoriesConfig struct {
	Logs     string `yaml:"logs"`
	Sessions string `yaml:"sessions"`
	Temp     string `yaml:"temp"`
	Data     string `yaml:"data"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	// VictoriaMetricsURL switches the CLI to push mode when set.
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// ServerConfig holds the control plane settings.
type ServerConfig struct {
	Listener ListenerConfig `yaml:"listener"`
	Cron     []CronTrigger  `yaml:"cron"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
}

// CronTrigger starts a session on a schedule.
type CronTrigger struct {
	// The cron spec to start the session at
	Schedule string `yaml:"schedule"`
	// Accounts limits the session to these accounts. Empty means every enabled account.
	Accounts []string `yaml:"accounts"`
}

// DefaultActions are the stages run for every target unless configured otherwise.
func DefaultActions() actions.Flags {
	return actions.Flags{
		LikePosts:    true,
		LikeStories:  true,
		ReplyStories: true,
		PostsCount:   defaultPostsCount,
	}
}

// Default returns a configuration with every default applied.
func Default() Config {
	cfg := seeded()
	cfg.SetDefaults()
	return cfg
}

// seeded holds the defaults of fields where an explicit zero or false is a
// meaningful setting. They are set before decoding so only keys present in
// the file override them.
func seeded() Config {
	return Config{
		Actions:      DefaultActions(),
		Distribution: DistributionConfig{MinTargetsPerAccount: defaultMinTargetsPerAccount},
		Security: SecurityConfig{
			Limits:         security.DefaultLimits(),
			SessionTimeout: defaultSessionTimeout,
		},
	}
}

// EnabledAccounts returns the accounts that take part in sessions.
func (c *Config) EnabledAccounts() []AccountConfig {
	var out []AccountConfig
	for _, a := range c.Accounts {
		if a.IsEnabled() {
			out = append(out, a)
		}
	}
	return out
}

// Account returns the configured account named username.
func (c *Config) Account(username string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.Username == username {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// Redacted returns a copy with account passwords and proxy credentials masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Accounts = make([]AccountConfig, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.Password != "" {
			a.Password = redactedValue
		}
		if parts := strings.Split(a.Proxy, ":"); len(parts) == 4 {
			a.Proxy = strings.Join([]string{parts[0], parts[1], redactedValue, redactedValue}, ":")
		}
		out.Accounts[i] = a
	}
	return out
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if len(c.EnabledAccounts()) == 0 {
		errs = append(errs, errors.New("at least one enabled account is required"))
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.Username == "" {
			errs = append(errs, fmt.Errorf("account %d: username is required", i+1))
			continue
		}
		if seen[a.Username] {
			errs = append(errs, fmt.Errorf("account %s: duplicate username", a.Username))
		}
		seen[a.Username] = true
		if a.Password == "" {
			errs = append(errs, fmt.Errorf("account %s: password is required", a.Username))
		}
		if _, err := validate.ValidateProxy(a.Proxy); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", a.Username, err))
		}
	}

	if _, err := distribution.ParseStrategy(string(c.Distribution.Strategy)); err != nil {
		errs = append(errs, err)
	}
	if c.Distribution.MinTargetsPerAccount < 0 {
		errs = append(errs, errors.New("min_targets_per_account must not be negative"))
	}

	for name, r := range map[string]clock.Range{
		"between_targets":       c.Delays.BetweenTargets,
		"between_stages":        c.Delays.BetweenStages,
		"before_direct_message": c.Delays.BeforeDirectMessage,
	} {
		if !r.Valid() {
			errs = append(errs, fmt.Errorf("delay %s: min must be non-negative and not above max", name))
		}
	}
	if c.Delays.StorySettle < 0 || c.Delays.AccountStart < 0 || c.Delays.BatchDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}

	if c.Actions.PostsCount < 1 {
		errs = append(errs, errors.New("posts_count must be at least 1"))
	}

	if c.Parallel.MaxParallelAccounts < 1 {
		errs = append(errs, errors.New("max_parallel_accounts must be at least 1"))
	}
	if c.Parallel.BatchSize < 1 {
		errs = append(errs, errors.New("batch_size must be at least 1"))
	}
	if _, err := orchestrator.ParseOverflow(string(c.Parallel.Overflow)); err != nil {
		errs = append(errs, err)
	}

	if c.Security.MaxPerHour < 0 || c.Security.MaxPerDay < 0 || c.Security.ActionsPerMinute < 0 {
		errs = append(errs, errors.New("security limits must not be negative"))
	}
	if c.Security.SessionTimeout < 0 {
		errs = append(errs, errors.New("session timeout must not be negative"))
	}
	if c.Browser.PageTimeout <= 0 {
		errs = append(errs, errors.New("browser page timeout must be positive"))
	}
	if c.Storage.Retention < 0 {
		errs = append(errs, errors.New("storage retention must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("log format must be json or text, got %q", c.Logging.Format))
	}

	for i, t := range c.Server.Cron {
		if t.Schedule == "" {
			errs = append(errs, fmt.Errorf("cron trigger %d: schedule is required", i+1))
		}
		for _, name := range t.Accounts {
			if !seen[name] {
				errs = append(errs, fmt.Errorf("cron trigger %d: unknown account %s", i+1, name))
			}
		}
	}

	return errors.Join(errs...)
}

// SetDefaults fills optional fields left empty. The minimum per account, the
// security limits and the session timeout are not touched: zero disables them,
// and their defaults come from Default or LoadConfig.
func (c *Config) SetDefaults() {
	if c.Distribution.Strategy == "" {
		c.Distribution.Strategy = defaultStrategy
	}

	if c.Delays.BetweenTargets == (clock.Range{}) {
		c.Delays.BetweenTargets = defaultBetweenTargets
	}
	if c.Delays.BetweenStages == (clock.Range{}) {
		c.Delays.BetweenStages = defaultBetweenStages
	}
	if c.Delays.StorySettle == 0 {
		c.Delays.StorySettle = defaultStorySettle
	}
	if c.Delays.BeforeDirectMessage == (clock.Range{}) {
		c.Delays.BeforeDirectMessage = defaultBeforeDirectMessage
	}
	if c.Delays.AccountStart == 0 {
		c.Delays.AccountStart = defaultAccountStart
	}
	if c.Delays.BatchDelay == 0 {
		c.Delays.BatchDelay = defaultBatchDelay
	}

	if c.Actions.PostsCount == 0 {
		c.Actions.PostsCount = defaultPostsCount
	}

	if c.Parallel.MaxParallelAccounts == 0 {
		c.Parallel.MaxParallelAccounts = defaultMaxParallelAccounts
	}
	if c.Parallel.BatchSize == 0 {
		c.Parallel.BatchSize = defaultBatchSize
	}
	if c.Parallel.Overflow == "" {
		c.Parallel.Overflow = defaultOverflow
	}

	c.Browser.SetDefaults()

	if c.Storage.Database == "" {
		c.Storage.Database = defaultDatabase
	}
	if c.Storage.ReportsDir == "" {
		c.Storage.ReportsDir = defaultReportsDir
	}
	if c.Storage.HistoryDir == "" {
		c.Storage.HistoryDir = defaultHistoryDir
	}
	if c.Storage.MessagesFile == "" {
		c.Storage.MessagesFile = defaultMessagesFile
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = defaultRetention
	}

	if c.Directories.Logs == "" {
		c.Directories.Logs = defaultLogsDir
	}
	if c.Directories.Sessions == "" {
		c.Directories.Sessions = defaultSessionsDir
	}
	if c.Directories.Temp == "" {
		c.Directories.Temp = defaultTempDir
	}
	if c.Directories.Data == "" {
		c.Directories.Data = defaultDataDir
	}

	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Server.Listener.Addr == "" {
		c.Server.Listener.Addr = defaultListenAddr
	}
}

// EnsureDirectories creates the working directories and the parents of the
// configured storage paths.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Directories.Logs,
		c.Directories.Sessions,
		c.Directories.Temp,
		c.Directories.Data,
		c.Storage.ReportsDir,
		c.Storage.HistoryDir,
		filepath.Dir(c.Storage.Database),
		filepath.Dir(c.Storage.MessagesFile),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct.
// Action flags, limits, the minimum per account and the session timeout start
// from their defaults, so only keys present in the file change them.
func LoadConfig(path string) (Config, error) {
	cfg := seeded()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode YAML config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
