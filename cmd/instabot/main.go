package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/buildinfo"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/logging"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/metrics"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/orchestrator"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/store"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/workflows/automation"
)

type Args struct {
	ConfigPath  string
	Targets     string
	TargetsFile string
	Accounts    string
	Resume      string
	ShowVersion bool
	Validate    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()

	if args.ShowVersion {
		showVersion()
		return nil
	}

	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if args.Validate {
		fmt.Printf("Configuration validation successful: %s\n", args.ConfigPath)
		return nil
	}

	if args.TargetsFile != "" {
		cfg.Targets.File = args.TargetsFile
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	props := buildinfo.Get()
	logger.Info("instabot started",
		"version", props.Version,
		"build_time", props.BuildTime,
		"git_commit", props.GitCommit,
		"config_path", args.ConfigPath,
	)

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}

	// Push-based metrics for one-shot runs
	registry := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.VictoriaMetricsURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
	})
	automationMetrics, err := metrics.NewAutomation(registry)
	if err != nil {
		return err
	}

	stats, err := store.NewSQLiteStore(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("failed to open stats store: %w", err)
	}
	defer stats.Close()

	wf, err := automation.NewWorkflow(&cfg, logger.Logger, automation.Request{
		Targets:         splitList(args.Targets),
		Accounts:        splitList(args.Accounts),
		ResumeSessionID: args.Resume,
	},
		automation.WithStore(stats),
		automation.WithMetrics(automationMetrics))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, runErr := wf.Execute(ctx)
	printSummary(os.Stdout, summary)

	if cfg.Monitoring.VictoriaMetricsURL != "" {
		if err := registry.Flush(context.Background()); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}

	if cfg.Storage.Retention > 0 {
		if n, err := stats.CleanupOldData(context.Background(), time.Now().Add(-cfg.Storage.Retention)); err != nil {
			logger.Warn("failed to clean up old data", "error", err)
		} else if n > 0 {
			logger.Info("cleaned up old data", "rows", n)
		}
	}

	if runErr != nil {
		return fmt.Errorf("session failed: %w", runErr)
	}
	if ctx.Err() != nil {
		return errors.New("session interrupted; resume with -resume " + summary.SessionID)
	}
	return nil
}

// printSummary writes one row per account of the session, including accounts
// that never produced a report, followed by their failed and skipped targets.
func printSummary(w io.Writer, s orchestrator.Summary) {
	if s.SessionID == "" {
		return
	}
	fmt.Fprintf(w, "\nSession %s\n", s.SessionID)
	fmt.Fprintf(w, "Targets: %d  Succeeded: %d  Failed: %d  Success rate: %.1f%%\n",
		s.TotalTargets, s.Succeeded, s.Failed, s.SuccessRate)
	if s.SnapshotPath != "" {
		fmt.Fprintf(w, "Distribution snapshot: %s\n", s.SnapshotPath)
	}

	reports := make(map[string]runner.RunReport, len(s.Reports))
	for _, r := range s.Reports {
		reports[r.Account] = r
	}
	accounts := slices.Sorted(maps.Keys(s.States))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nACCOUNT\tSTATE\tDONE\tSUCCEEDED\tRATE\tRATING\tERROR")
	for _, a := range accounts {
		r, ok := reports[a]
		if !ok {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t%s\n", a, s.States[a], s.Errors[a])
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%.1f%%\t%s\t%s\n",
			a, s.States[a], r.Processed(), r.TotalTargets,
			r.Succeeded, r.SuccessRate, r.Rating(), s.Errors[a])
	}
	tw.Flush()

	for _, a := range accounts {
		r := reports[a]
		if len(r.FailedTargets) > 0 {
			fmt.Fprintf(w, "%s failed: %s\n", a, strings.Join(r.FailedTargets, ", "))
		}
		if len(r.Skipped) > 0 {
			fmt.Fprintf(w, "%s skipped: %s\n", a, strings.Join(r.Skipped, ", "))
		}
	}
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n'
	})
}

func showVersion() {
	fmt.Printf("instabot %s\n", buildinfo.Get())
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	targets := flag.String("targets", "", "Comma separated usernames to process (default: targets file from config)")
	targetsFile := flag.String("targets-file", "", "File with one username per line, overrides the config")
	accounts := flag.String("accounts", "", "Comma separated accounts to use (default: all enabled)")
	resume := flag.String("resume", "", "Resume the unprocessed targets of a session id")
	showVersion := flag.Bool("version", false, "Show version information")
	versionShort := flag.Bool("v", false, "Show version information (shorthand)")
	validate := flag.Bool("validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nInstagram engagement automation\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config config.yaml --targets alice,bob\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml --accounts bot_one --targets-file targets.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml --resume 6f1c2a4e-...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config config.yaml --validate\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath:  path,
		Targets:     *targets,
		TargetsFile: *targetsFile,
		Accounts:    *accounts,
		Resume:      *resume,
		ShowVersion: *showVersion || *versionShort,
		Validate:    *validate,
	}
}
