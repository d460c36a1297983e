package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/buildinfo"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/cron"
)

type Args struct {
	ConfigPath  string
	ListenAddr  string
	Cron        string
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
		fmt.Printf("instabot-server %s\n", buildinfo.Get())
		return nil
	}
	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}
	if args.Validate {
		return validate(args)
	}

	var opts []server.Option
	if args.ListenAddr != "" {
		opts = append(opts, server.WithListenAddr(args.ListenAddr))
	}
	if args.Cron != "" {
		opts = append(opts, server.WithCron(args.Cron))
	}

	srv, err := server.New(args.ConfigPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// validate checks the config file and the schedules without opening stores
// or starting the listener.
func validate(args Args) error {
	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	known := make(map[string]bool)
	for _, a := range cfg.EnabledAccounts() {
		known[a.Username] = true
	}
	var specs []cron.TriggerSpec
	if args.Cron != "" {
		specs, err = cron.ParseTriggerSpecs(args.Cron, known)
	} else {
		specs, err = cron.FromConfig(cfg.Server.Cron, known)
	}
	if err != nil {
		return fmt.Errorf("invalid schedules: %w", err)
	}

	fmt.Printf("Configuration validation successful: %s (%d accounts, %d schedules)\n",
		args.ConfigPath, len(known), len(specs))
	return nil
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	listen := flag.String("listen", "", "Listen address, overrides server.listener.addr")
	cronSpec := flag.String("cron", "", "Schedules as accounts:cron;... (* for all accounts), overrides server.cron")
	showVersion := flag.Bool("version", false, "Show version information")
	versionShort := flag.Bool("v", false, "Show version information (shorthand)")
	validateOnly := flag.Bool("validate", false, "Validate configuration and schedules, then exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nInstabot Server - session control plane\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/instabot/config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml --cron 'bot_one,bot_two:0 9 * * *;*:0 18 * * *'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml --validate\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath:  path,
		ListenAddr:  *listen,
		Cron:        *cronSpec,
		ShowVersion: *showVersion || *versionShort,
		Validate:    *validateOnly,
	}
}
