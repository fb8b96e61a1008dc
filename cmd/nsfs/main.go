package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/marmos91/nsfs/internal/iotool"
	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/config"
)

const usage = `nsfs - user-space namespace file system

Usage:
  nsfs init  [--config PATH] [--force]     write a default configuration file
  nsfs io    [--config PATH] [-v] OP ARGS  run one operation and print its record
  nsfs shell [--config PATH] [-v]          run operations read from stdin
  nsfs ops                                 list supported operations

Environment variables (NSFS_*) override the configuration file. A .env file
in the working directory is loaded first if present.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "init":
		runInit(args)
	case "io":
		os.Exit(runIO(args))
	case "shell":
		os.Exit(runShell(args))
	case "ops":
		for _, op := range iotool.Operations() {
			fmt.Println(iotool.Usage(op))
		}
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to write the config file (default: $XDG_CONFIG_HOME/nsfs/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(*force); err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration written to %s\n", path)
}

// session bundles what one command needs to run operations.
type session struct {
	rt     *config.Runtime
	runner *iotool.Runner
	end    func()
}

func openSession(ctx context.Context, configPath string, opts iotool.Options) *session {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}

	rt, err := config.CreateFileSystem(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create file system: %v", err)
	}

	s, err := rt.FS.NewSession(cfg.Mount.Cwd)
	if err != nil {
		_ = rt.FS.Close()
		log.Fatalf("Failed to create session: %v", err)
	}

	runner := iotool.NewRunner(s, os.Stdout, opts)
	return &session{
		rt:     rt,
		runner: runner,
		end: func() {
			// Teardown must finish even after a signal canceled ctx
			bg := context.Background()
			if err := runner.Close(bg); err != nil {
				logger.Warn("Failed to close directory streams: %v", err)
			}
			if err := s.End(bg); err != nil {
				logger.Warn("Failed to end session: %v", err)
			}
			if err := rt.FS.Close(); err != nil {
				logger.Error("Failed to close file system: %v", err)
			}
		},
	}
}

func runIO(args []string) int {
	fs := flag.NewFlagSet("io", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/nsfs/config.yaml)")
	verbose := fs.Bool("v", false, "Print a human readable line instead of JSON")
	pretty := fs.Bool("pretty", false, "Indent JSON output")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "missing operation; run 'nsfs ops' for the list")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := iotool.Options{Verbose: *verbose}
	if *pretty {
		opts.Indent = "  "
	}

	sess := openSession(ctx, *configPath, opts)
	defer sess.end()

	if err := sess.runner.Run(ctx, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, iotool.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
