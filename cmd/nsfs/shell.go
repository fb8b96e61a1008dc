package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marmos91/nsfs/internal/iotool"
	"github.com/marmos91/nsfs/internal/logger"
)

// maxLineSize bounds one shell line; write payloads travel inline.
const maxLineSize = 16 << 20

// runShell reads one operation per line from stdin and runs them all in a
// single session, so descriptors and the working directory carry over from
// line to line. Blank lines and lines starting with # are skipped.
func runShell(args []string) int {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/nsfs/config.yaml)")
	verbose := fs.Bool("v", false, "Print human readable lines instead of JSON")
	_ = fs.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := openSession(ctx, *configPath, iotool.Options{Verbose: *verbose})
	defer sess.end()

	metricsDone := make(chan error, 1)
	if srv := sess.rt.Metrics.Server; srv != nil {
		go func() {
			metricsDone <- srv.Serve(ctx)
		}()
		logger.Info("Metrics available at http://localhost:%d/metrics", srv.Port())
	} else {
		metricsDone <- nil
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	code := 0
loop:
	for {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, ending session...")
			break loop

		case err := <-metricsDone:
			if err != nil {
				logger.Error("Metrics server error: %v", err)
				code = 1
				break loop
			}
			metricsDone = nil

		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					logger.Error("Failed to read input: %v", err)
					code = 1
				}
				break loop
			}
			if c := runLine(ctx, sess.runner, line); c != 0 {
				code = c
			}
		}
	}

	cancel()
	return code
}

// runLine runs one shell line. Usage errors are reported and do not stop
// the shell.
func runLine(ctx context.Context, r *iotool.Runner, line string) int {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0
	}

	args, err := iotool.Split(line)
	if err == nil {
		err = r.Run(ctx, args)
	}
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, err)
	if errors.Is(err, iotool.ErrUsage) {
		return 0
	}
	return 1
}
