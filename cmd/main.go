package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"vanish/internal/config"
	"vanish/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code: 2 for usage
// errors, 1 for everything else that fails.
func run(args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		usage(stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "vanish: %v\n\n", err)
		usage(stderr)
		return 2
	}

	if inv.command == "version" {
		fmt.Fprintf(stdout, "vanish %s\n", version)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "vanish: %v\n", err)
		return 1
	}
	logger.Setup(cfg.LogLevel, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, inv.format, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "vanish: %v\n", err)
		return 1
	}

	if err := a.execute(ctx, inv); err != nil {
		fmt.Fprintf(stderr, "vanish: %v\n", err)
		if h := hint(err); h != "" {
			fmt.Fprintf(stderr, "hint: %s\n", h)
		}
		return 1
	}
	return 0
}
