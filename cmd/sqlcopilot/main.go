package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlcopilot/sqlcopilot/internal/cli/sqlcopilot"
	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlcopilot")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := sqlcopilot.Run(ctx, os.Args[1:], sqlcopilot.Options{
		Config: cfg,
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}
