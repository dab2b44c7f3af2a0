// Command patternscan detects and ranks chart patterns in OHLCV bar data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pattern-scanner/internal/cli"
	"pattern-scanner/internal/config"
	"pattern-scanner/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		// --config may still point at a valid directory.
		fmt.Fprintf(os.Stderr, "warning: %v; using defaults\n", err)
		cfg = config.Default()
	}
	logger := logging.NewLoggerWithConfig(cfg.LogConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
