// Package main provides the entry point for the signalbus CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgeline/signalbus/pkg/logging"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
