package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forgeline/signalbus"
	"github.com/forgeline/signalbus/internal/config"
	"github.com/forgeline/signalbus/internal/server"
	"github.com/forgeline/signalbus/pkg/host/fswatch"
	"github.com/forgeline/signalbus/pkg/host/hostsim"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr, watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP event server",
		Long: `Serve exposes the broker over HTTP: event history, status, custom event
ingestion, SSE and WebSocket streams, and Prometheus metrics. With --watch,
file changes in the directory feed the document event stream.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if watchDir != "" {
				cfg.WatchDir = watchDir
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "directory to watch for document events")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// The simulated host backs the families a serve process has no real
	// source for; POST /v1/events covers custom emission.
	sim := hostsim.New()

	opts := []signalbus.Option{
		signalbus.WithLogger(logger),
		signalbus.WithHistorySize(cfg.HistorySize),
		signalbus.WithCommandHistorySize(cfg.CommandHistorySize),
		signalbus.WithErrorHistorySize(cfg.ErrorHistorySize),
		signalbus.WithWorkerCount(cfg.WorkerCount),
		signalbus.WithQueueSize(cfg.QueueSize),
		signalbus.WithCleanupThreshold(cfg.CleanupThreshold),
		signalbus.WithCommandSource(sim.Commands()),
		signalbus.WithErrorSource(sim.Errors()),
	}
	if cfg.WatchDir != "" {
		opts = append(opts, signalbus.WithDocumentSource(fswatch.New(cfg.WatchDir, logger)))
	} else {
		opts = append(opts, signalbus.WithDocumentSource(sim.Documents()))
	}

	manager, err := signalbus.New(opts...)
	if err != nil {
		return err
	}
	if err := manager.Initialize(ctx); err != nil {
		return err
	}

	srv, err := server.New(manager, server.Config{Addr: cfg.Addr}, logger)
	if err != nil {
		return err
	}
	srv.Start()

	httpServer := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)
	_ = srv.Shutdown(shutdownCtx)
	return manager.Shutdown(shutdownCtx)
}
