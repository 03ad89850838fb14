package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeline/signalbus"
	"github.com/forgeline/signalbus/pkg/event"
	"github.com/forgeline/signalbus/pkg/host/fswatch"
	"github.com/forgeline/signalbus/pkg/sink"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch DIR",
		Short: "Watch a directory and print document events",
		Long: `Watch connects the file-watch document source to DIR and prints each
event as wire JSON on stdout, one per line. Useful for inspecting the event
stream without running the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := flags.loadConfig()
			if err != nil {
				return err
			}

			manager, err := signalbus.New(
				signalbus.WithLogger(logger),
				signalbus.WithDocumentSource(fswatch.New(args[0], logger)),
			)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := manager.Initialize(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			err = manager.RegisterSubscriber("cli.watch", []string{"*"}, sink.FuncSink(func(ev event.Event) error {
				return enc.Encode(ev)
			}))
			if err != nil {
				_ = manager.Shutdown(context.Background())
				return err
			}

			status := manager.SystemStatus()
			if a, ok := status.Adapters["document"]; ok && !a.Connected {
				_ = manager.Shutdown(context.Background())
				return fmt.Errorf("cannot watch %s: %s", args[0], a.Error)
			}

			logger.Info().Str("dir", args[0]).Msg("Watching for document events")
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return manager.Shutdown(shutdownCtx)
		},
	}
}
