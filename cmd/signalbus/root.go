package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forgeline/signalbus/internal/config"
	"github.com/forgeline/signalbus/pkg/logging"
)

// rootFlags holds the persistent flag values shared by all commands.
type rootFlags struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "signalbus",
		Short: "Host-event broker",
		Long: `signalbus captures host application signals, retains bounded event
history, and streams events to subscribers over SSE and WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(flags),
		newWatchCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig resolves the configuration and sets up the global logger.
func (f *rootFlags) loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, nil, err
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}
	if f.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = logging.NewJSON(os.Stderr)
	} else {
		logger = logging.NewConsole()
	}
	logger = logger.Level(level)
	logging.SetDefault(logger)

	return cfg, logging.Default(), nil
}
