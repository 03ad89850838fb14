package signalbus

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/internal/router"
	"github.com/forgeline/signalbus/internal/scheduler"
	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/host"
	"github.com/forgeline/signalbus/pkg/logging"
)

// Option is a function that configures a Manager.
type Option func(*config) error

// config holds the resolved Manager configuration.
type config struct {
	logger *zerolog.Logger

	historySize        int
	commandHistorySize int
	errorHistorySize   int

	workerCount int
	queueSize   int

	cleanupThreshold time.Duration

	documentSource host.DocumentSource
	commandSource  host.CommandSource
	errorSource    host.ErrorSource

	globalErrorCapture bool
}

// DefaultCleanupThreshold is the inactivity age after which
// CleanupInactiveSubscribers removes a subscriber by default.
const DefaultCleanupThreshold = time.Hour

func defaultConfig() *config {
	return &config{
		logger:             logging.Default(),
		historySize:        router.DefaultHistorySize,
		commandHistorySize: router.DefaultCommandHistorySize,
		errorHistorySize:   router.DefaultErrorHistorySize,
		workerCount:        scheduler.DefaultWorkerCount,
		queueSize:          scheduler.DefaultQueueSize,
		cleanupThreshold:   DefaultCleanupThreshold,
	}
}

// WithLogger sets the logger used by every broker component.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return errors.NewValidationError("logger", nil, "logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithHistorySize sets the document/custom history capacity (default 1000).
func WithHistorySize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewValidationError("history_size", n, "history size must be positive")
		}
		c.historySize = n
		return nil
	}
}

// WithCommandHistorySize sets the command history capacity (default 100).
func WithCommandHistorySize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewValidationError("command_history_size", n, "history size must be positive")
		}
		c.commandHistorySize = n
		return nil
	}
}

// WithErrorHistorySize sets the error history capacity (default 50).
func WithErrorHistorySize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewValidationError("error_history_size", n, "history size must be positive")
		}
		c.errorHistorySize = n
		return nil
	}
}

// WithWorkerCount sets the dispatch pool size (default 4).
func WithWorkerCount(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewValidationError("worker_count", n, "worker count must be positive")
		}
		c.workerCount = n
		return nil
	}
}

// WithQueueSize bounds each dispatch worker's queue (default 256).
func WithQueueSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewValidationError("queue_size", n, "queue size must be positive")
		}
		c.queueSize = n
		return nil
	}
}

// WithCleanupThreshold sets the default inactivity age for
// CleanupInactiveSubscribers (default one hour).
func WithCleanupThreshold(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewValidationError("cleanup_threshold", d, "threshold must be positive")
		}
		c.cleanupThreshold = d
		return nil
	}
}

// WithDocumentSource wires the host's document signal family.
func WithDocumentSource(s host.DocumentSource) Option {
	return func(c *config) error {
		c.documentSource = s
		return nil
	}
}

// WithCommandSource wires the host's command signal family.
func WithCommandSource(s host.CommandSource) Option {
	return func(c *config) error {
		c.commandSource = s
		return nil
	}
}

// WithErrorSource wires the host's error signal family.
func WithErrorSource(s host.ErrorSource) Option {
	return func(c *config) error {
		c.errorSource = s
		return nil
	}
}

// WithGlobalErrorCapture enables CaptureError/CapturePanic routing from the
// start. It can be toggled later with EnableGlobalErrorCapture.
func WithGlobalErrorCapture(enabled bool) Option {
	return func(c *config) error {
		c.globalErrorCapture = enabled
		return nil
	}
}
