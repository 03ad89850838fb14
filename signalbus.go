// Package signalbus is an embeddable event broker for host applications. It
// captures host signals (document lifecycle, command execution, errors),
// normalizes them into immutable events, retains bounded per-category history,
// and fans events out asynchronously to filtered subscribers.
package signalbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/internal/adapters"
	"github.com/forgeline/signalbus/internal/registry"
	"github.com/forgeline/signalbus/internal/router"
	"github.com/forgeline/signalbus/internal/scheduler"
	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
	"github.com/forgeline/signalbus/pkg/sink"
)

// State is a lifecycle phase of a Manager.
type State string

// Manager lifecycle states. Transitions are one-way:
// Uninitialized → Initializing → Ready → ShuttingDown → Shutdown.
const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateShuttingDown  State = "shutting_down"
	StateShutdown      State = "shutdown"
)

// Manager is the broker's public surface. All methods are safe for concurrent
// use. Subscriber-facing and emit operations require the Ready state.
type Manager interface {
	// Initialize connects the signal adapters and starts the dispatch pool.
	// An adapter that fails to connect degrades the broker (its family stays
	// unavailable, visible in SystemStatus) without failing initialization.
	Initialize(ctx context.Context) error

	// Shutdown disconnects adapters, drains queued deliveries until the
	// context expires, and releases all subscribers. It is idempotent.
	Shutdown(ctx context.Context) error

	// RegisterSubscriber adds a subscriber. Interest is a set of event kind
	// names, or the wildcard "*".
	RegisterSubscriber(id string, interest []string, snk sink.Sink) error

	// UnregisterSubscriber removes a subscriber and closes its sink.
	UnregisterSubscriber(id string) error

	// UpdateSubscription atomically replaces a subscriber's interest set.
	UpdateSubscription(id string, interest []string) error

	// EmitCustomEvent records an application-defined event. The kind must be
	// a non-empty lowercase identifier; first use declares it.
	EmitCustomEvent(kind string, payload map[string]any) error

	// EventHistory returns retained events oldest-first. A kind filters to
	// that event type; limit > 0 caps the result to the newest entries.
	EventHistory(limit int, kind string) ([]event.Event, error)

	// SystemStatus reports broker state, per-adapter health, and counters.
	SystemStatus() Status

	// CleanupInactiveSubscribers removes subscribers idle longer than the
	// threshold and returns the number removed.
	CleanupInactiveSubscribers(threshold time.Duration) int

	// EnableGlobalErrorCapture toggles routing of CaptureError and
	// CapturePanic into the error event stream.
	EnableGlobalErrorCapture(enabled bool)

	// CaptureError records an application error as an error event when
	// global error capture is enabled.
	CaptureError(source string, err error)
}

// manager is the concrete broker.
type manager struct {
	config *config
	logger *zerolog.Logger

	mu    sync.RWMutex
	state State

	kinds     *event.KindRegistry
	scheduler *scheduler.Scheduler
	registry  *registry.Registry
	router    *router.Router
	adapters  []adapters.Adapter

	// adapterErrs holds the connect failure per degraded adapter.
	adapterErrs map[string]error

	captureEnabled bool
}

// New creates an uninitialized Manager. Call Initialize before use.
func New(opts ...Option) (Manager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	kinds := event.NewKindRegistry()
	reg := registry.New(kinds, logger)
	rtr := router.New(kinds, reg, router.Limits{
		Default: cfg.historySize,
		Command: cfg.commandHistorySize,
		Error:   cfg.errorHistorySize,
	}, logger)
	sched := scheduler.New(scheduler.Options{
		WorkerCount: cfg.workerCount,
		QueueSize:   cfg.queueSize,
		Logger:      logger,
	})

	m := &manager{
		config:         cfg,
		logger:         logger,
		state:          StateUninitialized,
		kinds:          kinds,
		scheduler:      sched,
		registry:       reg,
		router:         rtr,
		adapterErrs:    make(map[string]error),
		captureEnabled: cfg.globalErrorCapture,
	}

	if cfg.documentSource != nil {
		m.adapters = append(m.adapters, adapters.NewDocumentAdapter(cfg.documentSource, sched, rtr, logger))
	}
	if cfg.commandSource != nil {
		m.adapters = append(m.adapters, adapters.NewCommandAdapter(cfg.commandSource, sched, rtr, logger))
	}
	if cfg.errorSource != nil {
		m.adapters = append(m.adapters, adapters.NewErrorAdapter(cfg.errorSource, sched, rtr, logger))
	}

	return m, nil
}

// Initialize connects adapters and starts the worker pool.
func (m *manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateUninitialized:
	case StateReady, StateInitializing:
		m.mu.Unlock()
		return errors.NewDuplicateError("manager", "initialize")
	default:
		state := m.state
		m.mu.Unlock()
		return errors.NewNotReadyError("manager", string(state))
	}
	m.state = StateInitializing
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		m.mu.Lock()
		if m.state == StateInitializing {
			m.state = StateUninitialized
		}
		m.mu.Unlock()
		return err
	}

	m.scheduler.Start()

	connected := 0
	for _, a := range m.adapters {
		if err := a.Connect(); err != nil {
			// Degraded, not fatal: the family stays unavailable.
			m.mu.Lock()
			m.adapterErrs[a.Name()] = err
			m.mu.Unlock()
			m.logger.Warn().
				Err(err).
				Str("adapter", a.Name()).
				Msg("Signal adapter unavailable")
			continue
		}
		connected++
	}

	// Only Initializing → Ready is legal. A shutdown that completed while
	// adapters were connecting has already won; unwind instead of
	// resurrecting a stopped broker.
	m.mu.Lock()
	if m.state != StateInitializing {
		state := m.state
		m.mu.Unlock()
		for _, a := range m.adapters {
			a.Disconnect()
		}
		m.logger.Warn().
			Str("state", string(state)).
			Msg("Initialization abandoned, manager was shut down concurrently")
		return errors.NewNotReadyError("initialize", string(state))
	}
	m.state = StateReady
	m.mu.Unlock()

	m.logger.Info().
		Int("adapters_connected", connected).
		Int("adapters_total", len(m.adapters)).
		Msg("Event manager initialized")
	return nil
}

// Shutdown tears the broker down: adapters first so no new signals arrive,
// then the scheduler drain, then the subscriber registry.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateShutdown, StateShuttingDown:
		m.mu.Unlock()
		return nil
	case StateUninitialized:
		m.state = StateShutdown
		m.mu.Unlock()
		return nil
	}
	m.state = StateShuttingDown
	m.mu.Unlock()

	for _, a := range m.adapters {
		a.Disconnect()
	}

	drainErr := m.scheduler.Stop(ctx)

	m.registry.Clear()

	m.mu.Lock()
	m.state = StateShutdown
	m.mu.Unlock()

	if drainErr != nil {
		m.logger.Warn().Err(drainErr).Msg("Event manager shutdown incomplete")
		return drainErr
	}
	m.logger.Info().Msg("Event manager shutdown complete")
	return nil
}

// requireReady gates subscriber-facing operations on the Ready state.
func (m *manager) requireReady() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady {
		return errors.NewNotReadyError("manager", string(m.state))
	}
	return nil
}

func (m *manager) RegisterSubscriber(id string, interest []string, snk sink.Sink) error {
	if err := m.requireReady(); err != nil {
		return err
	}
	return m.registry.Register(id, interest, snk)
}

func (m *manager) UnregisterSubscriber(id string) error {
	if err := m.requireReady(); err != nil {
		return err
	}
	return m.registry.Unregister(id)
}

func (m *manager) UpdateSubscription(id string, interest []string) error {
	if err := m.requireReady(); err != nil {
		return err
	}
	return m.registry.UpdateSubscription(id, interest)
}

func (m *manager) EmitCustomEvent(kind string, payload map[string]any) error {
	if err := m.requireReady(); err != nil {
		return err
	}
	return m.router.EmitCustom(event.Kind(kind), payload, "custom")
}

func (m *manager) EventHistory(limit int, kind string) ([]event.Event, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	return m.router.History(limit, event.Kind(kind)), nil
}

func (m *manager) CleanupInactiveSubscribers(threshold time.Duration) int {
	if threshold <= 0 {
		threshold = m.config.cleanupThreshold
	}
	return m.registry.CleanupInactive(threshold)
}

// EnableGlobalErrorCapture toggles application error capture at runtime.
func (m *manager) EnableGlobalErrorCapture(enabled bool) {
	m.mu.Lock()
	m.captureEnabled = enabled
	m.mu.Unlock()

	m.logger.Info().Bool("enabled", enabled).Msg("Global error capture toggled")
}
