// Package adapters contains the signal adapters: the bridge between a host
// signal family and the broker. An adapter connects a callback to its host
// source, normalizes each raw signal into an event, and hands it to the
// dispatch scheduler so the host thread returns immediately.
package adapters

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/internal/scheduler"
	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
	"github.com/forgeline/signalbus/pkg/host"
)

// Truncation bounds for error event payloads. Host stacks and messages can be
// arbitrarily large; events stored in history must not be.
const (
	maxErrorMessageLen = 500
	maxErrorStackLen   = 2000
)

// Canonical adapter names, used as dispatch lanes and event sources.
const (
	DocumentAdapterName = "document"
	CommandAdapterName  = "command"
	ErrorAdapterName    = "error"
)

// Dispatcher is the slice of the scheduler an adapter needs.
type Dispatcher interface {
	Submit(lane string, task scheduler.Task) error
}

// Recorder is the slice of the router an adapter needs.
type Recorder interface {
	Record(ev event.Event)
}

// Adapter is one connected signal family.
type Adapter interface {
	// Name identifies the adapter and the lane its events dispatch on.
	Name() string

	// Connect attaches the adapter's callback to its host source. A failure
	// leaves the adapter disconnected; it is reported, not fatal.
	Connect() error

	// Disconnect detaches from the host. It is idempotent, and once it
	// returns no further events are emitted by this adapter.
	Disconnect()

	// Connected reports whether the host callback is currently attached.
	Connected() bool

	// EventsEmitted returns the number of signals accepted for dispatch.
	EventsEmitted() uint64
}

// base carries the state and behavior shared by all adapters.
type base struct {
	name       string
	dispatcher Dispatcher
	recorder   Recorder
	logger     *zerolog.Logger

	mu         sync.Mutex
	connected  bool
	disconnect host.DisconnectFunc

	emitted atomic.Uint64
}

func newBase(name string, d Dispatcher, r Recorder, logger *zerolog.Logger) base {
	return base{name: name, dispatcher: d, recorder: r, logger: logger}
}

func (b *base) Name() string { return b.name }

func (b *base) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *base) EventsEmitted() uint64 { return b.emitted.Load() }

// attach records a successful source connection.
func (b *base) attach(disconnect host.DisconnectFunc) {
	b.mu.Lock()
	b.connected = true
	b.disconnect = disconnect
	b.mu.Unlock()

	b.logger.Info().Str("adapter", b.name).Msg("Signal adapter connected")
}

// Disconnect detaches the host callback. The host's disconnect synchronizes,
// so after this returns the adapter emits nothing further.
func (b *base) Disconnect() {
	b.mu.Lock()
	disconnect := b.disconnect
	wasConnected := b.connected
	b.connected = false
	b.disconnect = nil
	b.mu.Unlock()

	if !wasConnected {
		return
	}
	if disconnect != nil {
		disconnect()
	}
	b.logger.Info().Str("adapter", b.name).Msg("Signal adapter disconnected")
}

// emit normalizes one signal and submits it for asynchronous delivery. It runs
// on the host's callback thread: it must not block, and a failure anywhere in
// normalization or enqueueing must not escape to the host.
func (b *base) emit(kind event.Kind, payload map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			b.reportInternalFailure(fmt.Sprintf("panic in %s adapter: %v", b.name, rec))
		}
	}()

	// Backstop for hosts whose disconnect does not fully synchronize: a
	// straggler callback after Disconnect emits nothing.
	if !b.Connected() {
		return
	}

	ev := event.New(kind, payload, b.name)
	if err := b.dispatcher.Submit(b.name, func() { b.recorder.Record(ev) }); err != nil {
		if errors.IsOverloaded(err) {
			// Backpressure drop, already counted by the scheduler.
			return
		}
		b.logger.Warn().
			Err(err).
			Str("adapter", b.name).
			Str("event_type", string(kind)).
			Msg("Failed to dispatch signal")
		return
	}
	b.emitted.Add(1)
}

// reportInternalFailure turns an adapter-internal failure into an error event
// so subscribers can observe it. The event is recorded directly, bypassing
// the path that just failed.
func (b *base) reportInternalFailure(message string) {
	b.logger.Error().Str("adapter", b.name).Str("message", message).Msg("Signal adapter failure")
	b.recorder.Record(event.New(event.KindError, map[string]any{
		"message": Truncate(message, maxErrorMessageLen),
		"source":  "adapter:" + b.name,
	}, b.name))
}

// DocumentAdapter bridges the document lifecycle signal family.
type DocumentAdapter struct {
	base
	source host.DocumentSource
}

// NewDocumentAdapter creates a disconnected document adapter.
func NewDocumentAdapter(source host.DocumentSource, d Dispatcher, r Recorder, logger *zerolog.Logger) *DocumentAdapter {
	return &DocumentAdapter{base: newBase(DocumentAdapterName, d, r, logger), source: source}
}

// Connect attaches the document callback to the host source.
func (a *DocumentAdapter) Connect() error {
	disconnect, err := a.source.Connect(a.handle)
	if err != nil {
		return errors.WrapConnection(a.name, err)
	}
	a.attach(disconnect)
	return nil
}

func (a *DocumentAdapter) handle(sig host.DocumentSignal) {
	payload := map[string]any{"document_id": sig.DocumentID}

	var kind event.Kind
	switch sig.Op {
	case host.DocumentCreated:
		kind = event.KindDocumentCreated
	case host.DocumentChanged:
		kind = event.KindDocumentChanged
		payload["recomputed_ids"] = append([]string(nil), sig.RecomputedIDs...)
	case host.DocumentClosed:
		kind = event.KindDocumentClosed
	case host.DocumentActivated:
		kind = event.KindActiveDocumentChanged
	case host.SelectionChanged:
		kind = event.KindSelectionChanged
	default:
		a.logger.Warn().Str("op", string(sig.Op)).Msg("Unknown document operation ignored")
		return
	}

	a.emit(kind, payload)
}

// CommandAdapter bridges the command execution signal family.
type CommandAdapter struct {
	base
	source host.CommandSource
}

// NewCommandAdapter creates a disconnected command adapter.
func NewCommandAdapter(source host.CommandSource, d Dispatcher, r Recorder, logger *zerolog.Logger) *CommandAdapter {
	return &CommandAdapter{base: newBase(CommandAdapterName, d, r, logger), source: source}
}

// Connect attaches the command callback to the host source.
func (a *CommandAdapter) Connect() error {
	disconnect, err := a.source.Connect(a.handle)
	if err != nil {
		return errors.WrapConnection(a.name, err)
	}
	a.attach(disconnect)
	return nil
}

func (a *CommandAdapter) handle(sig host.CommandSignal) {
	a.emit(event.KindCommandExecuted, map[string]any{"command_id": sig.CommandID})
}

// ErrorAdapter bridges the host error signal family.
type ErrorAdapter struct {
	base
	source host.ErrorSource
}

// NewErrorAdapter creates a disconnected error adapter.
func NewErrorAdapter(source host.ErrorSource, d Dispatcher, r Recorder, logger *zerolog.Logger) *ErrorAdapter {
	return &ErrorAdapter{base: newBase(ErrorAdapterName, d, r, logger), source: source}
}

// Connect attaches the error callback to the host source.
func (a *ErrorAdapter) Connect() error {
	disconnect, err := a.source.Connect(a.handle)
	if err != nil {
		return errors.WrapConnection(a.name, err)
	}
	a.attach(disconnect)
	return nil
}

func (a *ErrorAdapter) handle(sig host.ErrorSignal) {
	a.emit(event.KindError, map[string]any{
		"message": Truncate(sig.Message, maxErrorMessageLen),
		"source":  sig.Source,
		"stack":   Truncate(sig.Stack, maxErrorStackLen),
	})
}

// Truncate caps s at max bytes, marking the cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}
