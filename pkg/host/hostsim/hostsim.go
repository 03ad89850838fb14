// Package hostsim provides a scriptable in-memory host. It backs the demo CLI
// and the broker's tests: signals are emitted synchronously from the caller's
// goroutine, exactly the way a real host drives its control thread.
package hostsim

import (
	"sync"

	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/host"
)

// Host is an in-memory implementation of all three signal families.
// The zero value is not usable; use New.
//
// Emits hold the read lock while invoking callbacks and disconnects take the
// write lock, so a disconnect waits out in-flight deliveries: once it returns,
// the callback is never invoked again.
type Host struct {
	mu sync.RWMutex

	documentCallbacks map[int]func(host.DocumentSignal)
	commandCallbacks  map[int]func(host.CommandSignal)
	errorCallbacks    map[int]func(host.ErrorSignal)
	nextID            int

	// failConnect lists families whose Connect calls fail, for exercising
	// degraded initialization.
	failConnect map[string]bool
}

// New creates a simulated host.
func New() *Host {
	return &Host{
		documentCallbacks: make(map[int]func(host.DocumentSignal)),
		commandCallbacks:  make(map[int]func(host.CommandSignal)),
		errorCallbacks:    make(map[int]func(host.ErrorSignal)),
		failConnect:       make(map[string]bool),
	}
}

// FailConnections makes Connect fail for the named family ("document",
// "command" or "error") until cleared.
func (h *Host) FailConnections(family string, fail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failConnect[family] = fail
}

// Documents returns the host's document signal source.
func (h *Host) Documents() host.DocumentSource { return documentSource{h} }

// Commands returns the host's command signal source.
func (h *Host) Commands() host.CommandSource { return commandSource{h} }

// Errors returns the host's error signal source.
func (h *Host) Errors() host.ErrorSource { return errorSource{h} }

// EmitDocument delivers a document signal to all connected callbacks,
// synchronously on the caller's goroutine. Callbacks must not call back into
// Connect or a disconnect, matching a real host's reentrancy rules.
func (h *Host) EmitDocument(sig host.DocumentSignal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cb := range h.documentCallbacks {
		cb(sig)
	}
}

// EmitCommand delivers a command signal to all connected callbacks.
func (h *Host) EmitCommand(sig host.CommandSignal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cb := range h.commandCallbacks {
		cb(sig)
	}
}

// EmitError delivers an error signal to all connected callbacks.
func (h *Host) EmitError(sig host.ErrorSignal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cb := range h.errorCallbacks {
		cb(sig)
	}
}

type documentSource struct{ h *Host }

func (documentSource) Name() string { return "hostsim.documents" }

func (s documentSource) Connect(cb func(host.DocumentSignal)) (host.DisconnectFunc, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	if s.h.failConnect["document"] {
		return nil, errors.New("document signals unavailable")
	}

	id := s.h.nextID
	s.h.nextID++
	s.h.documentCallbacks[id] = cb

	return func() {
		s.h.mu.Lock()
		delete(s.h.documentCallbacks, id)
		s.h.mu.Unlock()
	}, nil
}

type commandSource struct{ h *Host }

func (commandSource) Name() string { return "hostsim.commands" }

func (s commandSource) Connect(cb func(host.CommandSignal)) (host.DisconnectFunc, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	if s.h.failConnect["command"] {
		return nil, errors.New("command signals unavailable")
	}

	id := s.h.nextID
	s.h.nextID++
	s.h.commandCallbacks[id] = cb

	return func() {
		s.h.mu.Lock()
		delete(s.h.commandCallbacks, id)
		s.h.mu.Unlock()
	}, nil
}

type errorSource struct{ h *Host }

func (errorSource) Name() string { return "hostsim.errors" }

func (s errorSource) Connect(cb func(host.ErrorSignal)) (host.DisconnectFunc, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	if s.h.failConnect["error"] {
		return nil, errors.New("error signals unavailable")
	}

	id := s.h.nextID
	s.h.nextID++
	s.h.errorCallbacks[id] = cb

	return func() {
		s.h.mu.Lock()
		delete(s.h.errorCallbacks, id)
		s.h.mu.Unlock()
	}, nil
}
