// Package router is the single place an event is recorded and broadcast: it
// owns the bounded per-category history buffers and hands each recorded event
// to the subscriber registry for fan-out.
package router

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/internal/registry"
	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
)

// Default history capacities per category.
const (
	DefaultHistorySize        = 1000
	DefaultCommandHistorySize = 100
	DefaultErrorHistorySize   = 50
)

// Limits configures per-category history capacity. Zero fields take the
// defaults. Document and custom events share the Default buffer size.
type Limits struct {
	Default int
	Command int
	Error   int
}

func (l Limits) withDefaults() Limits {
	if l.Default <= 0 {
		l.Default = DefaultHistorySize
	}
	if l.Command <= 0 {
		l.Command = DefaultCommandHistorySize
	}
	if l.Error <= 0 {
		l.Error = DefaultErrorHistorySize
	}
	return l
}

// Router records events into bounded history and broadcasts them.
type Router struct {
	kinds    *event.KindRegistry
	registry *registry.Registry
	logger   *zerolog.Logger

	mu      sync.RWMutex
	buffers map[event.Category]*ring

	seq      atomic.Uint64
	recorded atomic.Uint64
}

// New creates a router backed by the given registry.
func New(kinds *event.KindRegistry, reg *registry.Registry, limits Limits, logger *zerolog.Logger) *Router {
	limits = limits.withDefaults()

	return &Router{
		kinds:    kinds,
		registry: reg,
		logger:   logger,
		buffers: map[event.Category]*ring{
			event.CategoryDocument: newRing(limits.Default),
			event.CategoryCustom:   newRing(limits.Default),
			event.CategoryCommand:  newRing(limits.Command),
			event.CategoryError:    newRing(limits.Error),
		},
	}
}

// Record appends the event to history, then broadcasts it. The append
// happens-before the broadcast, so a subscriber querying history from its
// notification always observes its own triggering event.
func (r *Router) Record(ev event.Event) {
	ev = ev.WithSeq(r.seq.Add(1))

	r.mu.Lock()
	r.buffers[ev.Kind.Category()].push(ev)
	r.mu.Unlock()

	r.recorded.Add(1)

	delivered := r.registry.Deliver(ev)
	r.logger.Debug().
		Str("event_type", string(ev.Kind)).
		Str("source", ev.Source).
		Int("delivered", delivered).
		Msg("Event recorded and broadcast")
}

// EmitCustom validates and records an event injected outside the signal
// adapters. First use of a kind declares it.
func (r *Router) EmitCustom(kind event.Kind, payload map[string]any, source string) error {
	if !kind.ValidName() {
		return errors.NewValidationError("kind", string(kind), "kind must be a non-empty lowercase identifier")
	}
	r.kinds.RegisterCustom(kind)

	r.Record(event.New(kind, payload, source))
	return nil
}

// History returns an ordered snapshot of retained events, oldest first. A
// zero or negative limit means no limit; a non-empty kind restricts the
// result to that kind.
func (r *Router) History(limit int, kind event.Kind) []event.Event {
	r.mu.RLock()
	var events []event.Event
	if kind != "" {
		for _, ev := range r.buffers[kind.Category()].items() {
			if ev.Kind == kind {
				events = append(events, ev)
			}
		}
	} else {
		for _, buf := range r.buffers {
			events = append(events, buf.items()...)
		}
	}
	r.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}

// HistorySize returns the total number of retained events.
func (r *Router) HistorySize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := 0
	for _, buf := range r.buffers {
		size += buf.size
	}
	return size
}

// Recorded returns the total number of events recorded since creation.
func (r *Router) Recorded() uint64 {
	return r.recorded.Load()
}

// ring is a fixed-capacity ring buffer of events. Insertion evicts the
// oldest entry when full.
type ring struct {
	buf  []event.Event
	head int // index of the oldest entry
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]event.Event, capacity)}
}

func (r *ring) push(ev event.Event) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	// Full: overwrite the oldest slot.
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
}

// items returns the buffered events oldest first.
func (r *ring) items() []event.Event {
	out := make([]event.Event, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
