// Package sink defines the notification sink interface subscribers register
// with, plus ready-made implementations for in-process consumers.
// Transport-specific sinks (WebSocket, SSE) live with the HTTP server.
package sink

import (
	"sync"
	"sync/atomic"

	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
)

// Sink receives event notifications for one subscriber.
// Implementations should be non-blocking; a Send that stalls delays delivery
// to that subscriber only, never to the host.
type Sink interface {
	// Send delivers an event to the subscriber.
	Send(event.Event) error

	// Close cleanly shuts down the sink. Safe to call more than once.
	Close() error
}

// FuncSink adapts a function to the Sink interface.
type FuncSink func(event.Event) error

// Send implements Sink.
func (f FuncSink) Send(ev event.Event) error { return f(ev) }

// Close implements Sink. It is a no-op.
func (f FuncSink) Close() error { return nil }

// ChannelSink buffers events on a channel for a consumer goroutine.
// Send never blocks: when the buffer is full the event is dropped and
// counted, matching the broker's loss-over-stall policy.
type ChannelSink struct {
	ch      chan event.Event
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan event.Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan event.Event { return s.ch }

// Dropped returns the number of events dropped due to a full buffer.
func (s *ChannelSink) Dropped() uint64 { return s.dropped.Load() }

// Send implements Sink.
func (s *ChannelSink) Send(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrClosed
	}

	select {
	case s.ch <- ev:
		return nil
	default:
		s.dropped.Add(1)
		return errors.ErrOverloaded
	}
}

// Close implements Sink. The events channel is closed so consumers observe
// end-of-stream; subsequent Sends return ErrClosed.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}
