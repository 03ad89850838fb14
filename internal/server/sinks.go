package server

import (
	"github.com/forgeline/signalbus/internal/server/sse"
	ws "github.com/forgeline/signalbus/internal/server/websocket"
	"github.com/forgeline/signalbus/pkg/event"
)

// Subscriber ids the transports register under. Reserved for the server.
const (
	sseSubscriberID = "transport.sse"
	wsSubscriberID  = "transport.websocket"
)

// sseSink adapts the SSE broadcaster to the broker's sink interface.
type sseSink struct {
	broadcaster *sse.Broadcaster
}

// Send fans the event out to all SSE clients.
func (s *sseSink) Send(ev event.Event) error {
	s.broadcaster.Broadcast(ev)
	return nil
}

// Close is a no-op; the broadcaster manages its own lifecycle.
func (s *sseSink) Close() error { return nil }

// wsSink adapts the WebSocket hub to the broker's sink interface.
type wsSink struct {
	hub *ws.Hub
}

// Send fans the event out to all WebSocket clients.
func (s *wsSink) Send(ev event.Event) error {
	s.hub.Broadcast(ev)
	return nil
}

// Close is a no-op; the hub manages its own lifecycle.
func (s *wsSink) Close() error { return nil }
