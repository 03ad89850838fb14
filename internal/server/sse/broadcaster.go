// Package sse provides the Server-Sent Events transport for the event stream.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/pkg/event"
)

// Broadcaster manages Server-Sent Events connections.
type Broadcaster struct {
	clients    map[chan event.Event]bool
	newClients chan chan event.Event
	closed     chan chan event.Event
	events     chan event.Event
	mu         sync.RWMutex
	logger     *zerolog.Logger
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[chan event.Event]bool),
		newClients: make(chan chan event.Event, 10), // Buffered so clients can connect before Run() starts
		closed:     make(chan chan event.Event, 10),
		events:     make(chan event.Event, 256),
		logger:     logger,
	}
}

// Run starts the broadcaster's main loop. Should be called in a goroutine.
// The broadcaster runs until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				close(client)
			}
			b.clients = make(map[chan event.Event]bool)
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster shut down")
			return

		case client := <-b.newClients:
			b.mu.Lock()
			b.clients[client] = true
			total := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().
				Int("total_clients", total).
				Msg("SSE client connected")

		case client := <-b.closed:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().
				Int("total_clients", total).
				Msg("SSE client disconnected")

		case ev := <-b.events:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- ev:
				default:
					// Client buffer full, skip this event for this client
					b.logger.Warn().Msg("SSE client buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Broadcast sends an event to all connected SSE clients.
func (b *Broadcaster) Broadcast(ev event.Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.Warn().Msg("SSE broadcast channel full, event dropped")
	}
}

// ClientCount returns the number of connected SSE clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP handles SSE connections.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client := make(chan event.Event, 256)
	b.newClients <- client
	defer func() {
		b.closed <- client
	}()

	// Initial connection event so clients can confirm the stream is live.
	b.writeEvent(w, flusher, event.Event{
		Kind:      "connected",
		Timestamp: utc.Now(),
		Payload:   map[string]any{"message": "Connected to event stream"},
	})

	for {
		select {
		case ev, open := <-client:
			if !open {
				return
			}
			b.writeEvent(w, flusher, ev)

		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent writes one event in SSE framing: the kind as the event name, the
// record sequence as the id, and the wire JSON as the data line.
func (b *Broadcaster) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev event.Event) {
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Kind)
	if ev.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.Seq)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to marshal SSE event data")
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)

	flusher.Flush()
}
