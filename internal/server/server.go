// Package server exposes the broker over HTTP: history and status queries,
// custom event ingestion, SSE and WebSocket streaming, and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus"
	"github.com/forgeline/signalbus/internal/server/sse"
	ws "github.com/forgeline/signalbus/internal/server/websocket"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ReadTimeout bounds request header reading (default 10s). There is no
	// write timeout: the streaming endpoints hold their connection open.
	ReadTimeout time.Duration
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	manager        signalbus.Manager
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
	metrics        http.Handler
}

// New creates a server over an initialized Manager and subscribes the
// streaming transports to the broker.
func New(manager signalbus.Manager, cfg Config, logger *zerolog.Logger) (*Server, error) {
	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	if err := manager.RegisterSubscriber(sseSubscriberID, []string{"*"}, &sseSink{broadcaster: sseBroadcaster}); err != nil {
		return nil, err
	}
	if err := manager.RegisterSubscriber(wsSubscriberID, []string{"*"}, &wsSink{hub: wsHub}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		manager:        manager,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		metrics:   promhttp.HandlerFor(newMetricsRegistry(manager), promhttp.HandlerOpts{}),
	}, nil
}

// Start launches the streaming transports. Call before serving requests.
func (s *Server) Start() {
	go s.sseBroadcaster.Run(s.ctx)
	go s.wsHub.Run(s.ctx)
	s.logger.Debug().Msg("Streaming transports started")
}

// Handler returns the configured http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events/history", s.handleHistory)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/events", s.handleEmit)
	mux.HandleFunc("GET /v1/events/stream", s.handleSSE)
	mux.HandleFunc("GET /v1/events/ws", s.handleWebSocket)
	mux.Handle("GET /metrics", s.metrics)
	return s.logRequests(mux)
}

// HTTPServer returns an http.Server for the configured address and timeouts,
// wired to Handler. The write timeout is left unset: the streaming endpoints
// hold their response open indefinitely.
func (s *Server) HTTPServer() *http.Server {
	readTimeout := s.config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	return &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
	}
}

// Shutdown stops the streaming transports and unsubscribes them.
func (s *Server) Shutdown(_ context.Context) error {
	s.cancel()

	// Best effort: the manager may already be shutting down.
	_ = s.manager.UnregisterSubscriber(sseSubscriberID)
	_ = s.manager.UnregisterSubscriber(wsSubscriberID)

	s.logger.Info().Msg("HTTP server transports shut down")
	return nil
}

// logRequests is the access-log middleware.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
