package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	ws "github.com/forgeline/signalbus/internal/server/websocket"
	"github.com/forgeline/signalbus/pkg/errors"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsAlreadyExists(err):
		status = http.StatusConflict
	case errors.IsNotReady(err):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// handleHistory serves GET /v1/events/history?limit=&type=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, errors.NewValidationError("limit", raw, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events, err := s.manager.EventHistory(limit, r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleStatus serves GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.manager.SystemStatus()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"sse_clients":    s.sseBroadcaster.ClientCount(),
		"ws_clients":     s.wsHub.ClientCount(),
	})
}

// emitRequest is the POST /v1/events body.
type emitRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// handleEmit serves POST /v1/events, recording a custom event.
func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.NewValidationError("body", nil, "invalid JSON body"))
		return
	}

	if err := s.manager.EmitCustomEvent(req.Type, req.Data); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "type": req.Type})
}

// handleSSE serves GET /v1/events/stream.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	s.sseBroadcaster.ServeHTTP(w, r)
}

// handleWebSocket serves GET /v1/events/ws.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	clientID := fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
	client := ws.NewClient(clientID, s.wsHub, conn)
	s.wsHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
