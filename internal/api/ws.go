package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnibrain/omnibrain/internal/events"
)

// handleFeed upgrades to a WebSocket and forwards every notification-topic
// bus event as a JSON text frame, keeping the connection alive with periodic ping frames
// per spec.md §6.1's "keep-alive via ping/pong text frames" contract.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.rc.Bus.Subscribe(events.TopicNotification, 16)
	defer s.rc.Bus.Unsubscribe(sub)

	// Drain client frames (pong replies, close) on their own goroutine; a
	// WebSocket connection with nothing reading never notices the peer
	// went away until the next write fails.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
				return
			}
		case ev, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(map[string]any{
				"type":    ev.Topic,
				"ts":      ev.Timestamp,
				"payload": ev.Payload,
			})
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
