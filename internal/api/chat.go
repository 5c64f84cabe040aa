package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/omnibrain/omnibrain/internal/apierr"
	"github.com/omnibrain/omnibrain/internal/chatbridge"
)

// MessageRequest is the body of POST /message and POST /chat.
type MessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func sessionID(raw string) string {
	if raw != "" {
		return raw
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// handleMessage is the non-streaming chat endpoint: it drains
// AgentChatBridge's frame stream and returns the concatenated token
// content as one JSON response.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("message is required"))
		return
	}
	if s.rc.ChatBridge == nil {
		apierr.WriteHTTP(w, apierr.Unavailable("chat bridge is not configured"))
		return
	}
	sid := sessionID(req.SessionID)

	var reply string
	var threatScore float64
	var blocked bool
	for frame := range s.rc.ChatBridge.Stream(r.Context(), sid, req.Message) {
		switch frame.Type {
		case "token":
			reply += frame.Content
		case "error":
			blocked = true
			reply = frame.Content
			threatScore = frame.ThreatScore
		}
	}

	resp := map[string]any{"session_id": sid, "response": reply}
	if blocked {
		resp["blocked"] = true
		resp["threat_score"] = threatScore
	}
	writeJSON(w, s.log, resp)
}

// handleChatStream is the SSE chat endpoint (§4.10/§6.1): every frame
// AgentChatBridge produces is forwarded verbatim as an SSE data event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("message is required"))
		return
	}
	if s.rc.ChatBridge == nil {
		apierr.WriteHTTP(w, apierr.Unavailable("chat bridge is not configured"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		apierr.WriteHTTP(w, apierr.Internal("streaming unsupported by response writer"))
		return
	}

	sid := sessionID(req.SessionID)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for frame := range s.rc.ChatBridge.Stream(r.Context(), sid, req.Message) {
		writeSSEFrame(w, frame)
		flusher.Flush()
		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, v chatbridge.Frame) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) handleChatSessionsList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.rc.Store.ListSessionIDs()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list sessions: %v", err))
		return
	}
	writeJSON(w, s.log, ids)
}

func (s *Server) handleChatSessionDelete(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session_id")
	if sid == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("session_id is required"))
		return
	}
	if err := s.rc.Store.DeleteChatSession(sid); err != nil {
		apierr.WriteHTTP(w, apierr.Internal("delete session: %v", err))
		return
	}
	if s.rc.ChatBridge != nil {
		s.rc.ChatBridge.InvalidateSession(sid)
	}
	writeJSON(w, s.log, map[string]string{"session_id": sid, "status": "deleted"})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session_id")
	if sid == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("session_id is required"))
		return
	}
	limit := queryInt(r, "limit", 100)
	messages, err := s.rc.Store.GetRecentChatMessages(sid, limit)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("get history: %v", err))
		return
	}
	writeJSON(w, s.log, messages)
}
