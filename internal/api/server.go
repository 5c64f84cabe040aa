// Package api implements the HTTP/WebSocket surface: REST endpoints over
// the store, memory, and engine subsystems, an SSE chat endpoint, and a
// WebSocket feed that mirrors the event bus — generalized from the
// teacher's internal/api server into omnibrain's /api/v1 surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/omnibrain/omnibrain/internal/apierr"
	"github.com/omnibrain/omnibrain/internal/config"
)

// Version is the API's self-reported build identifier.
const Version = "omnibrain/0.1"

// writeJSON encodes v as the JSON response body, logging encode failures
// (almost always a client that disconnected mid-response) at debug level.
func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the REST/SSE/WebSocket surface over one Resources set.
type Server struct {
	cfg       *config.Config
	rc        *Resources
	log       *slog.Logger
	startTime time.Time
	server    *http.Server
	upgrader  websocket.Upgrader
}

// New builds a Server. Resources are read from rc at request time, so rc's
// fields (e.g. Secure, Knowledge) may still be nil if their subsystem
// failed optional init — handlers degrade per-field rather than refusing
// to start.
func New(cfg *config.Config, rc *Resources, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		rc:        rc,
		log:       log.With("component", "api"),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start registers every route and begins serving. It blocks until the
// listener fails or Shutdown is called, mirroring net/http.Server.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)

	mux.HandleFunc("GET /api/v1/briefing", s.handleBriefingGet)
	mux.HandleFunc("POST /api/v1/briefing", s.handleBriefingGenerate)
	mux.HandleFunc("POST /api/v1/briefing/generate", s.handleBriefingGenerate)
	mux.HandleFunc("GET /api/v1/briefing/data", s.handleBriefingData)

	mux.HandleFunc("GET /api/v1/proposals", s.handleProposalsList)
	mux.HandleFunc("POST /api/v1/proposals/{id}/{action}", s.handleProposalAction)

	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/contacts", s.handleContacts)

	mux.HandleFunc("POST /api/v1/message", s.handleMessage)
	mux.HandleFunc("POST /api/v1/chat", s.handleChatStream)
	mux.HandleFunc("GET /api/v1/chat/sessions", s.handleChatSessionsList)
	mux.HandleFunc("DELETE /api/v1/chat/sessions", s.handleChatSessionDelete)
	mux.HandleFunc("GET /api/v1/chat/history", s.handleChatHistory)

	mux.HandleFunc("GET /api/v1/skills", s.handleSkillsList)
	mux.HandleFunc("POST /api/v1/skills/{name}/{action}", s.handleSkillAction)
	mux.HandleFunc("DELETE /api/v1/skills/{name}", s.handleSkillDelete)
	mux.HandleFunc("GET /api/v1/skills/runtime", s.handleSkillsRuntime)

	mux.HandleFunc("GET /api/v1/settings", s.handleSettingsGet)
	mux.HandleFunc("PUT /api/v1/settings", s.handleSettingsPut)

	mux.HandleFunc("GET /api/v1/oauth/google", s.handleOAuthGoogleStart)
	mux.HandleFunc("GET /api/v1/oauth/google/callback", s.handleOAuthGoogleCallback)
	mux.HandleFunc("GET /api/v1/oauth/status", s.handleOAuthStatus)
	mux.HandleFunc("POST /api/v1/oauth/disconnect", s.handleOAuthDisconnect)

	mux.HandleFunc("POST /api/v1/onboarding/analyze", s.handleOnboardingAnalyze)
	mux.HandleFunc("POST /api/v1/onboarding/profile", s.handleOnboardingProfile)

	mux.HandleFunc("GET /api/v1/knowledge/query", s.handleKnowledgeQuery)
	mux.HandleFunc("GET /api/v1/knowledge/contact/{id}", s.handleKnowledgeContact)

	mux.HandleFunc("GET /api/v1/patterns", s.handlePatterns)
	mux.HandleFunc("GET /api/v1/patterns/weekly", s.handlePatternsWeekly)

	mux.HandleFunc("GET /api/v1/feed", s.handleFeed)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Listen.Address, s.cfg.Listen.Port),
		Handler:      s.withAuth(s.withLogging(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // long enough for a full SSE chat stream
	}

	s.log.Info("starting api server", "address", s.cfg.Listen.Address, "port", s.cfg.Listen.Port)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// withAuth enforces the X-API-Key header when cfg.APIKey is set. /health
// always skips auth so load balancers and the daemon's own readiness
// checks never need a key.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" || r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.cfg.APIKey {
			apierr.WriteHTTP(w, apierr.Unauthorized("missing or invalid X-API-Key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime)
	status := map[string]any{
		"version":        Version,
		"uptime_seconds": int(uptime.Seconds()),
		"uptime":         humanize.RelTime(s.startTime, time.Now(), "ago", "from now"),
		"engine":         s.engineStatus(),
		"stats":          s.quickStats(),
	}
	writeJSON(w, s.log, status)
}

func (s *Server) engineStatus() map[string]any {
	if s.rc.Proactive == nil {
		return map[string]any{"running": false}
	}
	st := s.rc.Proactive.GetStatus()
	return map[string]any{"running": st.Running, "task_count": st.TaskCount}
}

func (s *Server) quickStats() map[string]any {
	pending, _ := s.rc.Store.ListPendingProposals()
	stats := map[string]any{"proposals_pending": len(pending)}
	if s.rc.Memory != nil {
		if n, err := s.rc.Memory.Count(); err == nil {
			stats["memory_documents"] = n
		}
	}
	return stats
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	stats := map[string]any{}

	llmStats, err := s.rc.Transparency.GetStats(days)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("llm stats: %v", err))
		return
	}
	stats["llm"] = llmStats

	pending, _ := s.rc.Store.ListPendingProposals()
	stats["proposals_pending"] = len(pending)

	contacts, _ := s.rc.Store.ListContacts(1000)
	stats["contacts_total"] = len(contacts)

	if s.rc.Memory != nil {
		n, _ := s.rc.Memory.Count()
		stats["memory_documents"] = n
	}

	writeJSON(w, s.log, stats)
}
