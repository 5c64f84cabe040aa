package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnibrain/omnibrain/internal/briefing"
	"github.com/omnibrain/omnibrain/internal/chatbridge"
	"github.com/omnibrain/omnibrain/internal/config"
	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/knowledge"
	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/patterns"
	"github.com/omnibrain/omnibrain/internal/scoring"
	"github.com/omnibrain/omnibrain/internal/skills"
	"github.com/omnibrain/omnibrain/internal/store"
	"github.com/omnibrain/omnibrain/internal/transparency"
)

func newTestServer(t *testing.T) (*Server, *Resources) {
	t.Helper()
	log := slog.Default()

	st, err := store.Open(filepath.Join(t.TempDir(), "omnibrain.db"), log)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mem, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"), nil, log)
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	bus := events.New()
	cfg := config.Default()
	kg := knowledge.New(st, mem)

	rc := &Resources{
		Config:       cfg,
		Store:        st,
		Memory:       mem,
		Bus:          bus,
		Scorer:       scoring.New(log),
		Patterns:     patterns.New(st, log, 0.7),
		Knowledge:    kg,
		Briefing:     briefing.New(st, mem),
		Transparency: transparency.New(st, log),
		SkillRuntime: skills.New(st, mem, nil, bus, nil, log, 0),
		ChatBridge: chatbridge.New(chatbridge.Deps{
			Store: st, Memory: mem, Knowledge: kg,
		}, nil, log),
	}
	return New(cfg, rc, log), rc
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/proposals", s.handleProposalsList)
	mux.HandleFunc("POST /api/v1/proposals/{id}/{action}", s.handleProposalAction)
	mux.HandleFunc("GET /api/v1/briefing", s.handleBriefingGet)
	mux.HandleFunc("GET /api/v1/settings", s.handleSettingsGet)
	mux.HandleFunc("PUT /api/v1/settings", s.handleSettingsPut)
	mux.HandleFunc("GET /api/v1/oauth/status", s.handleOAuthStatus)
	mux.HandleFunc("POST /api/v1/message", s.handleMessage)

	r := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, "GET", "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleStatus_ReportsUptimeAndEngine(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, "GET", "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["version"] != Version {
		t.Errorf("version = %v", body["version"])
	}
	if _, ok := body["uptime_seconds"].(float64); !ok {
		t.Errorf("uptime_seconds = %v", body["uptime_seconds"])
	}
	if _, ok := body["engine"].(map[string]any); !ok {
		t.Errorf("engine = %v", body["engine"])
	}
}

func TestHandleProposalAction_ApproveUpdatesStatus(t *testing.T) {
	s, rc := newTestServer(t)
	id, err := rc.Store.InsertProposal(store.Proposal{Type: "reply", Title: "x", Status: store.ProposalPending})
	if err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}

	w := doRequest(t, s, "POST", "/api/v1/proposals/"+id+"/approve", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	pending, err := rc.Store.ListPendingProposals()
	if err != nil {
		t.Fatalf("ListPendingProposals: %v", err)
	}
	for _, p := range pending {
		if p.ID == id {
			t.Fatal("approved proposal still pending")
		}
	}
}

func TestHandleProposalAction_UnknownActionIsBadRequest(t *testing.T) {
	s, rc := newTestServer(t)
	id, _ := rc.Store.InsertProposal(store.Proposal{Type: "reply", Title: "x", Status: store.ProposalPending})

	w := doRequest(t, s, "POST", "/api/v1/proposals/"+id+"/launch_rockets", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleEvents_FiltersBySource(t *testing.T) {
	s, rc := newTestServer(t)
	rc.Store.InsertEvent(store.Event{Source: "gmail", EventType: "message", Title: "hi", Timestamp: time.Now()})
	rc.Store.InsertEvent(store.Event{Source: "calendar", EventType: "meeting", Title: "standup", Timestamp: time.Now()})

	w := doRequest(t, s, "GET", "/api/v1/events?source=gmail", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []store.Event
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Source != "gmail" {
		t.Fatalf("got %+v", got)
	}
}

func TestHandleSettings_RoundTrips(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, "PUT", "/api/v1/settings", map[string]any{"briefing_time": "07:30"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, "GET", "/api/v1/settings", nil)
	var prefs map[string]store.Preference
	if err := json.Unmarshal(w.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if prefs["briefing_time"].Value != "07:30" {
		t.Fatalf("prefs = %+v", prefs)
	}
}

func TestHandleOAuthStatus_NotConnectedWithoutVault(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, "GET", "/api/v1/oauth/status", nil)
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["connected"] != false {
		t.Errorf("expected connected=false without a vault, got %+v", body)
	}
}

func TestHandleMessage_FallsBackWithoutAgent(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, "POST", "/api/v1/message", MessageRequest{Message: "what did anyone say about budgets"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["response"] == "" {
		t.Error("expected a non-empty fallback response")
	}
}
