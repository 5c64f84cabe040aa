package skills

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/store"
)

func newTestDeps(t *testing.T) (*store.Store, *memory.Memory, *events.Bus) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "omnibrain.db"), slog.Default())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	m, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"), nil, slog.Default())
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return s, m, events.New()
}

func rawParams(t *testing.T, m map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return b
}

func TestCheckPermission_DeniesWithoutGrant(t *testing.T) {
	s, m, bus := newTestDeps(t)
	b := NewBridge("test-skill", nil, s, m, nil, bus, nil, nil)
	if b.CheckPermission(RPCMemorySearch) {
		t.Error("expected memory_search denied without read_memory permission")
	}
	if !b.CheckPermission(RPCLog) {
		t.Error("expected log always allowed")
	}
}

func TestHandle_PermissionDenied(t *testing.T) {
	s, m, bus := newTestDeps(t)
	b := NewBridge("test-skill", nil, s, m, nil, bus, nil, nil)
	resp := b.Handle(context.Background(), Request{ID: 1, Method: RPCMemorySearch, Params: rawParams(t, map[string]any{"query": "x"})})
	if resp.Error == nil || resp.Error.Code != -32001 {
		t.Fatalf("expected permission-denied error, got %+v", resp)
	}
}

func TestHandle_UnknownMethodRejected(t *testing.T) {
	s, m, bus := newTestDeps(t)
	b := NewBridge("test-skill", []string{"read_memory", "write_memory", "notify", "propose_actions", "llm_access", "read_events", "read_contacts", "read_preferences", "emit_events"}, s, m, nil, bus, nil, nil)
	resp := b.Handle(context.Background(), Request{ID: 1, Method: "launch_rockets"})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected method-not-found error, got %+v", resp)
	}
	if b.CheckPermission("launch_rockets") {
		t.Error("expected unknown method denied by CheckPermission")
	}
}

func TestHandle_MemoryStoreAndSearch(t *testing.T) {
	s, m, bus := newTestDeps(t)
	b := NewBridge("test-skill", []string{"write_memory", "read_memory"}, s, m, nil, bus, nil, nil)

	storeResp := b.Handle(context.Background(), Request{ID: 1, Method: RPCMemoryStore, Params: rawParams(t, map[string]any{"text": "hello from skill"})})
	if storeResp.Error != nil {
		t.Fatalf("unexpected error: %+v", storeResp.Error)
	}

	searchResp := b.Handle(context.Background(), Request{ID: 2, Method: RPCMemorySearch, Params: rawParams(t, map[string]any{"query": "hello"})})
	if searchResp.Error != nil {
		t.Fatalf("unexpected error: %+v", searchResp.Error)
	}
	results, ok := searchResp.Result.([]map[string]any)
	if !ok || len(results) != 1 {
		t.Fatalf("expected 1 search result, got %+v", searchResp.Result)
	}
}

func TestHandle_RateLimitExceeded(t *testing.T) {
	s, m, bus := newTestDeps(t)
	b := NewBridge("test-skill", nil, s, m, nil, bus, nil, nil)
	b.maxCallsPerInvocation = 2
	b.Handle(context.Background(), Request{ID: 1, Method: RPCLog, Params: rawParams(t, map[string]any{"message": "a"})})
	b.Handle(context.Background(), Request{ID: 2, Method: RPCLog, Params: rawParams(t, map[string]any{"message": "b"})})
	resp := b.Handle(context.Background(), Request{ID: 3, Method: RPCLog, Params: rawParams(t, map[string]any{"message": "c"})})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected rate-limit error, got %+v", resp)
	}
}

func TestHandle_NotifyPublishesToBus(t *testing.T) {
	s, m, bus := newTestDeps(t)
	b := NewBridge("test-skill", []string{"notify"}, s, m, nil, bus, nil, nil)
	sub := bus.Subscribe(events.TopicNotification, 4)
	defer bus.Unsubscribe(sub)

	resp := b.Handle(context.Background(), Request{ID: 1, Method: RPCNotify, Params: rawParams(t, map[string]any{"title": "hi"})})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	select {
	case ev := <-sub:
		if ev.Payload["title"] != "hi" {
			t.Errorf("unexpected payload: %+v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected notification event")
	}
}

func TestRuntime_DiscoverAndInvoke(t *testing.T) {
	s, m, bus := newTestDeps(t)
	rt := New(s, m, nil, bus, nil, slog.Default(), 0)

	invoked := false
	err := rt.Discover(Manifest{
		Name:        "greeter",
		Version:     "1.0",
		Permissions: []string{"write_memory"},
	}, func(ctx context.Context, call func(string, map[string]any) (any, error)) error {
		invoked = true
		_, err := call(RPCMemoryStore, map[string]any{"text": "hi"})
		return err
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if err := rt.Invoke(context.Background(), "greeter"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !invoked {
		t.Error("expected handler to run")
	}
}

func TestRuntime_InvokeUnregisteredFails(t *testing.T) {
	s, m, bus := newTestDeps(t)
	rt := New(s, m, nil, bus, nil, slog.Default(), 0)
	if err := rt.Invoke(context.Background(), "nope"); err == nil {
		t.Error("expected error invoking unregistered skill")
	}
}
