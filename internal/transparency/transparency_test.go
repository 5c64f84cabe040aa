package transparency

import (
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	"github.com/omnibrain/omnibrain/internal/store"
)

func newTestLogger(t *testing.T) (*Logger, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "omnibrain.db"), slog.Default())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func TestEstimateCost_KnownProvider(t *testing.T) {
	cost := EstimateCost("anthropic", 1_000_000, 1_000_000, 0, 0)
	want := 3.00 + 15.00
	if cost != want {
		t.Errorf("cost = %v, want %v", cost, want)
	}
}

func TestEstimateCost_UnknownProviderIsFree(t *testing.T) {
	if cost := EstimateCost("some-local-model", 1_000_000, 1_000_000, 0, 0); cost != 0 {
		t.Errorf("expected 0 cost for unknown provider, got %v", cost)
	}
}

func TestLogCall_PersistsAndComputesCost(t *testing.T) {
	tl, s := newTestLogger(t)
	tl.LogCall("anthropic", "claude", "what time is it", "it is noon", 1000, 500, 0, 0, "chat", 120*time.Millisecond, true, "")

	calls, err := tl.GetCalls(store.LLMCallFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("GetCalls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	c := calls[0]
	if c.PromptHash == "" {
		t.Error("expected prompt hash to be set")
	}
	if c.PromptPreview != "what time is it" {
		t.Errorf("unexpected preview %q", c.PromptPreview)
	}
	if c.CostEstimate <= 0 {
		t.Errorf("expected positive cost, got %v", c.CostEstimate)
	}
	_ = s
}

func TestWrapStream_ForwardsChunksAndLogsOnClose(t *testing.T) {
	tl, _ := newTestLogger(t)
	src := make(chan Chunk, 3)
	src <- Chunk{Content: "hel", Model: "claude", InputTokens: 10}
	src <- Chunk{Content: "lo", OutputTokens: 5}
	close(src)

	out := tl.WrapStream(src, "anthropic", "chat", "hello prompt")
	var got []Chunk
	for c := range out {
		got = append(got, c)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 forwarded chunks, got %d", len(got))
	}

	calls, err := tl.GetCalls(store.LLMCallFilter{Source: "chat"}, 10, 0)
	if err != nil {
		t.Fatalf("GetCalls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 logged call, got %d", len(calls))
	}
	if calls[0].InputTokens != 10 || calls[0].OutputTokens != 5 {
		t.Errorf("unexpected token totals: %+v", calls[0])
	}
}

func TestPrune_RemovesOldCalls(t *testing.T) {
	tl, s := newTestLogger(t)
	old := store.LLMCallRecord{Provider: "anthropic", Timestamp: time.Now().AddDate(0, 0, -100)}
	if _, err := s.InsertLLMCall(old); err != nil {
		t.Fatalf("InsertLLMCall: %v", err)
	}
	tl.LogCall("anthropic", "claude", "", "", 0, 0, 0, 0, "chat", 0, true, "")

	n, err := tl.Prune(90)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned row, got %d", n)
	}
}
