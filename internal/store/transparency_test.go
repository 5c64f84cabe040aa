package store

import "testing"

func TestLLMCalls_InsertFilterAndStats(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.InsertLLMCall(LLMCallRecord{Provider: "anthropic", Model: "claude", Source: "briefing", InputTokens: 100, OutputTokens: 50, CostEstimate: 0.01, Success: true}); err != nil {
		t.Fatalf("InsertLLMCall: %v", err)
	}
	if _, err := s.InsertLLMCall(LLMCallRecord{Provider: "openai", Model: "gpt", Source: "chat", InputTokens: 200, OutputTokens: 20, CostEstimate: 0.02, Success: true}); err != nil {
		t.Fatalf("InsertLLMCall: %v", err)
	}

	calls, err := s.GetLLMCalls(LLMCallFilter{Provider: "anthropic"}, 10, 0)
	if err != nil {
		t.Fatalf("GetLLMCalls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 filtered call, got %d", len(calls))
	}

	stats, err := s.GetLLMStats(30)
	if err != nil {
		t.Fatalf("GetLLMStats: %v", err)
	}
	if stats.ByProvider["anthropic"].Calls != 1 || stats.ByProvider["openai"].Calls != 1 {
		t.Fatalf("expected per-provider aggregates, got %+v", stats.ByProvider)
	}
	if stats.Today.Calls != 2 {
		t.Errorf("expected both calls counted in today's aggregate, got %d", stats.Today.Calls)
	}

	costs, err := s.GetDailyCosts(30)
	if err != nil {
		t.Fatalf("GetDailyCosts: %v", err)
	}
	var total float64
	for _, c := range costs {
		total += c
	}
	if total < 0.029 || total > 0.031 {
		t.Errorf("expected total cost ~0.03, got %f", total)
	}
}

func TestPruneLLMCalls(t *testing.T) {
	s := newTestStore(t)
	s.InsertLLMCall(LLMCallRecord{Provider: "anthropic", Model: "claude", Source: "chat"})
	n, err := s.PruneLLMCalls(0)
	if err != nil {
		t.Fatalf("PruneLLMCalls: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 call pruned with days=0 cutoff at now, got %d", n)
	}
}
