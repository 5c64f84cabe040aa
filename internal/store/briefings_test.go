package store

import "testing"

func TestInsertBriefing_ReplacesOnTypeAndDate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertBriefing(Briefing{Date: "2026-07-31", Type: BriefingMorning, Content: "draft", EventsProcessed: 3})
	if err != nil {
		t.Fatalf("InsertBriefing: %v", err)
	}

	_, err = s.InsertBriefing(Briefing{Date: "2026-07-31", Type: BriefingMorning, Content: "final", EventsProcessed: 5})
	if err != nil {
		t.Fatalf("InsertBriefing (replace): %v", err)
	}

	b, err := s.LatestBriefing(BriefingMorning)
	if err != nil {
		t.Fatalf("LatestBriefing: %v", err)
	}
	if b == nil || b.Content != "final" || b.EventsProcessed != 5 {
		t.Fatalf("expected replaced briefing, got %+v", b)
	}
}

func TestLatestBriefing_NoneReturnsNil(t *testing.T) {
	s := newTestStore(t)
	b, err := s.LatestBriefing(BriefingWeekly)
	if err != nil {
		t.Fatalf("LatestBriefing: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil for no briefings, got %+v", b)
	}
}
