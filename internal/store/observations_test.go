package store

import "testing"

func TestObservations_ListAndPromote(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertObservation(Observation{PatternType: "daily_summary_request", Description: "asks for summary every morning", Confidence: 0.8})
	if err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}

	obs, err := s.ListObservations("", 0, 30)
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}
	if len(obs) != 1 || obs[0].ID != id {
		t.Fatalf("expected 1 observation, got %+v", obs)
	}

	obs2, err := s.ListObservations("daily_summary_request", 0.9, 30)
	if err != nil {
		t.Fatalf("ListObservations (filtered): %v", err)
	}
	if len(obs2) != 0 {
		t.Errorf("expected confidence filter to exclude row, got %d", len(obs2))
	}

	if err := s.PromoteObservations([]string{id}); err != nil {
		t.Fatalf("PromoteObservations: %v", err)
	}
	obs3, _ := s.ListObservations("", 0, 30)
	if !obs3[0].PromotedToAutomation {
		t.Errorf("expected observation marked promoted")
	}
}
