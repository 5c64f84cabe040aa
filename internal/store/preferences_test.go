package store

import "testing"

func TestPreferences_RoundTripAndDefault(t *testing.T) {
	s := newTestStore(t)

	if got := s.GetPreference("tone", "neutral"); got != "neutral" {
		t.Errorf("expected default before set, got %v", got)
	}

	if err := s.SetPreference("tone", "concise", 0.9, "user_feedback"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if got := s.GetPreference("tone", "neutral"); got != "concise" {
		t.Errorf("expected stored string value, got %v", got)
	}

	if err := s.SetPreference("quiet_hours", map[string]any{"start": 22, "end": 7}, 0.5, "config"); err != nil {
		t.Fatalf("SetPreference (object): %v", err)
	}
	got := s.GetPreference("quiet_hours", nil)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected object value, got %T", got)
	}
	if m["start"].(float64) != 22 {
		t.Errorf("expected start=22, got %v", m["start"])
	}

	all, err := s.AllPreferences()
	if err != nil {
		t.Fatalf("AllPreferences: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 preferences, got %d", len(all))
	}
}
