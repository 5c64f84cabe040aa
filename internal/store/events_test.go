package store

import "testing"

func TestInsertEvent_DeduplicatesAndFTSSearches(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.InsertEvent(Event{Source: "gmail", EventType: "message", Title: "Q3 budget review", Body: "numbers attached"})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	events, err := s.QueryEvents(EventQuery{Source: "gmail"})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ts := events[0].Timestamp

	id2, err := s.InsertEvent(Event{
		ID: "", Source: "gmail", EventType: "message", Title: "Q3 budget review",
		Timestamp: ts, Body: "updated numbers", Priority: 2,
	})
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected replace to preserve id, got %s != %s", id1, id2)
	}

	found, err := s.FTSSearchEvents("budget", 10)
	if err != nil {
		t.Fatalf("FTSSearchEvents: %v", err)
	}
	if len(found) != 1 || found[0].Body != "updated numbers" {
		t.Errorf("expected updated event to surface in search, got %+v", found)
	}
}

func TestFTSSearchEvents_EmptyQueryReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	s.InsertEvent(Event{Source: "gmail", EventType: "message", Title: "hello"})

	out, err := s.FTSSearchEvents("!!!", 10)
	if err != nil {
		t.Fatalf("FTSSearchEvents: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result for sanitized-empty query, got %d", len(out))
	}
}

func TestMarkProcessed(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.InsertEvent(Event{Source: "calendar", EventType: "reminder", Title: "standup"})
	if err := s.MarkProcessed(id); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	events, err := s.QueryEvents(EventQuery{UnprocessedOnly: true})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	for _, e := range events {
		if e.ID == id {
			t.Errorf("expected processed event to be excluded")
		}
	}
}

func TestSanitizeFTSQuery_ORJoinsTerms(t *testing.T) {
	got := sanitizeFTSQuery(`budget; review!`)
	want := `"budget" OR "review"`
	if got != want {
		t.Errorf("sanitizeFTSQuery = %q, want %q", got, want)
	}
}
