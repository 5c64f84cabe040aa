package briefing

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/store"
)

func newTestGenerator(t *testing.T) (*Generator, *store.Store, *memory.Memory) {
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
	return New(s, m), s, m
}

func TestCollectData_CountsEmailsAndCalendar(t *testing.T) {
	g, s, _ := newTestGenerator(t)
	now := time.Now()

	s.InsertEvent(store.Event{Source: "gmail", EventType: "message", Title: "Budget review", Timestamp: now, Priority: 4,
		Metadata: map[string]any{"sender": "alice@corp.com"}})
	s.InsertEvent(store.Event{Source: "calendar", EventType: "meeting", Title: "Standup", Timestamp: now.Add(time.Hour),
		Metadata: map[string]any{"duration_minutes": float64(30), "attendee_count": float64(6)}})

	data := g.CollectData("morning")
	if data.Emails.Total != 1 || data.Emails.Urgent != 1 {
		t.Errorf("unexpected email section: %+v", data.Emails)
	}
	if data.Calendar.TotalEvents != 1 {
		t.Errorf("unexpected calendar section: %+v", data.Calendar)
	}
	if len(data.Priorities) == 0 {
		t.Error("expected a priority item for the 6-attendee meeting")
	}
}

func TestFormatText_OmitsEmptySections(t *testing.T) {
	g, _, _ := newTestGenerator(t)
	data := Data{Date: "2026-07-31", Type: "morning"}
	text := g.FormatText(data)
	if text == "" {
		t.Fatal("expected non-empty briefing text even with no data")
	}
	for _, section := range []string{"## Emails", "## Calendar", "## Pending Actions"} {
		if contains(text, section) {
			t.Errorf("expected %q to be omitted from empty briefing, got:\n%s", section, text)
		}
	}
}

func TestFormatHTML_RendersMarkdownHeadings(t *testing.T) {
	g, _, _ := newTestGenerator(t)
	data := Data{Date: "2026-07-31", Type: "morning"}

	html, err := g.FormatHTML(data)
	if err != nil {
		t.Fatalf("FormatHTML: %v", err)
	}
	if !contains(html, "<h1>") {
		t.Errorf("expected rendered HTML to contain a heading, got:\n%s", html)
	}
}

func TestGenerateAndStore_PersistsBriefing(t *testing.T) {
	g, s, _ := newTestGenerator(t)
	_, _, id, err := g.GenerateAndStore("morning")
	if err != nil {
		t.Fatalf("GenerateAndStore: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty briefing id")
	}
	latest, err := s.LatestBriefing("morning")
	if err != nil {
		t.Fatalf("LatestBriefing: %v", err)
	}
	if latest == nil {
		t.Fatal("expected latest briefing to be found")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
