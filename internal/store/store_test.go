package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omnibrain.db")
	s, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := newTestStore(t)
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='events'`).Scan(&name)
	if err != nil {
		t.Fatalf("events table missing: %v", err)
	}
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	if err := s.Vacuum(); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}

func TestExportAll_WritesManifestAndTables(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InsertEvent(Event{Source: "email", EventType: "message", Title: "hello world"}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	dir := t.TempDir()
	if err := s.ExportAll(dir); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	for _, f := range []string{"manifest.json", "events.json", "contacts.json"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected export file %s: %v", f, err)
		}
	}
}

func TestWipeAll_RemovesRows(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InsertEvent(Event{Source: "email", EventType: "message", Title: "hello"}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := s.WipeAll(); err != nil {
		t.Fatalf("WipeAll: %v", err)
	}
	events, err := s.QueryEvents(EventQuery{})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events after wipe, got %d", len(events))
	}
}

func TestPrune_ZeroEventDaysIsNoOp(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertEvent(Event{Source: "email", EventType: "message", Title: "old"})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := s.MarkProcessed(id); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	// eventDays=0 disables the prune branch, so the processed event stays.
	counts, err := s.Prune(0, 0, 0)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if counts.Events != 0 {
		t.Errorf("expected no-op prune, got %d events removed", counts.Events)
	}
}
