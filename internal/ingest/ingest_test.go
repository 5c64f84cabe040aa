package ingest

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "omnibrain.db"), slog.Default())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreEvents_PersistsAndPublishes(t *testing.T) {
	s := newTestStore(t)
	bus := events.New()
	sub := bus.Subscribe(events.TopicNewEmail, 4)
	defer bus.Unsubscribe(sub)

	n, err := StoreEvents(s, bus, events.TopicNewEmail, []NormalizedEvent{
		{Source: "gmail", SourceID: "123", EventType: "email_received", Title: "hi", Timestamp: time.Now()},
	})
	if err != nil {
		t.Fatalf("StoreEvents: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored = %d, want 1", n)
	}

	select {
	case ev := <-sub:
		if ev.Topic != events.TopicNewEmail {
			t.Errorf("topic = %q", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}

	got, err := s.QueryEvents(store.EventQuery{Source: "gmail", Limit: 10})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(got) != 1 || got[0].Metadata["source_id"] != "123" {
		t.Fatalf("got %+v", got)
	}
}

func TestStripHTML_ExtractsVisibleText(t *testing.T) {
	in := "<html><body><p>Hello <b>world</b></p><script>evil()</script></body></html>"
	out := stripHTML(in)
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("stripHTML lost visible text: %q", out)
	}
	if strings.Contains(out, "evil()") {
		t.Errorf("stripHTML kept script content: %q", out)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if !looksLikeHTML("<html><body>hi</body></html>") {
		t.Error("expected HTML body to be detected")
	}
	if looksLikeHTML("plain text email body") {
		t.Error("expected plain text to not be detected as HTML")
	}
}

func TestImportVCard_UpsertsContacts(t *testing.T) {
	s := newTestStore(t)
	card := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Jane Doe\r\nEMAIL:jane@example.com\r\nORG:Acme\r\nEND:VCARD\r\n"

	n, err := ImportVCard(s, strings.NewReader(card))
	if err != nil {
		t.Fatalf("ImportVCard: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported = %d, want 1", n)
	}

	got, err := s.GetContact("jane@example.com")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got == nil || got.Name != "Jane Doe" || got.Organization != "Acme" {
		t.Fatalf("got %+v", got)
	}
}
