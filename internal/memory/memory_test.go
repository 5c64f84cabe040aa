package memory

import (
	"path/filepath"
	"testing"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "memory.db"), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestStoreAndGetByID_RoundTrip(t *testing.T) {
	m := newTestMemory(t)
	id, err := m.Store("hello world", "", "gmail", "email", nil, nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := m.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Text != "hello world" {
		t.Fatalf("expected round-tripped document, got %+v", got)
	}
}

func TestStore_DeterministicIDWhenUnset(t *testing.T) {
	m := newTestMemory(t)
	id1, _ := m.Store("same text", "", "gmail", "email", nil, nil)
	id2 := docID("gmail", "same text")
	if id1 != id2 {
		t.Errorf("expected deterministic id %q, got %q", id2, id1)
	}
}

func TestSearch_EmptyQueryReturnsEmpty(t *testing.T) {
	m := newTestMemory(t)
	m.Store("hello world", "", "gmail", "email", nil, nil)
	docs, err := m.Search("!!!", 10, "all", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty result for sanitized-empty query, got %d", len(docs))
	}
}

func TestSearch_FindsStoredDocument(t *testing.T) {
	m := newTestMemory(t)
	m.Store("quarterly budget review", "", "gmail", "email", nil, nil)
	docs, err := m.Search("budget", 10, "all", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(docs))
	}
}

func TestDelete_RemovesDocument(t *testing.T) {
	m := newTestMemory(t)
	id, _ := m.Store("temp note", "", "chat", "chat", nil, nil)
	if err := m.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := m.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestCount(t *testing.T) {
	m := newTestMemory(t)
	m.Store("a", "", "gmail", "email", nil, nil)
	m.Store("b", "", "gmail", "email", nil, nil)
	n, err := m.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestStoreEmail_BuildsCanonicalText(t *testing.T) {
	m := newTestMemory(t)
	id, err := m.StoreEmail("jane@corp.com", "Budget", "please review", nil, nil)
	if err != nil {
		t.Fatalf("StoreEmail: %v", err)
	}
	got, _ := m.GetByID(id)
	if got == nil {
		t.Fatalf("expected document stored")
	}
	want := "Email from jane@corp.com: Budget\n\nplease review"
	if got.Text != want {
		t.Errorf("text = %q, want %q", got.Text, want)
	}
}

type fakeVectorStore struct {
	stored  []Document
	results []Document
}

func (f *fakeVectorStore) Store(doc Document) error { f.stored = append(f.stored, doc); return nil }
func (f *fakeVectorStore) Search(query string, maxResults int, sourceFilter string) ([]Document, error) {
	return f.results, nil
}
func (f *fakeVectorStore) Delete(id string) error { return nil }

func TestSearch_PrefersVectorStoreWhenNonEmpty(t *testing.T) {
	vs := &fakeVectorStore{results: []Document{{ID: "v1", Text: "from vector"}}}
	m, err := Open(filepath.Join(t.TempDir(), "memory.db"), vs, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()
	m.Store("keyword hit", "", "gmail", "email", nil, nil)

	docs, err := m.Search("anything", 10, "all", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "v1" {
		t.Fatalf("expected vector result preferred, got %+v", docs)
	}
}
