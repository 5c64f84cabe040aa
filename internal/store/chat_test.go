package store

import "testing"

func TestChatMessages_OrderingAndRecent(t *testing.T) {
	s := newTestStore(t)
	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.InsertChatMessage(ChatMessage{SessionID: "s1", Role: RoleUser, Content: content}); err != nil {
			t.Fatalf("InsertChatMessage: %v", err)
		}
	}

	all, err := s.GetChatMessages("s1")
	if err != nil {
		t.Fatalf("GetChatMessages: %v", err)
	}
	if len(all) != 3 || all[0].Content != "first" || all[2].Content != "third" {
		t.Fatalf("expected chronological order, got %+v", all)
	}

	recent, err := s.GetRecentChatMessages("s1", 2)
	if err != nil {
		t.Fatalf("GetRecentChatMessages: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "second" || recent[1].Content != "third" {
		t.Fatalf("expected last 2 in chronological order, got %+v", recent)
	}
}

func TestListSessionIDs_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	s.InsertChatMessage(ChatMessage{SessionID: "old", Role: RoleUser, Content: "a"})
	s.InsertChatMessage(ChatMessage{SessionID: "new", Role: RoleUser, Content: "b"})

	ids, err := s.ListSessionIDs()
	if err != nil {
		t.Fatalf("ListSessionIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(ids))
	}
}

func TestDeleteChatSession(t *testing.T) {
	s := newTestStore(t)
	s.InsertChatMessage(ChatMessage{SessionID: "s1", Role: RoleUser, Content: "a"})
	if err := s.DeleteChatSession("s1"); err != nil {
		t.Fatalf("DeleteChatSession: %v", err)
	}
	msgs, _ := s.GetChatMessages("s1")
	if len(msgs) != 0 {
		t.Errorf("expected messages deleted, got %d", len(msgs))
	}
}
