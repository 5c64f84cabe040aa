package store

import (
	"testing"
	"time"
)

func TestInsertProposal_DefaultsToPending(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertProposal(Proposal{Type: "reply_draft", Title: "Reply to Jane", Priority: 3})
	if err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}

	pending, err := s.ListPendingProposals()
	if err != nil {
		t.Fatalf("ListPendingProposals: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("expected proposal pending, got %+v", pending)
	}
}

func TestSnoozeAndWake(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.InsertProposal(Proposal{Type: "reply_draft", Title: "x"})

	past := time.Now().Add(-time.Minute)
	if err := s.SnoozeProposal(id, past); err != nil {
		t.Fatalf("SnoozeProposal: %v", err)
	}
	if pending, _ := s.ListPendingProposals(); len(pending) != 0 {
		t.Fatalf("expected no pending proposals while snoozed, got %d", len(pending))
	}

	woken, err := s.WakeSnoozedProposals()
	if err != nil {
		t.Fatalf("WakeSnoozedProposals: %v", err)
	}
	if woken != 1 {
		t.Fatalf("expected 1 proposal woken, got %d", woken)
	}
	pending, _ := s.ListPendingProposals()
	if len(pending) != 1 {
		t.Fatalf("expected proposal back to pending, got %d", len(pending))
	}
}

func TestExpireOldProposals(t *testing.T) {
	s := newTestStore(t)
	expired := time.Now().Add(-time.Hour)
	id, _ := s.InsertProposal(Proposal{Type: "reply_draft", Title: "x", ExpiresAt: &expired})

	n, err := s.ExpireOldProposals()
	if err != nil {
		t.Fatalf("ExpireOldProposals: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	pending, _ := s.ListPendingProposals()
	for _, p := range pending {
		if p.ID == id {
			t.Errorf("expected expired proposal to leave the pending set")
		}
	}
}

func TestUpdateProposalStatus(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.InsertProposal(Proposal{Type: "reply_draft", Title: "x"})
	if err := s.UpdateProposalStatus(id, ProposalApproved, "sent"); err != nil {
		t.Fatalf("UpdateProposalStatus: %v", err)
	}
	pending, _ := s.ListPendingProposals()
	for _, p := range pending {
		if p.ID == id {
			t.Errorf("expected approved proposal to leave the pending set")
		}
	}
}
