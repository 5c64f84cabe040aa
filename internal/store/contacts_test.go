package store

import "testing"

func TestUpsertContact_CoalesceMerge(t *testing.T) {
	s := newTestStore(t)

	c, err := s.UpsertContact(Contact{Email: "a@b.com", Name: "Ada", Relationship: RelationshipColleague, Notes: "met at conf"})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if c.InteractionCount != 1 {
		t.Errorf("expected interaction_count 1 on first insert, got %d", c.InteractionCount)
	}

	// Second upsert: empty name/org/notes must NOT clobber existing values;
	// relationship "unknown" must not override colleague; interaction_count
	// must increment rather than reset.
	c2, err := s.UpsertContact(Contact{Email: "a@b.com", Relationship: RelationshipUnknown})
	if err != nil {
		t.Fatalf("UpsertContact (merge): %v", err)
	}
	if c2.Name != "Ada" {
		t.Errorf("expected name preserved, got %q", c2.Name)
	}
	if c2.Notes != "met at conf" {
		t.Errorf("expected notes preserved, got %q", c2.Notes)
	}
	if c2.Relationship != RelationshipColleague {
		t.Errorf("expected relationship preserved, got %q", c2.Relationship)
	}
	if c2.InteractionCount != 2 {
		t.Errorf("expected interaction_count 2, got %d", c2.InteractionCount)
	}

	c3, err := s.UpsertContact(Contact{Email: "a@b.com", Relationship: RelationshipInvestor, Organization: "Acme"})
	if err != nil {
		t.Fatalf("UpsertContact (relationship change): %v", err)
	}
	if c3.Relationship != RelationshipInvestor {
		t.Errorf("expected relationship overwritten by non-unknown value, got %q", c3.Relationship)
	}
	if c3.Organization != "Acme" {
		t.Errorf("expected organization set, got %q", c3.Organization)
	}
}

func TestUpsertContactByName_Synthesizes(t *testing.T) {
	s := newTestStore(t)
	c, err := s.UpsertContactByName("Grace Hopper", RelationshipFriend, "")
	if err != nil {
		t.Fatalf("UpsertContactByName: %v", err)
	}
	if c.Email != "grace.hopper@contact.local" {
		t.Errorf("expected synthesized email, got %q", c.Email)
	}
}

func TestListVIPContacts(t *testing.T) {
	s := newTestStore(t)
	s.UpsertContact(Contact{Email: "vip@b.com", Name: "VIP", AvgResponseTimeHours: 1})
	for i := 0; i < 10; i++ {
		s.UpsertContact(Contact{Email: "vip@b.com"})
	}
	vips, err := s.ListVIPContacts()
	if err != nil {
		t.Fatalf("ListVIPContacts: %v", err)
	}
	if len(vips) != 1 {
		t.Fatalf("expected 1 VIP, got %d", len(vips))
	}
	if !vips[0].IsVIP() {
		t.Errorf("expected IsVIP true for returned contact")
	}
}

func TestResolveContact_FallsBackToFuzzyName(t *testing.T) {
	s := newTestStore(t)
	s.UpsertContact(Contact{Email: "jane@corp.com", Name: "Jane Doe"})

	c, err := s.ResolveContact("Jane")
	if err != nil {
		t.Fatalf("ResolveContact: %v", err)
	}
	if c == nil || c.Email != "jane@corp.com" {
		t.Fatalf("expected fuzzy match on name, got %+v", c)
	}
}
