package briefing

import "github.com/omnibrain/omnibrain/internal/store"

// ApprovalGate is a policy object listing which proposal types may
// auto-execute without sitting in the pending queue for explicit
// approval, grounded on daemon.py/review_engine.py's flat allow-list
// design (spec.md §4.11 and §9 reference it but leave the shape to the
// implementation).
type ApprovalGate struct {
	autoApprove map[string]bool
}

// NewApprovalGate builds a gate from the action-type strings configured
// under approval.auto_approve.
func NewApprovalGate(autoApprove []string) *ApprovalGate {
	g := &ApprovalGate{autoApprove: make(map[string]bool, len(autoApprove))}
	for _, t := range autoApprove {
		g.autoApprove[t] = true
	}
	return g
}

// Allows reports whether a proposal of this type may auto-execute without
// a pending approval step.
func (g *ApprovalGate) Allows(proposalType string) bool {
	return g.autoApprove[proposalType]
}

// ResolveStatus returns the status a newly created proposal of this type
// should start in: approved immediately if its type is on the allow-list,
// pending otherwise. Callers that auto-approve are still responsible for
// actually executing the underlying action.
func (g *ApprovalGate) ResolveStatus(proposalType string) string {
	if g.Allows(proposalType) {
		return store.ProposalApproved
	}
	return store.ProposalPending
}
