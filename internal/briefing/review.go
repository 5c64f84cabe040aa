package briefing

import (
	"fmt"
	"time"

	"github.com/omnibrain/omnibrain/internal/store"
)

// StaleProposalAge is how long a proposal may sit pending before
// ReviewEngine flags it, per the original's "still waiting on you" check.
const StaleProposalAge = 48 * time.Hour

// UnpromotedConfidence is the minimum observation confidence ReviewEngine
// considers worth flagging for promotion.
const UnpromotedConfidence = 0.8

// Finding is one item ReviewEngine surfaced.
type Finding struct {
	Kind        string // "stale_proposal" | "unpromoted_pattern"
	Title       string
	Description string
}

// ReviewEngine is a periodic self-check: it flags proposals that have sat
// pending too long and patterns confident enough to promote but not yet
// promoted, generalized from review_engine.py's self-review pass and
// narrowed to what spec.md's "BriefingGenerator + ReviewEngine" line item
// needs once the day/week aggregation is already covered by Generator.
type ReviewEngine struct {
	store *store.Store
}

// NewReviewEngine builds a ReviewEngine over the shared store.
func NewReviewEngine(s *store.Store) *ReviewEngine {
	return &ReviewEngine{store: s}
}

// Review inspects pending proposals and recent observations and returns
// anything that needs human attention.
func (r *ReviewEngine) Review() ([]Finding, error) {
	var findings []Finding

	pending, err := r.store.ListPendingProposals()
	if err != nil {
		return nil, fmt.Errorf("list pending proposals: %w", err)
	}
	cutoff := time.Now().Add(-StaleProposalAge)
	for _, p := range pending {
		if p.CreatedAt.Before(cutoff) {
			findings = append(findings, Finding{
				Kind:        "stale_proposal",
				Title:       p.Title,
				Description: fmt.Sprintf("pending since %s, no decision in %s", p.CreatedAt.Format("Jan 2"), time.Since(p.CreatedAt).Round(time.Hour)),
			})
		}
	}

	obs, err := r.store.ListObservations("", UnpromotedConfidence, 30)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	for _, o := range obs {
		if o.PromotedToAutomation {
			continue
		}
		findings = append(findings, Finding{
			Kind:  "unpromoted_pattern",
			Title: o.PatternType,
			Description: fmt.Sprintf("%s (confidence %.0f%%, seen %dx) — confident enough to automate but not yet promoted",
				o.Description, o.Confidence*100, o.Frequency),
		})
	}
	return findings, nil
}

// Notification renders findings as a single fyi-level proactive
// notification, or reports hasFindings=false when there is nothing to
// surface.
func (r *ReviewEngine) Notification() (title, message string, hasFindings bool, err error) {
	findings, err := r.Review()
	if err != nil {
		return "", "", false, err
	}
	if len(findings) == 0 {
		return "", "", false, nil
	}

	stale, unpromoted := 0, 0
	var lines string
	for _, f := range findings {
		switch f.Kind {
		case "stale_proposal":
			stale++
		case "unpromoted_pattern":
			unpromoted++
		}
		lines += fmt.Sprintf("- %s: %s\n", f.Title, f.Description)
	}
	title = fmt.Sprintf("Self-review: %d stale proposal(s), %d pattern(s) ready to promote", stale, unpromoted)
	return title, lines, true, nil
}
