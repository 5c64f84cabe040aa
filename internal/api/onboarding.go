package api

import (
	"encoding/json"
	"net/http"

	"github.com/omnibrain/omnibrain/internal/apierr"
)

// handleOnboardingAnalyze runs a first-pass analysis of whatever has been
// ingested so far (contacts, events), the same data Briefing and Patterns
// already aggregate, repackaged as an onboarding summary.
func (s *Server) handleOnboardingAnalyze(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.rc.Store.ListContacts(1000)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list contacts: %v", err))
		return
	}
	var vips int
	for _, c := range contacts {
		if c.IsVIP() {
			vips++
		}
	}

	analysis, err := s.rc.Patterns.WeeklyAnalysis()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("weekly analysis: %v", err))
		return
	}

	writeJSON(w, s.log, map[string]any{
		"contacts_total":     len(contacts),
		"vip_contacts":       vips,
		"patterns_detected":  analysis.PatternsDetected,
		"automations_proposed": analysis.AutomationsProposed,
	})
}

// ProfileUpdate is the body of POST /onboarding/profile: user-declared
// preferences seeded directly (confidence 1.0, learned_from "onboarding").
type ProfileUpdate map[string]any

func (s *Server) handleOnboardingProfile(w http.ResponseWriter, r *http.Request) {
	var update ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		apierr.WriteHTTP(w, apierr.BadRequest("invalid request body: %v", err))
		return
	}
	for key, value := range update {
		if err := s.rc.Store.SetPreference(key, value, 1.0, "onboarding"); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("set preference %s: %v", key, err))
			return
		}
	}
	writeJSON(w, s.log, map[string]string{"status": "profile saved"})
}
