package api

import (
	"net/http"

	"github.com/omnibrain/omnibrain/internal/apierr"
)

func (s *Server) handleKnowledgeQuery(w http.ResponseWriter, r *http.Request) {
	if s.rc.Knowledge == nil {
		apierr.WriteHTTP(w, apierr.Unavailable("knowledge graph unavailable (memory store failed to open)"))
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("q is required"))
		return
	}
	answer, err := s.rc.Knowledge.Ask(q, queryInt(r, "limit", 10), queryInt(r, "days", 90))
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("knowledge query: %v", err))
		return
	}
	writeJSON(w, s.log, answer)
}

func (s *Server) handleKnowledgeContact(w http.ResponseWriter, r *http.Request) {
	if s.rc.Knowledge == nil {
		apierr.WriteHTTP(w, apierr.Unavailable("knowledge graph unavailable (memory store failed to open)"))
		return
	}
	id := r.PathValue("id")
	summary, err := s.rc.Knowledge.GetContactSummary(id)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("contact summary: %v", err))
		return
	}
	if summary == nil {
		apierr.WriteHTTP(w, apierr.NotFound("no contact summary for %q", id))
		return
	}
	writeJSON(w, s.log, summary)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	detected, err := s.rc.Patterns.Detect(queryInt(r, "min_occurrences", 3), 0.6, queryInt(r, "days", 30))
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("detect patterns: %v", err))
		return
	}
	writeJSON(w, s.log, detected)
}

func (s *Server) handlePatternsWeekly(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.rc.Patterns.WeeklyAnalysis()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("weekly analysis: %v", err))
		return
	}
	writeJSON(w, s.log, analysis)
}
