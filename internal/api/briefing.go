package api

import (
	"net/http"

	"github.com/omnibrain/omnibrain/internal/apierr"
)

func briefingTypeParam(r *http.Request) string {
	t := r.URL.Query().Get("type")
	if t == "" {
		t = "morning"
	}
	return t
}

// handleBriefingGet returns the most recently generated briefing of the
// requested type, generating one on the fly if none exists yet.
func (s *Server) handleBriefingGet(w http.ResponseWriter, r *http.Request) {
	briefingType := briefingTypeParam(r)
	b, err := s.rc.Store.LatestBriefing(briefingType)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("load briefing: %v", err))
		return
	}
	if b == nil {
		_, text, _, err := s.rc.Briefing.GenerateAndStore(briefingType)
		if err != nil {
			apierr.WriteHTTP(w, apierr.Internal("generate briefing: %v", err))
			return
		}
		writeJSON(w, s.log, map[string]string{"type": briefingType, "content": text})
		return
	}
	writeJSON(w, s.log, b)
}

// handleBriefingGenerate forces regeneration regardless of what's cached.
func (s *Server) handleBriefingGenerate(w http.ResponseWriter, r *http.Request) {
	briefingType := briefingTypeParam(r)
	data, text, id, err := s.rc.Briefing.GenerateAndStore(briefingType)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("generate briefing: %v", err))
		return
	}
	writeJSON(w, s.log, map[string]any{
		"id":               id,
		"type":             briefingType,
		"content":          text,
		"events_processed": data.EventsProcessed(),
		"actions_proposed": data.ActionsProposed(),
	})
}

// handleBriefingData returns the structured Data behind a briefing, for
// clients that want to render their own layout instead of the Markdown.
func (s *Server) handleBriefingData(w http.ResponseWriter, r *http.Request) {
	briefingType := briefingTypeParam(r)
	data := s.rc.Briefing.CollectData(briefingType)
	writeJSON(w, s.log, data)
}
