package api

import (
	"encoding/json"
	"net/http"

	"github.com/omnibrain/omnibrain/internal/apierr"
)

// handleSettingsGet returns every preference row — the durable settings
// surface is the store's preferences table (internal/store.Preference),
// the same store one used by skills and the scorer to learn values.
func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.rc.Store.AllPreferences()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list settings: %v", err))
		return
	}
	writeJSON(w, s.log, prefs)
}

// SettingsUpdate is the body of PUT /settings: a flat key/value map applied
// as manually-set preferences (confidence 1.0, learned_from "user").
type SettingsUpdate map[string]any

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var update SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		apierr.WriteHTTP(w, apierr.BadRequest("invalid request body: %v", err))
		return
	}
	for key, value := range update {
		if err := s.rc.Store.SetPreference(key, value, 1.0, "user"); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("set preference %s: %v", key, err))
			return
		}
	}
	prefs, err := s.rc.Store.AllPreferences()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list settings: %v", err))
		return
	}
	writeJSON(w, s.log, prefs)
}
