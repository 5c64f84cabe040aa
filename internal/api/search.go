package api

import (
	"net/http"
	"strconv"

	"github.com/omnibrain/omnibrain/internal/apierr"
	"github.com/omnibrain/omnibrain/internal/store"
)

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// handleSearch searches both the store's event FTS index and (if
// available) the keyword memory index, merging both result sets.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("q is required"))
		return
	}
	limit := queryInt(r, "limit", 20)

	events, err := s.rc.Store.FTSSearchEvents(q, limit)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("search events: %v", err))
		return
	}
	if source := r.URL.Query().Get("source"); source != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Source == source {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	result := map[string]any{"events": events}
	if s.rc.Memory != nil {
		docs, err := s.rc.Memory.Search(q, limit, "", 0)
		if err == nil {
			result["memory"] = docs
		}
	}
	writeJSON(w, s.log, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := store.EventQuery{
		Source: r.URL.Query().Get("source"),
		Limit:  queryInt(r, "limit", 50),
	}
	events, err := s.rc.Store.QueryEvents(q)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("query events: %v", err))
		return
	}
	writeJSON(w, s.log, events)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.rc.Store.ListContacts(queryInt(r, "limit", 100))
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list contacts: %v", err))
		return
	}
	writeJSON(w, s.log, contacts)
}
