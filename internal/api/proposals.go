package api

import (
	"net/http"
	"time"

	"github.com/omnibrain/omnibrain/internal/apierr"
	"github.com/omnibrain/omnibrain/internal/store"
)

func (s *Server) handleProposalsList(w http.ResponseWriter, r *http.Request) {
	proposals, err := s.rc.Store.ListPendingProposals()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list proposals: %v", err))
		return
	}
	writeJSON(w, s.log, proposals)
}

// handleProposalAction handles POST /proposals/{id}/{approve|reject|snooze}.
func (s *Server) handleProposalAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := r.PathValue("action")

	switch action {
	case "approve":
		if err := s.rc.Store.UpdateProposalStatus(id, store.ProposalApproved, ""); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("approve proposal: %v", err))
			return
		}
	case "reject":
		if err := s.rc.Store.UpdateProposalStatus(id, store.ProposalRejected, ""); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("reject proposal: %v", err))
			return
		}
	case "snooze":
		hours := 1
		if h := r.URL.Query().Get("hours"); h != "" {
			if parsed, err := time.ParseDuration(h + "h"); err == nil {
				hours = int(parsed.Hours())
			}
		}
		if err := s.rc.Store.SnoozeProposal(id, time.Now().Add(time.Duration(hours)*time.Hour)); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("snooze proposal: %v", err))
			return
		}
	default:
		apierr.WriteHTTP(w, apierr.BadRequest("unknown proposal action %q", action))
		return
	}

	writeJSON(w, s.log, map[string]string{"id": id, "action": action, "status": "ok"})
}
