package api

import (
	"net/http"

	"github.com/omnibrain/omnibrain/internal/apierr"
)

func (s *Server) handleSkillsList(w http.ResponseWriter, r *http.Request) {
	skills, err := s.rc.SkillRuntime.ListSkills()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list skills: %v", err))
		return
	}
	writeJSON(w, s.log, skills)
}

// handleSkillAction handles POST /skills/{name}/{install|enable|disable}.
// Installation discovers a skill.yaml manifest from disk (§6.3) rather than
// an HTTP body, so it isn't wired as an API-driven action here; enable and
// disable flip the persisted flag the skill runtime already tracks.
func (s *Server) handleSkillAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	action := r.PathValue("action")

	switch action {
	case "enable":
		if err := s.rc.Store.SetSkillEnabled(name, true); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("enable skill: %v", err))
			return
		}
	case "disable":
		if err := s.rc.Store.SetSkillEnabled(name, false); err != nil {
			apierr.WriteHTTP(w, apierr.Internal("disable skill: %v", err))
			return
		}
	case "install":
		apierr.WriteHTTP(w, apierr.Unavailable("skills are installed by dropping a skill.yaml manifest in the skills directory, not over the API"))
		return
	default:
		apierr.WriteHTTP(w, apierr.BadRequest("unknown skill action %q", action))
		return
	}

	writeJSON(w, s.log, map[string]string{"name": name, "action": action, "status": "ok"})
}

func (s *Server) handleSkillDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.rc.SkillRuntime.DeleteSkill(name); err != nil {
		apierr.WriteHTTP(w, apierr.Internal("delete skill: %v", err))
		return
	}
	writeJSON(w, s.log, map[string]string{"name": name, "status": "deleted"})
}

// handleSkillsRuntime reports installed skills alongside whether the
// engine's optional collaborators (knowledge graph, memory) are wired, so
// a client can tell why a skill handler might be running in degraded mode.
func (s *Server) handleSkillsRuntime(w http.ResponseWriter, r *http.Request) {
	skills, err := s.rc.SkillRuntime.ListSkills()
	if err != nil {
		apierr.WriteHTTP(w, apierr.Internal("list skills: %v", err))
		return
	}
	writeJSON(w, s.log, map[string]any{
		"skills":             skills,
		"memory_available":   s.rc.Memory != nil,
		"knowledge_available": s.rc.Knowledge != nil,
	})
}
