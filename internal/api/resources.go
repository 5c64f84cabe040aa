package api

import (
	"github.com/omnibrain/omnibrain/internal/briefing"
	"github.com/omnibrain/omnibrain/internal/chatbridge"
	"github.com/omnibrain/omnibrain/internal/config"
	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/knowledge"
	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/patterns"
	"github.com/omnibrain/omnibrain/internal/proactive"
	"github.com/omnibrain/omnibrain/internal/scoring"
	"github.com/omnibrain/omnibrain/internal/secure"
	"github.com/omnibrain/omnibrain/internal/skills"
	"github.com/omnibrain/omnibrain/internal/store"
	"github.com/omnibrain/omnibrain/internal/transparency"
)

// Resources is the subset of daemon.ResourceContainer the API surface
// needs. It is its own type (rather than importing internal/daemon
// directly) so internal/daemon can import internal/api to wire the
// concrete HTTP server without an import cycle.
type Resources struct {
	Config *config.Config
	Store  *store.Store
	Memory *memory.Memory
	Bus    *events.Bus

	Scorer       *scoring.Scorer
	Selector     *scoring.Selector
	Patterns     *patterns.Detector
	Knowledge    *knowledge.Graph
	Briefing     *briefing.Generator
	Transparency *transparency.Logger
	Secure       *secure.Storage
	SkillRuntime *skills.Runtime
	Proactive    *proactive.Engine
	ChatBridge   *chatbridge.Bridge
}
