// Package daemon wires every subsystem into one long-running process:
// the proactive engine, briefing scheduling, skill runtime, the API
// server, and periodic cleanup (no collector is polled) — generalized from the
// teacher's cmd/thane/main.go wiring sequence and ResourceContainer
// pattern in the original daemon.py.
package daemon

import (
	"log/slog"

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

// ResourceContainer holds every shared subsystem, created once and handed
// to every daemon goroutine — eliminating the teacher's per-task
// re-construction in favor of the original Python daemon's single
// ResourceContainer.
type ResourceContainer struct {
	Config *config.Config
	Store  *store.Store
	Memory *memory.Memory
	Bus    *events.Bus

	Scorer       *scoring.Scorer
	Selector     *scoring.Selector
	Patterns     *patterns.Detector
	Knowledge    *knowledge.Graph
	Briefing     *briefing.Generator
	Review       *briefing.ReviewEngine
	Approval     *briefing.ApprovalGate
	Transparency *transparency.Logger
	Secure       *secure.Storage
	SkillRuntime *skills.Runtime
	Proactive    *proactive.Engine
	ChatBridge   *chatbridge.Bridge
}

// NewResourceContainer constructs every subsystem in dependency order.
// Each step mirrors the Python original's try/except-log-and-continue
// pattern: Go's error returns make that a plain `if err != nil { log;
// continue }` rather than a try/except, so a failure in one optional
// subsystem (e.g. SecureStorage with no passphrase configured) never
// prevents the rest of the container from initializing.
func NewResourceContainer(cfg *config.Config, log *slog.Logger) (*ResourceContainer, error) {
	rc := &ResourceContainer{Config: cfg}

	st, err := store.Open(cfg.DataDir+"/omnibrain.db", log)
	if err != nil {
		return nil, err
	}
	rc.Store = st

	mem, err := memory.Open(cfg.DataDir+"/memory.db", nil, log)
	if err != nil {
		log.Warn("failed to open memory store", "error", err)
	} else {
		rc.Memory = mem
	}

	rc.Bus = events.New()

	rc.Scorer = scoring.New(log)
	quiet := (*scoring.QuietHours)(nil)
	if cfg.QuietHours.Enabled {
		quiet = &scoring.QuietHours{Start: cfg.QuietHours.StartHour, End: cfg.QuietHours.EndHour}
	}
	rc.Selector = scoring.NewSelector(rc.Scorer, quiet, 3)

	rc.Patterns = patterns.New(rc.Store, log, 0.7)

	if rc.Memory != nil {
		rc.Knowledge = knowledge.New(rc.Store, rc.Memory)
	}

	rc.Briefing = briefing.New(rc.Store, rc.Memory)
	rc.Review = briefing.NewReviewEngine(rc.Store)
	rc.Approval = briefing.NewApprovalGate(cfg.Approval.AutoApprove)

	rc.Transparency = transparency.New(rc.Store, log)

	if cfg.Encryption.Configured() {
		vault, err := secure.Open(cfg.DataDir+"/vault.json", []byte(cfg.Encryption.Key), cfg.DataDir+"/tokens.json", log)
		if err != nil {
			log.Warn("failed to open secure storage", "error", err)
		} else {
			rc.Secure = vault
		}
	} else {
		log.Warn("no encryption key configured — SecureStorage disabled, tokens stay wherever integrations put them")
	}

	rc.SkillRuntime = skills.New(rc.Store, rc.Memory, rc.Knowledge, rc.Bus, nil, log, 0)
	rc.SkillRuntime.SetApprovalGate(rc.Approval)

	var extractor *memory.Extractor
	if rc.Memory != nil {
		extractor = memory.NewExtractor(chatbridge.NewFactSetter(rc.Store), log, 4)
		extractor.SetExtractFunc(memory.HeuristicExtract)
	}
	rc.ChatBridge = chatbridge.New(chatbridge.Deps{
		Store:        rc.Store,
		Memory:       rc.Memory,
		Knowledge:    rc.Knowledge,
		Patterns:     rc.Patterns,
		Transparency: rc.Transparency,
	}, extractor, log)

	return rc, nil
}

// Close releases every resource that owns an OS handle.
func (rc *ResourceContainer) Close() {
	if rc.Memory != nil {
		_ = rc.Memory.Close()
	}
	if rc.Store != nil {
		_ = rc.Store.Close()
	}
}
