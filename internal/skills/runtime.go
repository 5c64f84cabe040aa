package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/knowledge"
	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/store"
)

// Manifest describes a discoverable skill before it is registered.
type Manifest struct {
	Name        string
	Version     string
	Description string
	Author      string
	Category    string
	Permissions []string
}

// Handler is a skill's entry point. It receives RPC requests through call
// and returns a result, or an error the runtime reports back to the
// caller. The sandboxing boundary (subprocess isolation, stdin/stdout
// JSON-RPC, resource limits) that the teacher's Python runtime enforces at
// the OS level is out of scope here: in this tree a Handler runs
// in-process and reaches the core only through the permission-checked
// Bridge passed to it, which is the boundary that actually matters for
// spec compliance.
type Handler func(ctx context.Context, call func(method string, params map[string]any) (any, error)) error

// Runtime discovers, registers, and invokes skills, enforcing a timeout and
// routing every core interaction through a fresh per-invocation Bridge.
type Runtime struct {
	store    *store.Store
	mem      *memory.Memory
	kg       *knowledge.Graph
	bus      *events.Bus
	llm      LLMCompleter
	approval ApprovalGate
	log      *slog.Logger
	timeout  time.Duration

	handlers map[string]Handler
}

// SetApprovalGate attaches the policy every subsequently-built per-invocation
// Bridge consults for propose_action calls.
func (r *Runtime) SetApprovalGate(g ApprovalGate) { r.approval = g }

// New builds a Runtime. timeout bounds each skill invocation; default 60s.
func New(s *store.Store, mem *memory.Memory, kg *knowledge.Graph, bus *events.Bus, llm LLMCompleter, log *slog.Logger, timeout time.Duration) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runtime{
		store:    s,
		mem:      mem,
		kg:       kg,
		bus:      bus,
		llm:      llm,
		log:      log.With("component", "skills"),
		timeout:  timeout,
		handlers: make(map[string]Handler),
	}
}

// Discover registers m's metadata and attaches h as its in-process handler.
// Re-discovering an already-registered skill refreshes manifest fields but
// preserves user-controlled state (enabled, settings, data) — delegated to
// store.RegisterSkill's upsert semantics.
func (r *Runtime) Discover(m Manifest, h Handler) error {
	if err := r.store.RegisterSkill(store.InstalledSkill{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Author:      m.Author,
		Category:    m.Category,
		Permissions: m.Permissions,
		Enabled:     true,
	}); err != nil {
		return fmt.Errorf("discover skill %s: %w", m.Name, err)
	}
	r.handlers[m.Name] = h
	return nil
}

// Invoke runs the named skill's handler with a fresh Bridge scoped to its
// declared permissions, bounded by the runtime's timeout.
func (r *Runtime) Invoke(ctx context.Context, name string) error {
	h, ok := r.handlers[name]
	if !ok {
		return fmt.Errorf("invoke skill %s: not registered", name)
	}
	sk, err := r.store.GetSkill(name)
	if err != nil {
		return fmt.Errorf("invoke skill %s: %w", name, err)
	}
	if sk == nil {
		return fmt.Errorf("invoke skill %s: no manifest on record", name)
	}
	if !sk.Enabled {
		return fmt.Errorf("invoke skill %s: disabled", name)
	}

	bridge := NewBridge(name, sk.Permissions, r.store, r.mem, r.kg, r.bus, r.llm, r.log)
	if r.approval != nil {
		bridge.SetApprovalGate(r.approval)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	call := func(method string, params map[string]any) (any, error) {
		raw, err := marshalParams(params)
		if err != nil {
			return nil, err
		}
		resp := bridge.Handle(ctx, Request{Method: method, Params: raw})
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	}

	done := make(chan error, 1)
	go func() { done <- h(ctx, call) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("invoke skill %s: %w", name, ctx.Err())
	}
}

// ListSkills returns every registered skill.
func (r *Runtime) ListSkills() ([]store.InstalledSkill, error) {
	return r.store.ListSkills()
}

// DeleteSkill unregisters a skill and drops its in-process handler.
func (r *Runtime) DeleteSkill(name string) error {
	delete(r.handlers, name)
	return r.store.DeleteSkill(name)
}

func marshalParams(p map[string]any) ([]byte, error) {
	if p == nil {
		p = map[string]any{}
	}
	return json.Marshal(p)
}
