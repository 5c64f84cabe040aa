// Package skills implements the skill runtime: a JSON-RPC gateway that lets
// sandboxed skill handlers reach memory, events, contacts, and proposals
// only through permission-checked, rate-limited calls.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/omnibrain/omnibrain/internal/apierr"
	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/knowledge"
	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/store"
)

// RPC method names a skill subprocess may invoke.
const (
	RPCMemorySearch  = "memory_search"
	RPCMemoryStore   = "memory_store"
	RPCNotify        = "notify"
	RPCPropose       = "propose_action"
	RPCLLMComplete   = "llm_complete"
	RPCGetEvents     = "get_events"
	RPCGetContacts   = "get_contacts"
	RPCGetPreference = "get_preference"
	RPCLog           = "log"
	RPCEmitEvent     = "emit_event"
)

// permissionMap maps an RPC method to the permission a skill must declare
// to call it. A method mapped to "" needs none; a method absent from this
// map is rejected as unknown.
var permissionMap = map[string]string{
	RPCMemorySearch:  "read_memory",
	RPCMemoryStore:   "write_memory",
	RPCNotify:        "notify",
	RPCPropose:       "propose_actions",
	RPCLLMComplete:   "llm_access",
	RPCGetEvents:     "read_events",
	RPCGetContacts:   "read_contacts",
	RPCGetPreference: "read_preferences",
	RPCLog:           "",
	RPCEmitEvent:     "emit_events",
}

// Request is a single JSON-RPC call from a skill subprocess.
type Request struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is a JSON-RPC reply.
type Response struct {
	ID     int    `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
}

// RPCError mirrors the JSON-RPC 2.0 error shape.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LLMCompleter is the narrow surface the sandbox needs to fulfill
// llm_complete calls, satisfied by whatever router implementation the
// daemon wires in (the concrete LLM client is out of scope for this tree).
type LLMCompleter interface {
	Complete(ctx context.Context, messages []map[string]string) (string, error)
}

// ApprovalGate decides whether a skill-proposed action type may skip the
// pending queue, satisfied by *briefing.ApprovalGate. Declared narrowly
// here (rather than importing internal/briefing) so the sandbox gateway
// only depends on the one method it actually calls.
type ApprovalGate interface {
	ResolveStatus(proposalType string) string
}

// Bridge is the gatekeeper running in the main process: it validates every
// RPC call from a sandboxed skill subprocess against that skill's declared
// permissions, enforces a per-invocation rate cap, and dispatches allowed
// calls to the core services.
type Bridge struct {
	skillName       string
	permissions     map[string]struct{}
	store           *store.Store
	mem             *memory.Memory
	kg              *knowledge.Graph
	bus             *events.Bus
	llm             LLMCompleter
	approval        ApprovalGate
	log             *slog.Logger
	callCount       int
	maxCallsPerInvocation int
}

// SetApprovalGate attaches the policy consulted when a skill proposes an
// action, so propose_action can auto-approve allow-listed types instead of
// always landing pending. Optional — a nil gate leaves every proposal
// pending, same as before ApprovalGate existed.
func (b *Bridge) SetApprovalGate(g ApprovalGate) { b.approval = g }

// NewBridge builds a Bridge scoped to one skill invocation.
func NewBridge(skillName string, permissions []string, s *store.Store, mem *memory.Memory, kg *knowledge.Graph, bus *events.Bus, llm LLMCompleter, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	perms := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		perms[p] = struct{}{}
	}
	return &Bridge{
		skillName:             skillName,
		permissions:           perms,
		store:                 s,
		mem:                   mem,
		kg:                    kg,
		bus:                   bus,
		llm:                   llm,
		log:                   log.With("component", "skills", "skill", skillName),
		maxCallsPerInvocation: 100,
	}
}

// CheckPermission reports whether the skill may call method. It only
// judges methods declared in permissionMap — an unknown method is rejected
// earlier in Handle, before any permission check runs.
func (b *Bridge) CheckPermission(method string) bool {
	required, ok := permissionMap[method]
	if !ok {
		return false
	}
	if required == "" {
		return true
	}
	_, granted := b.permissions[required]
	return granted
}

// Handle processes one RPC request and returns a response, never an error —
// failures are encoded into Response.Error per JSON-RPC convention.
func (b *Bridge) Handle(ctx context.Context, req Request) Response {
	b.callCount++
	if b.callCount > b.maxCallsPerInvocation {
		return Response{ID: req.ID, Error: &RPCError{Code: -32000, Message: "rate limit exceeded"}}
	}
	if _, known := permissionMap[req.Method]; !known {
		return Response{ID: req.ID, Error: &RPCError{
			Code:    apierr.RPCMethodNotFound,
			Message: fmt.Sprintf("unknown method: %s", req.Method),
		}}
	}
	if !b.CheckPermission(req.Method) {
		return Response{ID: req.ID, Error: &RPCError{
			Code:    -32001,
			Message: fmt.Sprintf("permission denied: %s requires %s", req.Method, permissionMap[req.Method]),
		}}
	}

	result, err := b.dispatch(ctx, req.Method, req.Params)
	if err != nil {
		return Response{ID: req.ID, Error: &RPCError{Code: -32603, Message: truncate(err.Error(), 500)}}
	}
	return Response{ID: req.ID, Result: result}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func params(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func stringParam(p map[string]any, key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func intParam(p map[string]any, key string, def int) int {
	if v, ok := p[key].(float64); ok {
		return int(v)
	}
	return def
}

func (b *Bridge) dispatch(ctx context.Context, method string, raw json.RawMessage) (any, error) {
	p := params(raw)

	switch method {
	case RPCMemorySearch:
		if b.mem == nil {
			return []any{}, nil
		}
		docs, err := b.mem.Search(stringParam(p, "query", ""), intParam(p, "max_results", 10), "all", 0)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(docs))
		for _, d := range docs {
			out = append(out, map[string]any{"text": d.Text, "source": d.Source, "score": d.Score})
		}
		return out, nil

	case RPCMemoryStore:
		if b.mem == nil {
			return false, nil
		}
		_, err := b.mem.Store(stringParam(p, "text", ""), "", "skill:"+b.skillName, stringParam(p, "source_type", "skill_data"), nil, nil)
		return err == nil, err

	case RPCNotify:
		if b.bus != nil {
			b.bus.Publish(events.TopicNotification, map[string]any{
				"skill":   b.skillName,
				"level":   stringParam(p, "level", "fyi"),
				"title":   stringParam(p, "title", ""),
				"message": stringParam(p, "message", ""),
			})
		}
		return true, nil

	case RPCPropose:
		if b.store == nil {
			return false, nil
		}
		actionData, _ := p["action_data"].(map[string]any)
		proposalType := stringParam(p, "type", "skill_action")
		status := store.ProposalPending
		if b.approval != nil {
			status = b.approval.ResolveStatus(proposalType)
		}
		_, err := b.store.InsertProposal(store.Proposal{
			Type:        proposalType,
			Title:       stringParam(p, "title", ""),
			Description: stringParam(p, "description", ""),
			ActionData:  actionData,
			Priority:    intParam(p, "priority", 2),
			Status:      status,
		})
		return err == nil, err

	case RPCLLMComplete:
		if b.llm == nil {
			return "", nil
		}
		msgsRaw, _ := p["messages"].([]any)
		messages := make([]map[string]string, 0, len(msgsRaw))
		for _, m := range msgsRaw {
			if mm, ok := m.(map[string]any); ok {
				messages = append(messages, map[string]string{
					"role":    fmt.Sprint(mm["role"]),
					"content": fmt.Sprint(mm["content"]),
				})
			}
		}
		return b.llm.Complete(ctx, messages)

	case RPCGetEvents:
		if b.store == nil {
			return []any{}, nil
		}
		return b.store.QueryEvents(store.EventQuery{
			Limit:  intParam(p, "limit", 50),
			Source: stringParam(p, "source", ""),
		})

	case RPCGetContacts:
		if b.store == nil {
			return []any{}, nil
		}
		return b.store.ListContacts(intParam(p, "limit", 50))

	case RPCGetPreference:
		if b.store == nil {
			return nil, nil
		}
		return b.store.GetPreference(stringParam(p, "key", ""), nil), nil

	case RPCLog:
		b.log.Info(stringParam(p, "message", ""), "level", stringParam(p, "level", "info"))
		return true, nil

	case RPCEmitEvent:
		if b.bus != nil {
			b.bus.Publish(stringParam(p, "event_type", "skill_event"), params(firstNonNil(raw)))
		}
		return true, nil

	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func firstNonNil(raw json.RawMessage) json.RawMessage {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Data != nil {
		return wrapper.Data
	}
	return raw
}
