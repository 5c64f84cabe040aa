// Package agent declares the narrow surface AgentChatBridge needs from a
// conversational agent. The agent's own planning/tool-loop internals are
// out of scope (spec.md §9) — only its event stream is consumed here.
package agent

import "context"

// EventKind enumerates the AgentEvent shapes AgentChatBridge translates
// into SSE frames.
type EventKind string

const (
	EventText          EventKind = "text"
	EventToolStart     EventKind = "tool_start"
	EventToolEnd       EventKind = "tool_end"
	EventPlanGenerated EventKind = "plan_generated"
	EventFinding       EventKind = "finding"
	EventUsage         EventKind = "usage"
	EventError         EventKind = "error"
	EventDone          EventKind = "done"
	EventPaused        EventKind = "paused"
)

// Event is one frame of an agent's run loop.
type Event struct {
	Kind                EventKind
	Content             string
	ToolName            string
	ToolArgs            map[string]any
	ToolResult          string
	Plan                string
	Finding             string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	Error               string
}

// Message is one turn of conversation passed to Run.
type Message struct {
	Role    string
	Content string
}

// Runner drives a single conversational turn and streams Events on the
// returned channel, closing it when the turn reaches EventDone or
// EventPaused. No concrete implementation lives in this tree: the
// conversational agent (tool loop, planning, model selection) is a
// separate out-of-scope system per spec.md §9.
type Runner interface {
	Run(ctx context.Context, sessionID string, history []Message, systemPrompt, userMessage string) <-chan Event
}
