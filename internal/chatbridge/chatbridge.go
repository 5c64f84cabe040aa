// Package chatbridge implements AgentChatBridge: it owns the per-session
// agent cache, sanitizes and enriches each turn with live data, translates
// an agent.Runner's event stream into SSE frames, and runs every
// post-response side effect (persistence, memory, pattern detection,
// conversation extraction, cost accounting) — grounded on
// _examples/original_source/src/omnibrain/interfaces/agent_chat_bridge.py,
// restructured into the teacher's idiom (internal/api's streaming
// handlers, internal/transparency's WrapStream).
package chatbridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnibrain/omnibrain/internal/agent"
	"github.com/omnibrain/omnibrain/internal/knowledge"
	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/patterns"
	"github.com/omnibrain/omnibrain/internal/store"
	"github.com/omnibrain/omnibrain/internal/transparency"
)

// Preference keys the bridge reads for the user profile and writes for
// monthly cost accounting.
const (
	prefUserName      = "user_name"
	prefUserTimezone  = "user_timezone"
	prefLLMMonthCost  = "llm_month_cost"
	prefLLMMonthCalls = "llm_month_calls"
)

const maxCachedSessions = 20
const historyWindow = 20

// ContextTracker is the optional per-project activity tracker spec.md
// §4.11/§9 mentions; no concrete implementation ships in this tree, so a
// nil ContextTracker simply contributes no "resurrection summary" text.
type ContextTracker interface {
	DetectReturn(project string) (summary string, daysSinceLast int, ok bool)
	KnownProjects() []string
}

// Deps is every collaborator AgentChatBridge reads from or writes to.
// Everything here may be nil except Store: downstream steps degrade
// per-field rather than requiring a fully wired ResourceContainer.
type Deps struct {
	Store        *store.Store
	Memory       *memory.Memory
	Knowledge    *knowledge.Graph
	Patterns     *patterns.Detector
	Transparency *transparency.Logger
	Sanitizer    Sanitizer
	Context      ContextTracker

	// NewRunner builds a fresh agent.Runner for a session. A nil factory
	// means no conversational agent is wired (spec.md §9 puts the concrete
	// agent out of scope for this tree) — Stream then degrades to a
	// single knowledge-graph-backed reply, the same "optional collaborator
	// missing" behavior the rest of the tree applies.
	NewRunner func(sessionID string) agent.Runner

	// SystemPrompt returns the base conversational system prompt (loaded
	// once at startup); live context is appended to it per turn.
	SystemPrompt func() string
}

type runnerSession struct {
	runner agent.Runner
}

// Bridge is AgentChatBridge.
type Bridge struct {
	deps    Deps
	cache   *sessionCache
	log     *slog.Logger
	extract *memory.Extractor
}

// New builds a Bridge. extractor may be nil if conversation extraction is
// not configured; when non-nil it is invoked fire-and-forget after a
// tool-free turn, per spec.md §4.10 step 5d.
func New(deps Deps, extractor *memory.Extractor, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = NewDefaultSanitizer()
	}
	return &Bridge{
		deps:    deps,
		cache:   newSessionCache(maxCachedSessions),
		log:     log.With("component", "chatbridge"),
		extract: extractor,
	}
}

// Frame is one SSE event the bridge emits. Empty fields are omitted from
// the JSON encoding by their omitempty tags — chatbridge itself only builds
// the struct, http-layer serialization is api's responsibility.
type Frame struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id,omitempty"`
	Content     string         `json:"content,omitempty"`
	ToolName    string         `json:"tool_name,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Result      string         `json:"result,omitempty"`
	Plan        string         `json:"plan,omitempty"`
	Title       string         `json:"title,omitempty"`
	InputTokens int            `json:"input_tokens,omitempty"`
	OutTokens   int            `json:"output_tokens,omitempty"`
	ThreatScore float64        `json:"threat_score,omitempty"`
}

// Stream runs one chat turn and returns a channel of Frames, closed once
// the terminal "done" frame has been sent. It never blocks the caller
// beyond spawning the goroutine that drives the turn.
func (b *Bridge) Stream(ctx context.Context, sessionID, message string) <-chan Frame {
	if sessionID == "" {
		sessionID = newSessionID()
	}
	out := make(chan Frame, 8)
	go b.run(ctx, sessionID, message, out)
	return out
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (b *Bridge) run(ctx context.Context, sessionID, rawMessage string, out chan<- Frame) {
	defer close(out)

	// 1. Persist user message.
	if _, err := b.deps.Store.InsertChatMessage(store.ChatMessage{
		SessionID: sessionID, Role: store.RoleUser, Content: rawMessage, Timestamp: time.Now(),
	}); err != nil {
		b.log.Warn("failed to save user message", "error", err)
	}

	// 2. Sanitize.
	message := rawMessage
	if strings.TrimSpace(rawMessage) != "" {
		result := b.deps.Sanitizer.Sanitize(rawMessage)
		if result.IsBlocked {
			b.log.Warn("prompt injection blocked", "threat_score", result.ThreatScore, "reason", result.Reason)
			out <- Frame{Type: "error", SessionID: sessionID, ThreatScore: result.ThreatScore,
				Content: "Your message was flagged as potentially unsafe and has been blocked. Please rephrase your request."}
			out <- Frame{Type: "done", SessionID: sessionID}
			return
		}
		if result.IsWarned {
			b.log.Warn("prompt injection warning", "threat_score", result.ThreatScore, "reason", result.Reason)
			message = result.SafeText
		}
	}

	// 3. Live context.
	liveContext := b.buildLiveContext(message)

	// 4. Drive the agent (or degrade).
	fullResponse, inputTokens, outputTokens, toolsUsed := b.driveAgent(ctx, sessionID, message, liveContext, out)

	// 6. Post-process, then emit done.
	b.postProcess(ctx, sessionID, message, fullResponse, inputTokens, outputTokens, toolsUsed)
	out <- Frame{Type: "done", SessionID: sessionID}
}

// driveAgent runs the cached (or freshly created) agent.Runner and
// translates its events, or — when no Runner is wired — falls back to one
// knowledge-graph-backed reply emitted as a single "token" frame.
func (b *Bridge) driveAgent(ctx context.Context, sessionID, message, liveContext string, out chan<- Frame) (fullResponse string, inputTokens, outputTokens int, toolsUsed bool) {
	if b.deps.NewRunner == nil {
		reply := b.answerWithoutAgent(message)
		out <- Frame{Type: "token", SessionID: sessionID, Content: reply}
		return reply, 0, 0, false
	}

	runner := b.getOrCreateRunner(sessionID)
	history := b.rehydrateHistory(sessionID)

	systemPrompt := ""
	if b.deps.SystemPrompt != nil {
		systemPrompt = b.deps.SystemPrompt()
	}
	systemPrompt += liveContext

	var sb strings.Builder
	for ev := range runner.Run(ctx, sessionID, history, systemPrompt, message) {
		switch ev.Kind {
		case agent.EventText:
			sb.WriteString(ev.Content)
			out <- Frame{Type: "token", SessionID: sessionID, Content: ev.Content}
		case agent.EventToolStart:
			toolsUsed = true
			out <- Frame{Type: "tool_start", SessionID: sessionID, ToolName: ev.ToolName, Arguments: ev.ToolArgs}
		case agent.EventToolEnd:
			result := ev.ToolResult
			if len(result) > 500 {
				result = result[:500]
			}
			out <- Frame{Type: "tool_result", SessionID: sessionID, ToolName: ev.ToolName, Result: result}
		case agent.EventPlanGenerated:
			out <- Frame{Type: "plan", SessionID: sessionID, Plan: ev.Plan}
		case agent.EventFinding:
			out <- Frame{Type: "finding", SessionID: sessionID, Title: ev.Finding, Content: ev.Finding}
		case agent.EventUsage:
			inputTokens += ev.InputTokens
			outputTokens += ev.OutputTokens
			out <- Frame{Type: "usage", SessionID: sessionID, InputTokens: ev.InputTokens, OutTokens: ev.OutputTokens}
		case agent.EventError:
			out <- Frame{Type: "error", SessionID: sessionID, Content: ev.Error}
		case agent.EventDone, agent.EventPaused:
			// agent.Runner closes its channel on these; nothing more to do.
		}
	}
	return sb.String(), inputTokens, outputTokens, toolsUsed
}

// answerWithoutAgent is the degraded-mode reply used when no agent.Runner
// is configured: a best-effort answer from the knowledge graph.
func (b *Bridge) answerWithoutAgent(message string) string {
	if b.deps.Knowledge == nil {
		return "I don't have an LLM or knowledge graph configured yet, so I can't answer that."
	}
	answer, err := b.deps.Knowledge.Ask(message, 5, 30)
	if err != nil || answer.Summary == "" {
		return "I couldn't find anything relevant in what I've ingested so far."
	}
	return answer.Summary
}

func (b *Bridge) getOrCreateRunner(sessionID string) agent.Runner {
	if sess, ok := b.cache.get(sessionID); ok {
		return sess.runner
	}
	runner := b.deps.NewRunner(sessionID)
	b.cache.put(sessionID, runnerSession{runner: runner})
	b.log.Info("agent created for session", "session_id", sessionID, "cached_sessions", b.cache.len())
	return runner
}

func (b *Bridge) rehydrateHistory(sessionID string) []agent.Message {
	msgs, err := b.deps.Store.GetRecentChatMessages(sessionID, historyWindow)
	if err != nil {
		b.log.Warn("failed to rehydrate chat history", "error", err)
		return nil
	}
	history := make([]agent.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, agent.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// InvalidateSession evicts a cached agent, e.g. after its chat history is
// deleted out from under it.
func (b *Bridge) InvalidateSession(sessionID string) {
	b.cache.delete(sessionID)
}

// buildLiveContext assembles the dynamic system-prompt addendum: current
// time, user name, today's/this week's schedule, pending proposals, top
// contacts, recent observations, sanitized+de-reasoned memory snippets,
// and (if configured) project-return context — per spec.md §4.10 step 3.
func (b *Bridge) buildLiveContext(message string) string {
	var sb strings.Builder

	now := time.Now()
	fmt.Fprintf(&sb, "\n\n## Current Date & Time\nToday is %s. Current time: %s local.\n",
		now.Format("Monday, January 2, 2006"), now.Format("15:04"))

	if name, ok := b.deps.Store.GetPreference(prefUserName, "").(string); ok && name != "" {
		fmt.Fprintf(&sb, "\nThe user's name is %s.\n", name)
	}

	b.appendSchedule(&sb, now)
	b.appendProposals(&sb)
	b.appendContacts(&sb)
	b.appendObservations(&sb)
	b.appendMemory(&sb, message)
	b.appendProjectContext(&sb, message)

	return sb.String()
}

func (b *Bridge) appendSchedule(sb *strings.Builder, now time.Time) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.AddDate(0, 0, 1)
	weekEnd := todayStart.AddDate(0, 0, 7)

	today, err := b.deps.Store.QueryEvents(store.EventQuery{Since: &todayStart, Until: &todayEnd, Limit: 30})
	if err != nil {
		b.log.Warn("failed to load today's events", "error", err)
	} else if len(today) > 0 {
		sb.WriteString("\n## Today's Schedule\n")
		for _, e := range today {
			writeEventLine(sb, e)
		}
	}

	week, err := b.deps.Store.QueryEvents(store.EventQuery{Since: &todayStart, Until: &weekEnd, Limit: 50})
	if err != nil {
		b.log.Warn("failed to load this week's events", "error", err)
		return
	}
	var future []store.Event
	for _, e := range week {
		if e.Timestamp.Before(todayEnd) {
			continue
		}
		future = append(future, e)
	}
	if len(future) > 0 {
		sb.WriteString("\n## This Week (upcoming)\n")
		for i, e := range future {
			if i >= 20 {
				break
			}
			writeEventLine(sb, e)
		}
	}
}

func writeEventLine(sb *strings.Builder, e store.Event) {
	timeStr := e.Timestamp.Format("15:04")
	if timeStr == "00:00" {
		timeStr = "All day"
	}
	fmt.Fprintf(sb, "- [id=%s] %s: %s", e.ID, timeStr, e.Title)
	if e.Source != "" {
		fmt.Fprintf(sb, " (%s)", e.Source)
	}
	sb.WriteString("\n")
}

func (b *Bridge) appendProposals(sb *strings.Builder) {
	proposals, err := b.deps.Store.ListPendingProposals()
	if err != nil || len(proposals) == 0 {
		return
	}
	sb.WriteString("\n## Pending Proposals (awaiting user decision)\n")
	for i, p := range proposals {
		if i >= 10 {
			break
		}
		desc := p.Description
		if len(desc) > 150 {
			desc = desc[:150]
		}
		fmt.Fprintf(sb, "- [%s] %s: %s\n", p.Type, p.Title, desc)
	}
}

func (b *Bridge) appendContacts(sb *strings.Builder) {
	contacts, err := b.deps.Store.ListContacts(10)
	if err != nil || len(contacts) == 0 {
		return
	}
	sb.WriteString("\n## Key Contacts\n")
	for _, c := range contacts {
		name := c.Name
		if name == "" {
			name = c.Email
		}
		sb.WriteString("- " + name)
		if c.Organization != "" {
			fmt.Fprintf(sb, " (%s)", c.Organization)
		}
		if c.Relationship != "" {
			fmt.Fprintf(sb, " — %s", c.Relationship)
		}
		sb.WriteString("\n")
	}
}

func (b *Bridge) appendObservations(sb *strings.Builder) {
	obs, err := b.deps.Store.ListObservations("", 0, 30)
	if err != nil || len(obs) == 0 {
		return
	}
	sb.WriteString("\n## Behavioral Patterns Observed\n")
	for i, o := range obs {
		if i >= 5 {
			break
		}
		desc := o.Description
		if len(desc) > 150 {
			desc = desc[:150]
		}
		sb.WriteString("- " + desc + "\n")
	}
}

// appendMemory injects up to 3 memory snippets relevant to message,
// skipping anything that looks like agent reasoning and redacting any
// injection attempt the snippet itself might carry.
func (b *Bridge) appendMemory(sb *strings.Builder, message string) {
	if b.deps.Memory == nil || strings.TrimSpace(message) == "" {
		return
	}
	docs, err := b.deps.Memory.Search(message, 5, "", 0)
	if err != nil || len(docs) == 0 {
		return
	}
	var snippets []string
	for _, d := range docs {
		if looksLikeAgentReasoning(d.Text) {
			continue
		}
		snippet := d.Text
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		snippet = strings.TrimSpace(snippet)
		if b.deps.Sanitizer != nil {
			snippet = b.deps.Sanitizer.SanitizeSnippet(snippet)
		}
		sourceType := d.SourceType
		if sourceType == "" {
			sourceType = "memory"
		}
		snippets = append(snippets, fmt.Sprintf("[%s] %s", sourceType, snippet))
		if len(snippets) == 3 {
			break
		}
	}
	if len(snippets) == 0 {
		return
	}
	sb.WriteString("\n---\n**Your memories relevant to this question:**\n")
	for _, s := range snippets {
		sb.WriteString("- " + s + "\n")
	}
}

func (b *Bridge) appendProjectContext(sb *strings.Builder, message string) {
	if b.deps.Context == nil || strings.TrimSpace(message) == "" {
		return
	}
	lower := strings.ToLower(message)
	for _, project := range b.deps.Context.KnownProjects() {
		if !strings.Contains(lower, strings.ToLower(project)) {
			continue
		}
		summary, days, ok := b.deps.Context.DetectReturn(project)
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "\n---\n**Project context for '%s'** (inactive %d days):\n%s\n", project, days, summary)
		return
	}
}

// postProcess runs every best-effort side effect after a turn completes:
// persisting the assistant reply, storing a de-reasoned memory snippet,
// observing the interaction as a pattern, launching the conversation
// extractor when no tools fired, and accounting for LLM cost.
func (b *Bridge) postProcess(ctx context.Context, sessionID, userMessage, fullResponse string, inputTokens, outputTokens int, toolsUsed bool) {
	if strings.TrimSpace(fullResponse) != "" {
		if _, err := b.deps.Store.InsertChatMessage(store.ChatMessage{
			SessionID: sessionID, Role: store.RoleAssistant, Content: fullResponse, Timestamp: time.Now(),
		}); err != nil {
			b.log.Warn("failed to save assistant message", "error", err)
		}
	}

	if b.deps.Memory != nil && strings.TrimSpace(userMessage) != "" && strings.TrimSpace(fullResponse) != "" {
		clean := stripAgentInternals(fullResponse)
		if strings.TrimSpace(clean) != "" {
			text := clean
			if len(text) > 500 {
				text = text[:500]
			}
			if _, err := b.deps.Memory.Store(
				fmt.Sprintf("User: %s\nAssistant: %s", userMessage, text),
				"", "chat", "conversation", nil, map[string]any{"session_id": sessionID},
			); err != nil {
				b.log.Warn("failed to store chat in memory", "error", err)
			}
		}
	}

	if b.deps.Patterns != nil {
		desc := userMessage
		if len(desc) > 100 {
			desc = desc[:100]
		}
		if _, err := b.deps.Patterns.Observe("chat", "User asked: "+desc, 0.5); err != nil {
			b.log.Debug("pattern observation failed", "error", err)
		}
	}

	if b.extract != nil && strings.TrimSpace(userMessage) != "" && strings.TrimSpace(fullResponse) != "" && !toolsUsed {
		go func() {
			history := b.rehydrateHistory(sessionID)
			memHistory := make([]memory.Message, 0, len(history))
			for _, m := range history {
				memHistory = append(memHistory, memory.Message{Role: m.Role, Content: m.Content})
			}
			if err := b.extract.Extract(ctx, userMessage, fullResponse, memHistory); err != nil {
				b.log.Debug("conversation extraction failed", "error", err)
			}
		}()
	}

	b.trackCost(inputTokens, outputTokens)
}

func (b *Bridge) trackCost(inputTokens, outputTokens int) {
	if inputTokens == 0 && outputTokens == 0 {
		return
	}
	// Stream-level accounting already runs through transparency.WrapStream
	// when a real LLM stream is wired; this is the session-level monthly
	// counter spec.md §4.10 step 5e asks for, using the same pricing
	// table rather than a single hardcoded rate.
	callCost := transparency.EstimateCost("anthropic", inputTokens, outputTokens, 0, 0)

	monthCostRaw, _ := b.deps.Store.GetPreference(prefLLMMonthCost, "0").(string)
	monthCost, _ := strconv.ParseFloat(monthCostRaw, 64)
	monthCallsRaw, _ := b.deps.Store.GetPreference(prefLLMMonthCalls, "0").(string)
	monthCalls, _ := strconv.Atoi(monthCallsRaw)

	if err := b.deps.Store.SetPreference(prefLLMMonthCost, fmt.Sprintf("%.6f", monthCost+callCost), 1.0, "cost_tracker"); err != nil {
		b.log.Debug("failed to persist monthly cost", "error", err)
	}
	if err := b.deps.Store.SetPreference(prefLLMMonthCalls, strconv.Itoa(monthCalls+1), 1.0, "cost_tracker"); err != nil {
		b.log.Debug("failed to persist monthly call count", "error", err)
	}
}
