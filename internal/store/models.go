// Package store is the durable state manager: events, contacts, proposals,
// observations, preferences, briefings, agent sessions, installed skills,
// chat messages, and the transparency log. It is backed by SQLite with
// FTS5 and WAL. EventBus, TransparencyLogger, ProactiveEngine, and
// SkillRuntime keep only in-process state and go through Store for
// anything durable; Memory keeps its documents in its own SQLite database.
package store

import "time"

// Event is an immutable record of something that happened, save for its
// Processed flag which may flip after insertion.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"` // gmail, calendar, chat, ...
	EventType string         `json:"event_type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Priority  int            `json:"priority"`
	Processed bool           `json:"processed"`
}

// Relationship values recognized by Contact.Relationship.
const (
	RelationshipClient    = "client"
	RelationshipInvestor  = "investor"
	RelationshipFamily    = "family"
	RelationshipColleague = "colleague"
	RelationshipFriend    = "friend"
	RelationshipVendor    = "vendor"
	RelationshipUnknown   = "unknown"
)

// Contact is keyed by email, or a synthetic "name.slug@contact.local" when
// the email is unknown.
type Contact struct {
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	Relationship         string    `json:"relationship"`
	Organization         string    `json:"organization"`
	LastInteraction      time.Time `json:"last_interaction"`
	InteractionCount     int       `json:"interaction_count"`
	AvgResponseTimeHours float64   `json:"avg_response_time_hours"`
	Notes                string    `json:"notes"`
}

// IsVIP reports whether c qualifies as a VIP contact: at least 10
// interactions and an average response time under 4 hours.
func (c Contact) IsVIP() bool {
	return c.InteractionCount >= 10 && c.AvgResponseTimeHours < 4
}

// Proposal statuses. Transitions are one-way except pending<->snoozed.
const (
	ProposalPending  = "pending"
	ProposalApproved = "approved"
	ProposalRejected = "rejected"
	ProposalSnoozed  = "snoozed"
	ProposalExecuted = "executed"
	ProposalExpired  = "expired"
)

// Proposal is an action the system proposes and the user approves, rejects,
// or snoozes.
type Proposal struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ActionData  map[string]any `json:"action_data,omitempty"`
	Status      string         `json:"status"`
	Priority    int            `json:"priority"` // 0..4
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Result      string         `json:"result,omitempty"`
	SnoozedUntil *time.Time    `json:"snoozed_until,omitempty"`
}

// Observation is an append-only behavioral signal fed to PatternDetector.
type Observation struct {
	ID                   string    `json:"id"`
	Timestamp            time.Time `json:"ts"`
	PatternType          string    `json:"pattern_type"`
	Description          string    `json:"description"`
	Frequency            int       `json:"frequency"`
	LastSeen             time.Time `json:"last_seen"`
	Confidence           float64   `json:"confidence"`
	PromotedToAutomation bool      `json:"promoted_to_automation"`
}

// Preference is a process-wide mutable key/value with provenance.
type Preference struct {
	Key         string    `json:"key"`
	Value       any       `json:"value"`
	Confidence  float64   `json:"confidence"`
	LearnedFrom string    `json:"learned_from"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Briefing types.
const (
	BriefingMorning = "morning"
	BriefingEvening = "evening"
	BriefingWeekly  = "weekly"
)

// Briefing is an aggregated recap. (Type, Date) is unique; regeneration
// replaces the prior row.
type Briefing struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"` // YYYY-MM-DD
	Type            string    `json:"type"`
	Content         string    `json:"content"`
	EventsProcessed int       `json:"events_processed"`
	ActionsProposed int       `json:"actions_proposed"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// AgentSession is a serialized snapshot of an in-flight conversation.
type AgentSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TaskType  string    `json:"task_type"`
	State     string    `json:"state_json"`
	Profile   string    `json:"profile_json"`
	Plan      string    `json:"plan_json"`
	Graph     string    `json:"graph_json"`
	Status    string    `json:"status"` // active, completed
}

// InstalledSkill is a registered skill, discovered from a skill.yaml
// manifest and tracked across restarts.
type InstalledSkill struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Category    string         `json:"category"`
	Permissions []string       `json:"permissions"`
	Enabled     bool           `json:"enabled"`
	InstalledAt time.Time      `json:"installed_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Settings    map[string]any `json:"settings,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one turn of a chat session, ordered by Timestamp.
type ChatMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"ts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// LLMCallRecord is an append-only transparency-log entry for one outbound
// LLM invocation. PromptPreview is truncated to 500 bytes; the full prompt
// is never stored, only its SHA-256 in PromptHash.
type LLMCallRecord struct {
	ID                  string    `json:"id"`
	Timestamp           time.Time `json:"ts"`
	Provider            string    `json:"provider"`
	Model               string    `json:"model"`
	PromptHash          string    `json:"prompt_hash"`
	PromptPreview       string    `json:"prompt_preview"`
	PromptSize          int       `json:"prompt_size"`
	ResponseSize        int       `json:"response_size"`
	InputTokens         int       `json:"input_tokens"`
	OutputTokens        int       `json:"output_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens"`
	CostEstimate        float64   `json:"cost_estimate"`
	Source              string    `json:"source"`
	DurationMS          int64     `json:"duration_ms"`
	Success             bool      `json:"success"`
	ErrorMessage        string    `json:"error_message,omitempty"`
}
