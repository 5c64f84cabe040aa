// Package briefing implements the BriefingGenerator: aggregates store and
// memory data into morning/evening/weekly summaries.
package briefing

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/store"
)

// EmailSection summarizes inbox state for the briefing window.
type EmailSection struct {
	Total         int
	Unread        int
	Urgent        int
	NeedsResponse int
	TopSenders    []string
}

// CalendarEventSummary is one line-item in CalendarSection.Events.
type CalendarEventSummary struct {
	Time      string
	Title     string
	Attendees int
}

// CalendarSection summarizes today's schedule.
type CalendarSection struct {
	TotalEvents     int
	TotalHours      float64
	NextMeeting     string
	NextMeetingTime string
	Events          []CalendarEventSummary
	Conflicts       []string
}

// ProposalSection summarizes outstanding proposals.
type ProposalSection struct {
	TotalPending int
	ByType       map[string]int
	HighPriority []store.Proposal
}

// PriorityItem is one ranked item in the day's top priorities.
type PriorityItem struct {
	Rank   int
	Title  string
	Reason string
	Source string
}

// Data is the complete set of collected briefing data.
type Data struct {
	Date             string
	Type             string
	Emails           EmailSection
	Calendar         CalendarSection
	Proposals        ProposalSection
	Priorities       []PriorityItem
	Observations     []string
	MemoryHighlights []string
}

// EventsProcessed is emails + calendar events, the count persisted
// alongside the briefing.
func (d Data) EventsProcessed() int { return d.Emails.Total + d.Calendar.TotalEvents }

// ActionsProposed is the pending-proposal count persisted alongside the
// briefing.
func (d Data) ActionsProposed() int { return d.Proposals.TotalPending }

// Generator collects store/memory data and formats it into Markdown. No
// LLM narrative pass is performed: the concrete LLM client is out of scope
// for this tree (spec.md §9), so Generator always uses the heuristic
// formatter the teacher falls back to when no router is configured.
type Generator struct {
	store *store.Store
	mem   *memory.Memory
}

// New builds a Generator. mem may be nil, in which case memory highlights
// are omitted.
func New(s *store.Store, mem *memory.Memory) *Generator {
	return &Generator{store: s, mem: mem}
}

// Generate collects data for briefingType ("morning", "evening", "weekly")
// and formats it. Use GenerateAndStore to also persist the result.
func (g *Generator) Generate(briefingType string) (Data, string) {
	data := g.CollectData(briefingType)
	return data, g.FormatText(data)
}

// GenerateAndStore generates and persists a briefing, returning its id.
func (g *Generator) GenerateAndStore(briefingType string) (Data, string, string, error) {
	data, text := g.Generate(briefingType)
	id, err := g.Store(data, text)
	return data, text, id, err
}

// Store persists data+text as a Briefing row, replacing any existing
// briefing of the same (type, date).
func (g *Generator) Store(data Data, text string) (string, error) {
	return g.store.InsertBriefing(store.Briefing{
		Date:           data.Date,
		Type:           data.Type,
		Content:        text,
		EventsProcessed: data.EventsProcessed(),
		ActionsProposed: data.ActionsProposed(),
	})
}

// CollectData queries the store (and memory, if available) for everything
// a briefing of this type needs.
func (g *Generator) CollectData(briefingType string) Data {
	today := time.Now().Format("2006-01-02")
	data := Data{Date: today, Type: briefingType}

	data.Emails = g.collectEmails()
	data.Calendar = g.collectCalendar()
	data.Proposals = g.collectProposals()
	data.Observations = g.collectObservations()
	if g.mem != nil {
		data.MemoryHighlights = g.collectMemoryHighlights()
	}
	data.Priorities = g.generatePriorities(data)
	return data
}

func (g *Generator) collectEmails() EmailSection {
	events, err := g.store.QueryEvents(store.EventQuery{Source: "gmail", Limit: 500})
	if err != nil {
		return EmailSection{}
	}
	sec := EmailSection{}
	senderCounts := make(map[string]int)
	for _, e := range events {
		sec.Total++
		if !e.Processed {
			sec.Unread++
		}
		if e.Priority >= 3 {
			sec.Urgent++
		}
		if needsResponse, _ := e.Metadata["needs_response"].(bool); needsResponse {
			sec.NeedsResponse++
		}
		if sender, _ := e.Metadata["sender"].(string); sender != "" {
			senderCounts[sender]++
		}
	}
	sec.TopSenders = topKeys(senderCounts, 3)
	return sec
}

func (g *Generator) collectCalendar() CalendarSection {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)
	events, err := g.store.QueryEvents(store.EventQuery{Source: "calendar", Since: &startOfDay, Until: &endOfDay, Limit: 200})
	if err != nil {
		return CalendarSection{}
	}

	sec := CalendarSection{}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })

	for _, e := range events {
		sec.TotalEvents++
		durationMin := metaInt(e.Metadata, "duration_minutes")
		sec.TotalHours += float64(durationMin) / 60

		attendees := metaInt(e.Metadata, "attendee_count")
		sec.Events = append(sec.Events, CalendarEventSummary{
			Time:      e.Timestamp.Format("15:04"),
			Title:     e.Title,
			Attendees: attendees,
		})

		if sec.NextMeeting == "" && e.Timestamp.After(now) {
			sec.NextMeeting = e.Title
			sec.NextMeetingTime = e.Timestamp.Format("15:04")
		}
	}
	sec.Conflicts = detectConflicts(events)
	return sec
}

func detectConflicts(events []store.Event) []string {
	var conflicts []string
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			iDur := time.Duration(metaInt(events[i].Metadata, "duration_minutes")) * time.Minute
			iEnd := events[i].Timestamp.Add(iDur)
			if events[j].Timestamp.Before(iEnd) {
				conflicts = append(conflicts, fmt.Sprintf("%s overlaps with %s", events[i].Title, events[j].Title))
			}
		}
	}
	return conflicts
}

func metaInt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (g *Generator) collectProposals() ProposalSection {
	pending, err := g.store.ListPendingProposals()
	if err != nil {
		return ProposalSection{}
	}
	sec := ProposalSection{TotalPending: len(pending), ByType: make(map[string]int)}
	for _, p := range pending {
		sec.ByType[p.Type]++
		if p.Priority >= 3 {
			sec.HighPriority = append(sec.HighPriority, p)
		}
	}
	return sec
}

func (g *Generator) collectObservations() []string {
	obs, err := g.store.ListObservations("", 0.6, 7)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(obs))
	for _, o := range obs {
		out = append(out, o.Description)
	}
	return out
}

func (g *Generator) collectMemoryHighlights() []string {
	docs, err := g.mem.GetRecent(5, "all")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		snippet := d.Text
		if len(snippet) > 140 {
			snippet = snippet[:140] + "…"
		}
		out = append(out, snippet)
	}
	return out
}

func (g *Generator) generatePriorities(data Data) []PriorityItem {
	var items []PriorityItem
	rank := 1
	for _, p := range data.Proposals.HighPriority {
		items = append(items, PriorityItem{Rank: rank, Title: p.Title, Reason: p.Description, Source: "proposal"})
		rank++
		if rank > 5 {
			break
		}
	}
	for _, ev := range data.Calendar.Events {
		if rank > 5 {
			break
		}
		if ev.Attendees >= 5 {
			items = append(items, PriorityItem{Rank: rank, Title: ev.Title, Reason: fmt.Sprintf("%d attendees at %s", ev.Attendees, ev.Time), Source: "calendar"})
			rank++
		}
	}
	if data.Emails.Urgent > 0 && rank <= 5 {
		items = append(items, PriorityItem{Rank: rank, Title: "Urgent emails", Reason: fmt.Sprintf("%d urgent messages waiting", data.Emails.Urgent), Source: "email"})
	}
	return items
}

func topKeys(counts map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].v > kvs[j].v })
	out := make([]string, 0, n)
	for i := 0; i < len(kvs) && i < n; i++ {
		out = append(out, kvs[i].k)
	}
	return out
}

// FormatText renders data as heuristic Markdown suitable for chat, API, or
// a bot transport. Only sections with data are included.
func (g *Generator) FormatText(data Data) string {
	var sb strings.Builder
	title := strings.ToUpper(data.Type[:1]) + data.Type[1:]
	fmt.Fprintf(&sb, "# %s Briefing — %s\n\n", title, data.Date)

	if data.Emails.Total > 0 {
		fmt.Fprintf(&sb, "## Emails\n%d total, %d unread, %d urgent, %d need a response.\n",
			data.Emails.Total, data.Emails.Unread, data.Emails.Urgent, data.Emails.NeedsResponse)
		if len(data.Emails.TopSenders) > 0 {
			fmt.Fprintf(&sb, "Top senders: %s.\n", strings.Join(data.Emails.TopSenders, ", "))
		}
		sb.WriteString("\n")
	}

	if data.Calendar.TotalEvents > 0 {
		fmt.Fprintf(&sb, "## Calendar\n%d events today (%.1fh).\n", data.Calendar.TotalEvents, data.Calendar.TotalHours)
		if data.Calendar.NextMeeting != "" {
			fmt.Fprintf(&sb, "Next: %s at %s.\n", data.Calendar.NextMeeting, data.Calendar.NextMeetingTime)
		}
		for _, ev := range data.Calendar.Events {
			fmt.Fprintf(&sb, "- %s %s (%d attendees)\n", ev.Time, ev.Title, ev.Attendees)
		}
		for _, c := range data.Calendar.Conflicts {
			fmt.Fprintf(&sb, "- ⚠ conflict: %s\n", c)
		}
		sb.WriteString("\n")
	}

	if data.Proposals.TotalPending > 0 {
		fmt.Fprintf(&sb, "## Pending Actions\n%d proposals waiting for approval.\n\n", data.Proposals.TotalPending)
	}

	if len(data.Priorities) > 0 {
		sb.WriteString("## Priorities\n")
		for _, p := range data.Priorities {
			fmt.Fprintf(&sb, "%d. %s — %s\n", p.Rank, p.Title, p.Reason)
		}
		sb.WriteString("\n")
	}

	if len(data.Observations) > 0 {
		fmt.Fprintf(&sb, "## Patterns\n%s\n\n", strings.Join(data.Observations, "; "))
	}

	if len(data.MemoryHighlights) > 0 {
		sb.WriteString("## What I remember\n")
		for _, h := range data.MemoryHighlights {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
	}

	return strings.TrimSpace(sb.String())
}

// FormatHTML renders the same briefing as HTML by converting FormatText's
// Markdown with goldmark. The /briefing API routes return the Markdown
// text, not this HTML.
func (g *Generator) FormatHTML(data Data) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(g.FormatText(data)), &buf); err != nil {
		return "", fmt.Errorf("render briefing markdown: %w", err)
	}
	return buf.String(), nil
}
