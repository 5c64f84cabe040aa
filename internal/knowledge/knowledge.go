// Package knowledge implements the KnowledgeGraph: a stateless query engine
// over Store and Memory that parses natural-language questions and
// correlates results from both sources.
package knowledge

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/omnibrain/omnibrain/internal/memory"
	"github.com/omnibrain/omnibrain/internal/store"
)

// Reference is one piece of evidence backing a KnowledgeAnswer.
type Reference struct {
	SourceType string
	SourceID   string
	Date       time.Time
	Text       string
	Contact    string
	Relevance  float64
}

// Answer is the structured result of any KnowledgeGraph query.
type Answer struct {
	Query            string
	Summary          string
	References       []Reference
	ContactsInvolved []string
	TimeSpan         string
	SourceCounts     map[string]int
}

// Graph is the stateless query engine over Store + Memory.
type Graph struct {
	store *store.Store
	mem   *memory.Memory
}

// New builds a Graph over s and m.
func New(s *store.Store, m *memory.Memory) *Graph {
	return &Graph{store: s, mem: m}
}

// whoSaidWhatPatterns are the multi-language "what did X say about Y"
// variants, ported from knowledge_graph.py's _parse_who_said_what.
var whoSaidWhatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)what (?:did|has|does) (\w+) (?:say|said|mention|tell|write|wrote) about (.+?)\??$`),
	regexp.MustCompile(`(?i)cosa ha detto (\w+) (?:su|sul|sulla|sullo|riguardo) (.+?)\??$`),
	regexp.MustCompile(`(?i)(\w+)'s (?:thoughts|views|opinion|position|comments?) on (.+?)\??$`),
	regexp.MustCompile(`(?i)what (?:did|has) (\w+) (?:say|said) (?:about|regarding|on) (.+?)\??$`),
	regexp.MustCompile(`(?i)qu[eé] (?:dijo|ha dicho) (\w+) (?:sobre|acerca de) (.+?)\??$`),
}

var timelinePattern = regexp.MustCompile(`(?i)(?:timeline|history|evolution|progress) (?:of|for) (.+?)\??$`)

// Ask dispatches on question shape: who-said-what, timeline, or falls back
// to correlate.
func (g *Graph) Ask(question string, maxResults, days int) (Answer, error) {
	if person, topic, ok := parseWhoSaidWhat(question); ok {
		return g.WhoSaidWhat(person, topic, maxResults, days)
	}
	if topic, ok := extractTimelineTopic(question); ok {
		return g.GetTopicTimeline(topic, days, maxResults)
	}
	return g.Correlate(question, maxResults, days)
}

func parseWhoSaidWhat(question string) (person, topic string, ok bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, re := range whoSaidWhatPatterns {
		m := re.FindStringSubmatch(q)
		if m != nil {
			p := strings.TrimSpace(m[1])
			t := strings.TrimSpace(m[2])
			if p != "" && t != "" {
				return p, t, true
			}
		}
	}
	return "", "", false
}

func extractTimelineTopic(question string) (string, bool) {
	m := timelinePattern.FindStringSubmatch(question)
	if m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func mentionsPerson(text, person string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(person))
}

func extractContactFromDoc(doc memory.Document, person string) string {
	lower := strings.ToLower(person)
	for _, c := range doc.Contacts {
		if strings.Contains(strings.ToLower(c), lower) {
			return c
		}
	}
	if mentionsPerson(doc.Source, person) {
		return doc.Source
	}
	return person
}

func countSources(refs []Reference) map[string]int {
	counts := make(map[string]int)
	for _, r := range refs {
		counts[r.SourceType]++
	}
	return counts
}

func computeTimeSpan(dates []time.Time) string {
	if len(dates) < 2 {
		return ""
	}
	earliest, latest := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
		if d.After(latest) {
			latest = d
		}
	}
	days := int(latest.Sub(earliest).Hours() / 24)
	switch {
	case days == 0:
		return "same day"
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 30:
		weeks := days / 7
		if weeks > 1 {
			return fmt.Sprintf("%d weeks", weeks)
		}
		return "1 week"
	default:
		months := days / 30
		if months > 1 {
			return fmt.Sprintf("%d months", months)
		}
		return "1 month"
	}
}

func dedupeBySourceID(refs []Reference) []Reference {
	seen := make(map[string]struct{}, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.SourceID]; ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// WhoSaidWhat finds what person said about topic, by searching Memory for
// "{person} {topic}" filtered to mentions of person, plus Store's FTS
// search over events for the same filter.
func (g *Graph) WhoSaidWhat(person, topic string, maxResults, days int) (Answer, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	if days <= 0 {
		days = 90
	}

	var refs []Reference

	if g.mem != nil {
		docs, err := g.mem.Search(person+" "+topic, maxResults, "all", days)
		if err == nil {
			for _, doc := range docs {
				if !mentionsPerson(doc.Text, person) && !mentionsPerson(doc.Source, person) {
					continue
				}
				refs = append(refs, Reference{
					SourceType: doc.SourceType,
					SourceID:   doc.ID,
					Date:       doc.Timestamp,
					Text:       doc.Text,
					Contact:    extractContactFromDoc(doc, person),
					Relevance:  doc.Score,
				})
			}
		}
	}

	if g.store != nil {
		events, err := g.store.FTSSearchEvents(topic, maxResults)
		if err == nil {
			for _, e := range events {
				blob := e.Title + " " + e.Body + " " + fmt.Sprint(e.Metadata)
				if !mentionsPerson(blob, person) {
					continue
				}
				refs = append(refs, Reference{
					SourceType: e.Source,
					SourceID:   "event_" + e.ID,
					Date:       e.Timestamp,
					Text:       e.Title + "\n" + e.Body,
					Contact:    e.Source,
				})
			}
		}
	}

	refs = dedupeBySourceID(refs)
	sort.Slice(refs, func(i, j int) bool { return refs[i].Date.After(refs[j].Date) })
	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}

	contactName := person
	if g.store != nil {
		if c, err := g.store.ResolveContact(person); err == nil && c != nil {
			contactName = c.Name
		}
	}

	sourceCounts := countSources(refs)
	dates := make([]time.Time, 0, len(refs))
	for _, r := range refs {
		if !r.Date.IsZero() {
			dates = append(dates, r.Date)
		}
	}
	timeSpan := computeTimeSpan(dates)

	summary := fmt.Sprintf("Found %d reference(s) from %s about '%s'", len(refs), contactName, topic)
	if len(sourceCounts) > 0 {
		var parts []string
		for st, n := range sourceCounts {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
		sort.Strings(parts)
		summary += " across " + strings.Join(parts, ", ")
	}
	if timeSpan != "" {
		summary += " spanning " + timeSpan
	}

	return Answer{
		Query:            fmt.Sprintf("What did %s say about %s?", person, topic),
		Summary:          summary,
		References:       refs,
		ContactsInvolved: []string{contactName},
		TimeSpan:         timeSpan,
		SourceCounts:     sourceCounts,
	}, nil
}

// Correlate searches across memory + event FTS and merges, sorted by
// relevance, deduplicated by source id.
func (g *Graph) Correlate(query string, maxResults, days int) (Answer, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	if days <= 0 {
		days = 90
	}

	var refs []Reference
	if g.mem != nil {
		docs, err := g.mem.Search(query, maxResults, "all", days)
		if err == nil {
			for _, doc := range docs {
				refs = append(refs, Reference{
					SourceType: doc.SourceType,
					SourceID:   doc.ID,
					Date:       doc.Timestamp,
					Text:       doc.Text,
					Contact:    doc.Source,
					Relevance:  doc.Score,
				})
			}
		}
	}
	if g.store != nil {
		events, err := g.store.FTSSearchEvents(query, maxResults)
		if err == nil {
			seen := make(map[string]struct{}, len(refs))
			for _, r := range refs {
				seen[r.SourceID] = struct{}{}
			}
			for _, e := range events {
				id := "event_" + e.ID
				if _, ok := seen[id]; ok {
					continue
				}
				refs = append(refs, Reference{
					SourceType: e.Source,
					SourceID:   id,
					Date:       e.Timestamp,
					Text:       e.Title + "\n" + e.Body,
					Contact:    e.Source,
				})
			}
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Relevance > refs[j].Relevance })
	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}

	contactSet := make(map[string]struct{})
	var contacts []string
	for _, r := range refs {
		if r.Contact == "" {
			continue
		}
		if _, ok := contactSet[r.Contact]; !ok {
			contactSet[r.Contact] = struct{}{}
			contacts = append(contacts, r.Contact)
		}
	}
	sourceCounts := countSources(refs)

	return Answer{
		Query:            query,
		Summary:          fmt.Sprintf("Found %d result(s) for '%s'", len(refs), query),
		References:       refs,
		ContactsInvolved: contacts,
		SourceCounts:     sourceCounts,
	}, nil
}

// GetTopicTimeline returns memory + event references about topic sorted by
// date ascending.
func (g *Graph) GetTopicTimeline(topic string, days, maxResults int) (Answer, error) {
	answer, err := g.Correlate(topic, maxResults, days)
	if err != nil {
		return Answer{}, err
	}
	sort.Slice(answer.References, func(i, j int) bool { return answer.References[i].Date.Before(answer.References[j].Date) })
	answer.Query = topic
	return answer, nil
}

// ContactGraphEdge is a pairwise co-occurrence between two participants.
type ContactGraphEdge struct {
	A, B          string
	SharedEvents  int
	SharedThreads int
}

// Strength is min((shared_events+shared_threads)/10, 1.0).
func (e ContactGraphEdge) Strength() float64 {
	v := float64(e.SharedEvents+e.SharedThreads) / 10
	if v > 1 {
		v = 1
	}
	return v
}

// GetContactGraph builds pairwise co-occurrence edges from event attendees
// parsed out of metadata (and source, if it looks like an email address),
// over the trailing `days` days. If contact is non-empty, only edges
// touching it above minStrength are returned.
func (g *Graph) GetContactGraph(contact string, minStrength float64, days int) ([]ContactGraphEdge, error) {
	if days <= 0 {
		days = 90
	}
	since := time.Now().AddDate(0, 0, -days)
	events, err := g.store.QueryEvents(store.EventQuery{Since: &since, Limit: 10000})
	if err != nil {
		return nil, fmt.Errorf("get contact graph: %w", err)
	}

	type key struct{ a, b string }
	shared := make(map[key]*ContactGraphEdge)

	addEdge := func(a, b, kind string) {
		if a == b || a == "" || b == "" {
			return
		}
		if a > b {
			a, b = b, a
		}
		k := key{a, b}
		e, ok := shared[k]
		if !ok {
			e = &ContactGraphEdge{A: a, B: b}
			shared[k] = e
		}
		if kind == "calendar" {
			e.SharedEvents++
		} else {
			e.SharedThreads++
		}
	}

	for _, ev := range events {
		participants := participantsOf(ev)
		for i := 0; i < len(participants); i++ {
			for j := i + 1; j < len(participants); j++ {
				addEdge(participants[i], participants[j], ev.Source)
			}
		}
	}

	var out []ContactGraphEdge
	for _, e := range shared {
		if e.Strength() < minStrength {
			continue
		}
		if contact != "" && e.A != contact && e.B != contact {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength() > out[j].Strength() })
	return out, nil
}

func participantsOf(e store.Event) []string {
	var out []string
	if strings.Contains(e.Source, "@") {
		out = append(out, e.Source)
	}
	if e.Metadata == nil {
		return out
	}
	if raw, ok := e.Metadata["attendees"]; ok {
		switch v := raw.(type) {
		case []any:
			for _, a := range v {
				if s, ok := a.(string); ok {
					out = append(out, s)
				}
			}
		case string:
			for _, a := range strings.Split(v, ",") {
				a = strings.TrimSpace(a)
				if a != "" {
					out = append(out, a)
				}
			}
		}
	}
	return out
}

// ContactSummary is the get_contact_summary result: a profile, interaction
// breakdown, top relationships, and recent topic snippets.
type ContactSummary struct {
	Contact         store.Contact
	IsVIP           bool
	RecentSnippets  []string
	TopCoOccurring  []ContactGraphEdge
}

// GetContactSummary resolves a contact by email or fuzzy name match and
// builds a summary.
func (g *Graph) GetContactSummary(identifier string) (*ContactSummary, error) {
	c, err := g.store.ResolveContact(identifier)
	if err != nil {
		return nil, fmt.Errorf("get contact summary: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	var snippets []string
	if g.mem != nil {
		docs, err := g.mem.Search(c.Name, 5, "all", 90)
		if err == nil {
			for _, d := range docs {
				snippets = append(snippets, d.Text)
			}
		}
	}

	edges, err := g.GetContactGraph(c.Email, 0, 90)
	if err != nil {
		return nil, err
	}
	if len(edges) > 5 {
		edges = edges[:5]
	}

	return &ContactSummary{
		Contact:        *c,
		IsVIP:          c.IsVIP(),
		RecentSnippets: snippets,
		TopCoOccurring: edges,
	}, nil
}
