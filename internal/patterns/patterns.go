// Package patterns implements the PatternDetector: records behavioral
// observations, clusters them by description similarity, and emits
// DetectedPatterns and AutomationProposals.
package patterns

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/omnibrain/omnibrain/internal/store"
)

// DetectedPattern is a cluster of behavioral observations satisfying
// frequency and confidence thresholds. Derived, never persisted directly —
// its underlying Observations are.
type DetectedPattern struct {
	PatternType     string
	Description     string
	Occurrences     int
	AvgConfidence   float64
	FirstSeen       time.Time
	LastSeen        time.Time
	ObservationIDs  []string
}

// Strength is min(occurrences/10, 1) * avg_confidence.
func (p DetectedPattern) Strength() float64 {
	occFactor := float64(p.Occurrences) / 10
	if occFactor > 1 {
		occFactor = 1
	}
	return occFactor * p.AvgConfidence
}

// AutomationProposal is produced from a strong-enough DetectedPattern.
type AutomationProposal struct {
	PatternType string
	ActionType  string
	Description string
	Strength    float64
}

// patternTypeToAction maps a pattern type to the automation action_type it
// can propose. Types absent from this map never produce a proposal.
var patternTypeToAction = map[string]string{
	"email_routing":        "auto_route_email",
	"communication_pattern": "auto_draft_reply",
	"recurring_search":     "scheduled_search",
	"time_pattern":         "scheduled_task",
	"calendar_habit":       "calendar_automation",
	"action_sequence":      "action_chain",
}

// Detector maintains no in-memory state between detect() calls beyond the
// last result cache.
type Detector struct {
	store          *store.Store
	log            *slog.Logger
	strongThreshold float64

	lastResult []DetectedPattern
}

// New builds a Detector backed by s. strongThreshold gates propose_automations.
func New(s *store.Store, log *slog.Logger, strongThreshold float64) *Detector {
	if log == nil {
		log = slog.Default()
	}
	if strongThreshold <= 0 {
		strongThreshold = 0.6
	}
	return &Detector{store: s, log: log.With("component", "patterns"), strongThreshold: strongThreshold}
}

// Observe persists a behavioral observation and returns its id.
func (d *Detector) Observe(patternType, description string, confidence float64) (string, error) {
	return d.store.InsertObservation(store.Observation{
		PatternType: patternType,
		Description: description,
		Confidence:  confidence,
	})
}

// ObserveAction auto-classifies an action into a pattern type from the
// action name and context, then records it as an observation.
func (d *Detector) ObserveAction(actionType string, ctx map[string]any) (string, error) {
	patternType, description := classifyAction(actionType, ctx)
	return d.Observe(patternType, description, 0.6)
}

func classifyAction(actionType string, ctx map[string]any) (patternType, description string) {
	lower := strings.ToLower(actionType)
	description = fmt.Sprintf("action: %s", actionType)

	switch {
	case ctx != nil && ctx["time_of_day"] != nil:
		return "time_pattern", description
	case ctx != nil && ctx["after_action"] != nil:
		return "action_sequence", description
	case strings.Contains(lower, "email") || strings.Contains(lower, "send") || strings.Contains(lower, "reply"):
		return "communication_pattern", description
	case strings.Contains(lower, "archive") || strings.Contains(lower, "label"):
		return "email_routing", description
	case strings.Contains(lower, "meeting") || strings.Contains(lower, "schedule"):
		return "calendar_habit", description
	case strings.Contains(lower, "search") || strings.Contains(lower, "find") || strings.Contains(lower, "lookup"):
		return "recurring_search", description
	default:
		return "general", description
	}
}

var (
	timeOfDayRe = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d(:[0-5]\d)?\s*(am|pm|AM|PM)?\b`)
	idRunRe     = regexp.MustCompile(`\b[0-9a-fA-F]{6,}\b`)
)

// normalize replaces time-of-day strings with "HH:MM" and 6+ digit/hex runs
// with "ID", so near-duplicate descriptions cluster together.
func normalize(description string) string {
	s := timeOfDayRe.ReplaceAllString(description, "HH:MM")
	s = idRunRe.ReplaceAllString(s, "ID")
	return s
}

// jaccard computes word-overlap similarity between two normalized strings.
func jaccard(a, b string) float64 {
	wa := strings.Fields(a)
	wb := strings.Fields(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	setA := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wb))
	for _, w := range wb {
		setB[w] = struct{}{}
	}
	var intersection int
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

const jaccardClusterThreshold = 0.6

type cluster struct {
	normalized    string
	observations  []store.Observation
}

// Detect loads observations from the last `days` days, clusters them
// within each pattern_type group by normalized-description Jaccard
// similarity, and yields a DetectedPattern per cluster satisfying the
// occurrence and confidence thresholds. Results are sorted by Strength
// descending.
func (d *Detector) Detect(minOccurrences int, confidenceThreshold float64, days int) ([]DetectedPattern, error) {
	if minOccurrences <= 0 {
		minOccurrences = 3
	}
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.5
	}
	if days <= 0 {
		days = 30
	}

	obs, err := d.store.ListObservations("", 0, days)
	if err != nil {
		return nil, fmt.Errorf("detect: list observations: %w", err)
	}

	byType := make(map[string][]store.Observation)
	for _, o := range obs {
		byType[o.PatternType] = append(byType[o.PatternType], o)
	}

	var patterns []DetectedPattern
	for patternType, group := range byType {
		var clusters []cluster
		for _, o := range group {
			norm := normalize(o.Description)
			placed := false
			for i := range clusters {
				if jaccard(norm, clusters[i].normalized) >= jaccardClusterThreshold {
					clusters[i].observations = append(clusters[i].observations, o)
					placed = true
					break
				}
			}
			if !placed {
				clusters = append(clusters, cluster{normalized: norm, observations: []store.Observation{o}})
			}
		}

		for _, c := range clusters {
			if len(c.observations) < minOccurrences {
				continue
			}
			var confSum float64
			var ids []string
			first, last := c.observations[0].Timestamp, c.observations[0].LastSeen
			for _, o := range c.observations {
				confSum += o.Confidence
				ids = append(ids, o.ID)
				if o.Timestamp.Before(first) {
					first = o.Timestamp
				}
				if o.LastSeen.After(last) {
					last = o.LastSeen
				}
			}
			avgConf := confSum / float64(len(c.observations))
			if avgConf < confidenceThreshold {
				continue
			}
			patterns = append(patterns, DetectedPattern{
				PatternType:    patternType,
				Description:    c.observations[0].Description,
				Occurrences:    len(c.observations),
				AvgConfidence:  avgConf,
				FirstSeen:      first,
				LastSeen:       last,
				ObservationIDs: ids,
			})
		}
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Strength() > patterns[j].Strength() })
	d.lastResult = patterns
	return patterns, nil
}

// ProposeAutomations maps each pattern in the last Detect() result whose
// strength meets the strong threshold to an AutomationProposal. Pattern
// types with no mapped action produce no proposal.
func (d *Detector) ProposeAutomations() []AutomationProposal {
	var out []AutomationProposal
	for _, p := range d.lastResult {
		if p.Strength() < d.strongThreshold {
			continue
		}
		action, ok := patternTypeToAction[p.PatternType]
		if !ok {
			continue
		}
		out = append(out, AutomationProposal{
			PatternType: p.PatternType,
			ActionType:  action,
			Description: p.Description,
			Strength:    p.Strength(),
		})
	}
	return out
}

// PromotePattern marks all observations underlying p as promoted.
func (d *Detector) PromotePattern(p DetectedPattern) error {
	return d.store.PromoteObservations(p.ObservationIDs)
}

// WeeklyAnalysis runs Detect + ProposeAutomations over the trailing 7 days
// and summarizes the results.
type WeeklyAnalysis struct {
	PatternsDetected   int
	AutomationsProposed int
	TopPatterns        []DetectedPattern
	Proposals          []AutomationProposal
}

func (d *Detector) WeeklyAnalysis() (WeeklyAnalysis, error) {
	patterns, err := d.Detect(3, 0.5, 7)
	if err != nil {
		return WeeklyAnalysis{}, err
	}
	proposals := d.ProposeAutomations()

	top := patterns
	if len(top) > 5 {
		top = top[:5]
	}
	return WeeklyAnalysis{
		PatternsDetected:    len(patterns),
		AutomationsProposed: len(proposals),
		TopPatterns:         top,
		Proposals:           proposals,
	}, nil
}
