// Package scoring implements the unified priority scorer shared by every
// item flowing through omnibrain — emails, calendar events, proposals,
// observations, and detected patterns — and the notification level
// selector built on top of it.
package scoring

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Notification levels, ordered least to most intrusive.
const (
	LevelSilent    = "silent"
	LevelFYI       = "fyi"
	LevelImportant = "important"
	LevelCritical  = "critical"
)

// Notification thresholds against the final 0.0-1.0 score.
const (
	CriticalThreshold  = 0.85
	ImportantThreshold = 0.55
	FYIThreshold       = 0.25
)

// DefaultWeights are the tuneable per-signal weights, summing to 1.0.
var DefaultWeights = map[string]float64{
	"urgency":  0.30,
	"deadline": 0.25,
	"contact":  0.20,
	"type":     0.15,
	"pattern":  0.10,
}

var urgencyScores = map[string]float64{
	"critical": 1.0,
	"high":     0.8,
	"medium":   0.5,
	"low":      0.2,
}

// priorityScores maps the numeric Priority values used elsewhere in the
// system (0=unset, 1=low, 2=medium, 3=high, 4=critical) to a raw score.
var priorityScores = map[int]float64{
	0: 0.3,
	1: 0.2,
	2: 0.5,
	3: 0.8,
	4: 1.0,
}

var typeScores = map[string]float64{
	"action_required": 0.9,
	"urgent_email":    0.9,
	"meeting_prep":    0.8,
	"email_draft":     0.7,
	"proposal":        0.7,
	"personal":        0.5,
	"fyi":             0.3,
	"newsletter":      0.2,
	"spam":            0.0,
	"archive":         0.1,
	"observation":     0.3,
	"pattern":         0.4,
}

var relationshipScores = map[string]float64{
	"client":    0.9,
	"investor":  0.9,
	"family":    0.8,
	"colleague": 0.6,
	"friend":    0.5,
	"vendor":    0.4,
	"unknown":   0.2,
}

// Signals are the raw inputs extracted from an item before scoring.
type Signals struct {
	UrgencyLabel  string
	PriorityValue int

	Deadline      *time.Time
	ReferenceTime *time.Time // defaults to time.Now() when nil

	IsVIP            bool
	Relationship     string
	InteractionCount int

	ItemType string

	PatternStrength    float64
	PatternOccurrences int

	ForceCritical bool
	ForceSilent   bool
}

// Breakdown is the per-signal raw and weighted contribution to a score.
type Breakdown struct {
	UrgencyRaw, DeadlineRaw, ContactRaw, TypeRaw, PatternRaw             float64
	UrgencyWeighted, DeadlineWeighted, ContactWeighted, TypeWeighted, PatternWeighted float64
}

// Score is the result of scoring one item.
type Score struct {
	Value              float64
	NotificationLevel  string
	Breakdown          Breakdown
	Signals            Signals
	Reason             string
}

// Scorer computes unified 0.0-1.0 priority scores from Signals.
type Scorer struct {
	weights                                        map[string]float64
	critical, important, fyi                       float64
	log                                             *slog.Logger
}

// New builds a Scorer with DefaultWeights and the default thresholds,
// renormalizing the weights (and warning) if they don't sum to ~1.0.
func New(log *slog.Logger) *Scorer {
	return NewWithWeights(log, nil, CriticalThreshold, ImportantThreshold, FYIThreshold)
}

// NewWithWeights builds a Scorer with custom weights and thresholds.
func NewWithWeights(log *slog.Logger, weights map[string]float64, critical, important, fyi float64) *Scorer {
	if log == nil {
		log = slog.Default()
	}
	w := make(map[string]float64, len(DefaultWeights))
	for k, v := range DefaultWeights {
		w[k] = v
	}
	for k, v := range weights {
		w[k] = v
	}

	var total float64
	for _, v := range w {
		total += v
	}
	if total < 0.99 || total > 1.01 {
		log.Warn("signal weights do not sum to 1.0, normalizing", "total", total)
		for k := range w {
			w[k] /= total
		}
	}

	return &Scorer{weights: w, critical: critical, important: important, fyi: fyi, log: log}
}

// Weights returns a copy of the current signal weights.
func (sc *Scorer) Weights() map[string]float64 {
	out := make(map[string]float64, len(sc.weights))
	for k, v := range sc.weights {
		out[k] = v
	}
	return out
}

// Score computes the unified priority score for an item's signals.
func (sc *Scorer) Score(s Signals) Score {
	if s.ForceCritical {
		return Score{Value: 1.0, NotificationLevel: LevelCritical, Signals: s, Reason: "force-critical override"}
	}
	if s.ForceSilent {
		return Score{Value: 0.0, NotificationLevel: LevelSilent, Signals: s, Reason: "force-silent override"}
	}

	var b Breakdown
	b.UrgencyRaw = sc.scoreUrgency(s)
	b.UrgencyWeighted = b.UrgencyRaw * sc.weights["urgency"]
	b.DeadlineRaw = sc.scoreDeadline(s)
	b.DeadlineWeighted = b.DeadlineRaw * sc.weights["deadline"]
	b.ContactRaw = sc.scoreContact(s)
	b.ContactWeighted = b.ContactRaw * sc.weights["contact"]
	b.TypeRaw = sc.scoreType(s)
	b.TypeWeighted = b.TypeRaw * sc.weights["type"]
	b.PatternRaw = sc.scorePattern(s)
	b.PatternWeighted = b.PatternRaw * sc.weights["pattern"]

	final := b.UrgencyWeighted + b.DeadlineWeighted + b.ContactWeighted + b.TypeWeighted + b.PatternWeighted
	if final > 1.0 {
		final = 1.0
	}

	level := sc.selectLevel(final)
	reason := sc.buildReason(s, b, level)

	return Score{Value: final, NotificationLevel: level, Breakdown: b, Signals: s, Reason: reason}
}

// ScoreEmail scores an email with email-specific parameters.
func (sc *Scorer) ScoreEmail(urgency string, senderIsVIP bool, senderRelationship, category string, deadline *time.Time, interactionCount int) Score {
	return sc.Score(Signals{
		UrgencyLabel:     urgency,
		IsVIP:            senderIsVIP,
		Relationship:     senderRelationship,
		ItemType:         category,
		Deadline:         deadline,
		InteractionCount: interactionCount,
	})
}

// ScoreEvent scores a calendar event. Five or more attendees promotes the
// item type from meeting_prep to action_required.
func (sc *Scorer) ScoreEvent(deadline *time.Time, attendeeCount int, hasVIPAttendee bool, priority int) Score {
	itemType := "meeting_prep"
	if attendeeCount >= 5 {
		itemType = "action_required"
	}
	return sc.Score(Signals{
		PriorityValue:    priority,
		Deadline:         deadline,
		IsVIP:            hasVIPAttendee,
		ItemType:         itemType,
		InteractionCount: attendeeCount,
	})
}

// ScoreProposal scores an action proposal.
func (sc *Scorer) ScoreProposal(priority int, proposalType string, deadline *time.Time) Score {
	return sc.Score(Signals{PriorityValue: priority, ItemType: proposalType, Deadline: deadline})
}

// ScorePattern scores a detected behavioral pattern.
func (sc *Scorer) ScorePattern(strength float64, occurrences int) Score {
	return sc.Score(Signals{ItemType: "pattern", PatternStrength: strength, PatternOccurrences: occurrences})
}

func (sc *Scorer) scoreUrgency(s Signals) float64 {
	if s.UrgencyLabel != "" {
		if v, ok := urgencyScores[s.UrgencyLabel]; ok {
			return v
		}
		return 0.3
	}
	if v, ok := priorityScores[s.PriorityValue]; ok {
		return v
	}
	return 0.3
}

// scoreDeadline scores deadline proximity on a step curve: ≤30min → 1.0,
// ≤2h → 0.8, ≤8h → 0.6, ≤24h → 0.4, ≤72h → 0.2, beyond → 0.1, none → 0.0.
func (sc *Scorer) scoreDeadline(s Signals) float64 {
	if s.Deadline == nil {
		return 0.0
	}
	now := time.Now()
	if s.ReferenceTime != nil {
		now = *s.ReferenceTime
	}
	delta := s.Deadline.Sub(now)
	if delta <= 0 {
		return 1.0
	}
	hours := delta.Hours()
	switch {
	case hours <= 0.5:
		return 1.0
	case hours <= 2:
		return 0.8
	case hours <= 8:
		return 0.6
	case hours <= 24:
		return 0.4
	case hours <= 72:
		return 0.2
	default:
		return 0.1
	}
}

// scoreContact scores contact importance from relationship, a VIP boost
// (floors the score at 0.8), and an interaction-count bonus (min(count/50,
// 0.2)).
func (sc *Scorer) scoreContact(s Signals) float64 {
	base, ok := relationshipScores[s.Relationship]
	if !ok {
		base = 0.2
	}
	if s.IsVIP && base < 0.8 {
		base = 0.8
	}
	if s.InteractionCount > 0 {
		bonus := float64(s.InteractionCount) / 50
		if bonus > 0.2 {
			bonus = 0.2
		}
		base += bonus
		if base > 1.0 {
			base = 1.0
		}
	}
	return base
}

func (sc *Scorer) scoreType(s Signals) float64 {
	if v, ok := typeScores[s.ItemType]; ok {
		return v
	}
	return 0.3
}

// scorePattern scores pattern strength plus an occurrence bonus
// (min(occurrences/50, 0.3)).
func (sc *Scorer) scorePattern(s Signals) float64 {
	if s.PatternStrength <= 0 && s.PatternOccurrences <= 0 {
		return 0.0
	}
	base := s.PatternStrength
	if s.PatternOccurrences > 0 {
		bonus := float64(s.PatternOccurrences) / 50
		if bonus > 0.3 {
			bonus = 0.3
		}
		base += bonus
		if base > 1.0 {
			base = 1.0
		}
	}
	return base
}

func (sc *Scorer) selectLevel(score float64) string {
	switch {
	case score >= sc.critical:
		return LevelCritical
	case score >= sc.important:
		return LevelImportant
	case score >= sc.fyi:
		return LevelFYI
	default:
		return LevelSilent
	}
}

// buildReason names the dominant signal and any secondary signal whose
// weighted contribution is at least 0.1.
func (sc *Scorer) buildReason(s Signals, b Breakdown, level string) string {
	weighted := map[string]float64{
		"urgency": b.UrgencyWeighted, "deadline": b.DeadlineWeighted,
		"contact": b.ContactWeighted, "type": b.TypeWeighted, "pattern": b.PatternWeighted,
	}
	keys := make([]string, 0, len(weighted))
	for k := range weighted {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return weighted[keys[i]] > weighted[keys[j]] })

	top := keys[0]
	var parts []string
	switch top {
	case "urgency":
		label := s.UrgencyLabel
		if label == "" {
			label = fmt.Sprintf("priority=%d", s.PriorityValue)
		}
		parts = append(parts, fmt.Sprintf("urgency (%s)", label))
	case "deadline":
		if s.Deadline != nil {
			parts = append(parts, fmt.Sprintf("deadline approaching (%s)", s.Deadline.Format("15:04")))
		} else {
			parts = append(parts, "deadline signal")
		}
	case "contact":
		if s.IsVIP {
			parts = append(parts, "VIP contact")
		} else {
			parts = append(parts, fmt.Sprintf("contact (%s)", s.Relationship))
		}
	case "type":
		parts = append(parts, fmt.Sprintf("item type (%s)", s.ItemType))
	case "pattern":
		parts = append(parts, fmt.Sprintf("pattern strength (%.2f)", s.PatternStrength))
	}
	for _, k := range keys[1:] {
		if weighted[k] >= 0.1 {
			parts = append(parts, k)
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("[%s]", upper(level))
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		joined += ", " + p
	}
	return fmt.Sprintf("[%s] driven by %s", upper(level), joined)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
