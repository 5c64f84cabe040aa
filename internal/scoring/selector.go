package scoring

import (
	"sync"
	"time"
)

// QuietHours is a (start, end) hour-of-day window, inclusive of start and
// exclusive of end, that may wrap past midnight (e.g. 22 -> 7).
type QuietHours struct {
	Start, End int
}

func (q QuietHours) contains(hour int) bool {
	if q.Start <= q.End {
		return hour >= q.Start && hour < q.End
	}
	return hour >= q.Start || hour < q.End
}

// Selector maps scored items to a notification level, applying quiet-hours
// downgrade and critical-notification rate limiting on top of the base
// Scorer result.
type Selector struct {
	scorer        *Scorer
	quietHours    *QuietHours
	maxCritical   int
	now           func() time.Time

	mu              sync.Mutex
	criticalHistory []time.Time
}

// NewSelector builds a Selector. quietHours may be nil to disable the
// quiet-hours downgrade. maxCriticalPerHour <= 0 disables rate limiting.
func NewSelector(scorer *Scorer, quietHours *QuietHours, maxCriticalPerHour int) *Selector {
	if scorer == nil {
		scorer = New(nil)
	}
	return &Selector{scorer: scorer, quietHours: quietHours, maxCritical: maxCriticalPerHour, now: time.Now}
}

// ForEmail selects a notification level for an email event.
func (sel *Selector) ForEmail(urgency string, senderIsVIP bool, senderRelationship, category string) string {
	return sel.applyModifiers(sel.scorer.ScoreEmail(urgency, senderIsVIP, senderRelationship, category, nil, 0).NotificationLevel)
}

// ForEvent selects a notification level for a calendar event, minutesUntil
// minutes before the meeting start (nil if unknown).
func (sel *Selector) ForEvent(minutesUntil *int, attendees int, hasVIP bool, priority int) string {
	var deadline *time.Time
	if minutesUntil != nil {
		t := sel.now().Add(time.Duration(*minutesUntil) * time.Minute)
		deadline = &t
	}
	return sel.applyModifiers(sel.scorer.ScoreEvent(deadline, attendees, hasVIP, priority).NotificationLevel)
}

// ForProposal selects a notification level for a pending proposal.
func (sel *Selector) ForProposal(priority int, proposalType string) string {
	return sel.applyModifiers(sel.scorer.ScoreProposal(priority, proposalType, nil).NotificationLevel)
}

// ForPattern selects a notification level for a detected pattern.
func (sel *Selector) ForPattern(strength float64, occurrences int) string {
	return sel.applyModifiers(sel.scorer.ScorePattern(strength, occurrences).NotificationLevel)
}

// ForScore selects a notification level directly from a numeric score.
func (sel *Selector) ForScore(score float64) string {
	return sel.applyModifiers(sel.scorer.selectLevel(score))
}

// IsQuietHours reports whether the current time falls within the
// configured quiet-hours window.
func (sel *Selector) IsQuietHours() bool {
	if sel.quietHours == nil {
		return false
	}
	return sel.quietHours.contains(sel.now().Hour())
}

func (sel *Selector) applyModifiers(level string) string {
	if sel.IsQuietHours() {
		level = downgrade(level)
	}
	if level == LevelCritical {
		sel.mu.Lock()
		defer sel.mu.Unlock()
		if sel.isCriticalRateLimitedLocked() {
			return LevelImportant
		}
		sel.criticalHistory = append(sel.criticalHistory, sel.now())
	}
	return level
}

// isCriticalRateLimitedLocked reports whether max-critical-per-hour has
// already been hit in the trailing hour. Caller holds sel.mu.
func (sel *Selector) isCriticalRateLimitedLocked() bool {
	if sel.maxCritical <= 0 {
		return false
	}
	cutoff := sel.now().Add(-time.Hour)
	pruned := sel.criticalHistory[:0]
	for _, t := range sel.criticalHistory {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	sel.criticalHistory = pruned
	return len(sel.criticalHistory) >= sel.maxCritical
}

func downgrade(level string) string {
	switch level {
	case LevelCritical:
		return LevelImportant
	case LevelImportant:
		return LevelFYI
	default:
		return level
	}
}
