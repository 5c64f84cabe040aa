package store

import (
	"database/sql"
	"time"
)

// InsertBriefing inserts or replaces the briefing for (type, date).
func (s *Store) InsertBriefing(b Briefing) (string, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO briefings (id, date, type, content, events_processed, actions_proposed, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, date) DO UPDATE SET
			content = excluded.content,
			events_processed = excluded.events_processed,
			actions_proposed = excluded.actions_proposed,
			generated_at = excluded.generated_at
	`, b.ID, b.Date, b.Type, b.Content, b.EventsProcessed, b.ActionsProposed, b.GeneratedAt)
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

// LatestBriefing returns the most recently generated briefing of the given
// type, or nil if none exists.
func (s *Store) LatestBriefing(briefingType string) (*Briefing, error) {
	var b Briefing
	err := s.db.QueryRow(`
		SELECT id, date, type, content, events_processed, actions_proposed, generated_at
		FROM briefings WHERE type = ? ORDER BY generated_at DESC LIMIT 1
	`, briefingType).Scan(&b.ID, &b.Date, &b.Type, &b.Content, &b.EventsProcessed, &b.ActionsProposed, &b.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
