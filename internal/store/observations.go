package store

import (
	"fmt"
	"time"
)

// InsertObservation records a behavioral observation and returns its id.
func (s *Store) InsertObservation(o Observation) (string, error) {
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	if o.LastSeen.IsZero() {
		o.LastSeen = o.Timestamp
	}
	if o.Frequency == 0 {
		o.Frequency = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO observations (id, ts, pattern_type, description, frequency, last_seen, confidence, promoted_to_automation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.Timestamp, o.PatternType, o.Description, o.Frequency, o.LastSeen, o.Confidence, o.PromotedToAutomation)
	if err != nil {
		return "", fmt.Errorf("insert observation: %w", err)
	}
	return o.ID, nil
}

// ListObservations returns observations from the last `days` days,
// optionally filtered by pattern type and a minimum confidence.
func (s *Store) ListObservations(patternType string, minConfidence float64, days int) ([]Observation, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT id, ts, pattern_type, description, frequency, last_seen, confidence, promoted_to_automation
		FROM observations WHERE ts >= ? AND confidence >= ?`
	args := []any{since, minConfidence}
	if patternType != "" {
		query += " AND pattern_type = ?"
		args = append(args, patternType)
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.Timestamp, &o.PatternType, &o.Description, &o.Frequency,
			&o.LastSeen, &o.Confidence, &o.PromotedToAutomation); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PromoteObservations marks the given observation rows as promoted to
// automation.
func (s *Store) PromoteObservations(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`UPDATE observations SET promoted_to_automation = TRUE WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
