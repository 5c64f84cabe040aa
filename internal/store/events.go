package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertEvent inserts an event, replacing any existing row with the same
// (source, event_type, title, ts) per the store's uniqueness invariant. The
// row's id is preserved across a replace. Returns the id.
func (s *Store) InsertEvent(e Event) (string, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRow(`
		SELECT id FROM events WHERE source = ? AND event_type = ? AND title = ? AND ts = ?
	`, e.Source, e.EventType, e.Title, e.Timestamp).Scan(&existingID)
	switch {
	case err == nil:
		e.ID = existingID
		_, err = tx.Exec(`
			UPDATE events SET body = ?, metadata = ?, priority = ?, processed = ?
			WHERE id = ?
		`, e.Body, marshalJSON(e.Metadata), e.Priority, e.Processed, e.ID)
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO events (id, ts, source, event_type, title, body, metadata, priority, processed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.Timestamp, e.Source, e.EventType, e.Title, e.Body, marshalJSON(e.Metadata), e.Priority, e.Processed)
	}
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}

	if err := s.syncEventFTS(tx, e.ID); err != nil {
		s.log.Warn("events_fts sync failed", "id", e.ID, "error", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return e.ID, nil
}

// syncEventFTS refreshes the FTS5 shadow row for one event. A no-op if FTS5
// was unavailable at migration time.
func (s *Store) syncEventFTS(tx *sql.Tx, id string) error {
	if !s.ftsEvents {
		return nil
	}
	res, err := tx.Exec(`DELETE FROM events_fts WHERE rowid = (SELECT rowid FROM events WHERE id = ?)`, id)
	if err != nil {
		return err
	}
	_ = res
	_, err = tx.Exec(`
		INSERT INTO events_fts(rowid, title, body, metadata)
		SELECT rowid, title, body, metadata FROM events WHERE id = ?
	`, id)
	return err
}

// MarkProcessed flips an event's processed flag to true. Processed is the
// only field an event may change after insertion besides a full replace.
func (s *Store) MarkProcessed(id string) error {
	_, err := s.db.Exec(`UPDATE events SET processed = TRUE WHERE id = ?`, id)
	return err
}

// EventQuery filters QueryEvents.
type EventQuery struct {
	Source          string
	EventType       string
	Since, Until    *time.Time
	Limit           int
	UnprocessedOnly bool
}

// QueryEvents returns events matching q, newest first.
func (s *Store) QueryEvents(q EventQuery) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var where []string
	var args []any
	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, q.Source)
	}
	if q.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, q.EventType)
	}
	if q.Since != nil {
		where = append(where, "ts >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		where = append(where, "ts <= ?")
		args = append(args, *q.Until)
	}
	if q.UnprocessedOnly {
		where = append(where, "processed = FALSE")
	}

	query := "SELECT id, ts, source, event_type, title, body, metadata, priority, processed FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var e Event
		var metadata string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Source, &e.EventType, &e.Title, &e.Body, &metadata, &e.Priority, &e.Processed); err != nil {
			return nil, err
		}
		e.Metadata = unmarshalJSONMap(metadata)
		out = append(out, e)
	}
	return out, rows.Err()
}

// sanitizeFTSQuery strips the input to [alnum, space, ., -, _, @], splits
// into words, quotes each (doubling embedded quotes), and joins with OR so
// any matching term surfaces a hit. An empty sanitized query is returned
// as "" so callers can short-circuit to an empty result without touching
// the FTS engine.
func sanitizeFTSQuery(q string) string {
	var b strings.Builder
	for _, r := range q {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '.', r == '-', r == '_', r == '@':
			b.WriteRune(r)
		}
	}
	words := strings.Fields(b.String())
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// FTSSearchEvents runs a sanitized full-text query over event title, body,
// and metadata, falling back to a LIKE scan when FTS5 isn't available.
func (s *Store) FTSSearchEvents(q string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	sanitized := sanitizeFTSQuery(q)
	if sanitized == "" {
		return nil, nil
	}

	if !s.ftsEvents {
		like := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
		rows, err := s.db.Query(`
			SELECT id, ts, source, event_type, title, body, metadata, priority, processed
			FROM events
			WHERE lower(title) LIKE ? OR lower(body) LIKE ? OR lower(metadata) LIKE ?
			ORDER BY ts DESC LIMIT ?
		`, like, like, like, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanEvents(rows)
	}

	rows, err := s.db.Query(`
		SELECT e.id, e.ts, e.source, e.event_type, e.title, e.body, e.metadata, e.priority, e.processed
		FROM events_fts f
		JOIN events e ON e.rowid = f.rowid
		WHERE events_fts MATCH ?
		ORDER BY rank LIMIT ?
	`, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}
