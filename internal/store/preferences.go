package store

import (
	"database/sql"
	"time"
)

// SetPreference upserts a preference value; upsert overwrites.
func (s *Store) SetPreference(key string, value any, confidence float64, learnedFrom string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, confidence, learned_from, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, confidence = excluded.confidence,
			learned_from = excluded.learned_from, updated_at = excluded.updated_at
	`, key, marshalJSON(value), confidence, learnedFrom, time.Now())
	return err
}

// GetPreference returns the decoded JSON value for key, or def if unset.
func (s *Store) GetPreference(key string, def any) any {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows || err != nil {
		return def
	}
	m := unmarshalJSONMap(`{"v":` + raw + `}`)
	if m == nil {
		return def
	}
	return m["v"]
}

// AllPreferences returns every stored preference as a map of key to its
// decoded value.
func (s *Store) AllPreferences() (map[string]Preference, error) {
	rows, err := s.db.Query(`SELECT key, value, confidence, learned_from, updated_at FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Preference)
	for rows.Next() {
		var p Preference
		var raw string
		if err := rows.Scan(&p.Key, &raw, &p.Confidence, &p.LearnedFrom, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if m := unmarshalJSONMap(`{"v":` + raw + `}`); m != nil {
			p.Value = m["v"]
		}
		out[p.Key] = p
	}
	return out, rows.Err()
}
