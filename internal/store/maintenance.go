package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PruneCounts reports how many rows each Prune call removed.
type PruneCounts struct {
	Events     int `json:"events"`
	Proposals  int `json:"proposals"`
	Sessions   int `json:"sessions"`
}

// Prune deletes processed events older than eventDays, terminal-status
// proposals older than proposalDays, and completed sessions (with their
// chat messages) older than sessionDays.
func (s *Store) Prune(eventDays, proposalDays, sessionDays int) (PruneCounts, error) {
	var counts PruneCounts

	if eventDays > 0 {
		res, err := s.db.Exec(`DELETE FROM events WHERE processed = TRUE AND ts < ?`,
			time.Now().AddDate(0, 0, -eventDays))
		if err != nil {
			return counts, fmt.Errorf("prune events: %w", err)
		}
		n, _ := res.RowsAffected()
		counts.Events = int(n)
		if s.ftsEvents {
			s.db.Exec(`INSERT INTO events_fts(events_fts) VALUES('rebuild')`)
		}
	}

	if proposalDays > 0 {
		res, err := s.db.Exec(`
			DELETE FROM proposals WHERE status IN (?, ?, ?) AND created_at < ?
		`, ProposalRejected, ProposalExecuted, ProposalExpired, time.Now().AddDate(0, 0, -proposalDays))
		if err != nil {
			return counts, fmt.Errorf("prune proposals: %w", err)
		}
		n, _ := res.RowsAffected()
		counts.Proposals = int(n)
	}

	if sessionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -sessionDays)
		rows, err := s.db.Query(`SELECT id FROM agent_sessions WHERE status = 'completed' AND created_at < ?`, cutoff)
		if err != nil {
			return counts, fmt.Errorf("prune sessions: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if err := s.DeleteSession(id); err != nil {
				return counts, err
			}
			counts.Sessions++
		}
	}

	return counts, nil
}

// Vacuum reclaims free space after a prune pass.
func (s *Store) Vacuum() error {
	_, err := s.db.Exec(`VACUUM`)
	return err
}

var exportTables = []string{
	"events", "contacts", "proposals", "observations", "preferences",
	"briefings", "agent_sessions", "installed_skills", "chat_messages", "llm_calls",
}

// ExportAll writes one JSON file per table into dir, plus a manifest.json
// listing row counts and the export timestamp — the GDPR-style data export.
func (s *Store) ExportAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	manifest := map[string]any{"exported_at": time.Now(), "tables": map[string]int{}}
	tableCounts := manifest["tables"].(map[string]int)

	for _, table := range exportTables {
		rows, err := s.db.Query("SELECT * FROM " + table)
		if err != nil {
			return fmt.Errorf("export %s: %w", table, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return err
		}

		var records []map[string]any
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return err
			}
			rec := make(map[string]any, len(cols))
			for i, c := range cols {
				rec[c] = vals[i]
			}
			records = append(records, rec)
		}
		rows.Close()
		tableCounts[table] = len(records)

		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, table+".json"), data, 0o644); err != nil {
			return err
		}
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), manifestData, 0o644)
}

// WipeAll deletes every row from every table — the GDPR-style full wipe.
// Schema is left intact.
func (s *Store) WipeAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range exportTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	if s.ftsEvents {
		tx.Exec(`INSERT INTO events_fts(events_fts) VALUES('rebuild')`)
	}
	return tx.Commit()
}
