package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertAgentSession inserts or replaces a serialized session snapshot.
func (s *Store) UpsertAgentSession(sess AgentSession) error {
	if sess.ID == "" {
		return fmt.Errorf("upsert agent session: id required")
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO agent_sessions (id, created_at, task_type, state_json, profile_json, plan_json, graph_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_type = excluded.task_type, state_json = excluded.state_json,
			profile_json = excluded.profile_json, plan_json = excluded.plan_json,
			graph_json = excluded.graph_json, status = excluded.status
	`, sess.ID, sess.CreatedAt, sess.TaskType, sess.State, sess.Profile, sess.Plan, sess.Graph, sess.Status)
	return err
}

// GetAgentSession returns a session by id, or nil if it doesn't exist.
func (s *Store) GetAgentSession(id string) (*AgentSession, error) {
	var sess AgentSession
	err := s.db.QueryRow(`
		SELECT id, created_at, task_type, state_json, profile_json, plan_json, graph_json, status
		FROM agent_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.CreatedAt, &sess.TaskType, &sess.State, &sess.Profile, &sess.Plan, &sess.Graph, &sess.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListActiveSessions returns every session with status "active".
func (s *Store) ListActiveSessions() ([]AgentSession, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, task_type, state_json, profile_json, plan_json, graph_json, status
		FROM agent_sessions WHERE status = 'active' ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentSession
	for rows.Next() {
		var sess AgentSession
		if err := rows.Scan(&sess.ID, &sess.CreatedAt, &sess.TaskType, &sess.State, &sess.Profile, &sess.Plan, &sess.Graph, &sess.Status); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its chat messages.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM agent_sessions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
