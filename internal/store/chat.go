package store

// InsertChatMessage appends a message to a session's transcript.
func (s *Store) InsertChatMessage(m ChatMessage) (string, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, session_id, role, content, ts, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, m.Role, m.Content, m.Timestamp, marshalJSON(m.Metadata))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// GetChatMessages returns every message for a session, ordered by
// timestamp ascending.
func (s *Store) GetChatMessages(sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, ts, metadata
		FROM chat_messages WHERE session_id = ? ORDER BY ts ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var metadata string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp, &metadata); err != nil {
			return nil, err
		}
		m.Metadata = unmarshalJSONMap(metadata)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetRecentChatMessages returns the last `limit` messages for a session,
// in chronological order — used to rehydrate an agent's context.
func (s *Store) GetRecentChatMessages(sessionID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, ts, metadata FROM (
			SELECT id, session_id, role, content, ts, metadata
			FROM chat_messages WHERE session_id = ?
			ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var metadata string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp, &metadata); err != nil {
			return nil, err
		}
		m.Metadata = unmarshalJSONMap(metadata)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSessionIDs returns the distinct session ids that have at least one
// chat message, most recently active first.
func (s *Store) ListSessionIDs() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT session_id FROM chat_messages
		GROUP BY session_id ORDER BY MAX(ts) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteChatSession removes all chat messages for a session (but not an
// associated agent_sessions row — callers doing a full session teardown
// should call DeleteSession instead).
func (s *Store) DeleteChatSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, sessionID)
	return err
}
