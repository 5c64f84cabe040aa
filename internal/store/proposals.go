package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertProposal inserts a new proposal and returns its id. Status defaults
// to pending when the caller leaves it empty.
func (s *Store) InsertProposal(p Proposal) (string, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = ProposalPending
	}
	_, err := s.db.Exec(`
		INSERT INTO proposals (id, created_at, type, title, description, action_data, status, priority, expires_at, result, snoozed_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.CreatedAt, p.Type, p.Title, p.Description, marshalJSON(p.ActionData), p.Status, p.Priority,
		p.ExpiresAt, p.Result, p.SnoozedUntil)
	if err != nil {
		return "", fmt.Errorf("insert proposal: %w", err)
	}
	return p.ID, nil
}

// ListPendingProposals returns pending proposals ordered by priority
// descending, then creation time ascending.
func (s *Store) ListPendingProposals() ([]Proposal, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, type, title, description, action_data, status, priority, expires_at, result, snoozed_until
		FROM proposals WHERE status = ?
		ORDER BY priority DESC, created_at ASC
	`, ProposalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProposals(rows)
}

// UpdateProposalStatus transitions a proposal to a new status and records
// an optional result payload.
func (s *Store) UpdateProposalStatus(id, status, result string) error {
	_, err := s.db.Exec(`UPDATE proposals SET status = ?, result = ? WHERE id = ?`, status, result, id)
	return err
}

// SnoozeProposal transitions a pending proposal to snoozed until the given
// time; the engine (or a later ExpireOldProposals-style sweep) is
// responsible for returning it to pending once that time passes.
func (s *Store) SnoozeProposal(id string, until time.Time) error {
	_, err := s.db.Exec(`UPDATE proposals SET status = ?, snoozed_until = ? WHERE id = ? AND status = ?`,
		ProposalSnoozed, until, id, ProposalPending)
	return err
}

// WakeSnoozedProposals returns snoozed proposals whose snoozed_until has
// passed to pending.
func (s *Store) WakeSnoozedProposals() (int, error) {
	res, err := s.db.Exec(`
		UPDATE proposals SET status = ?, snoozed_until = NULL
		WHERE status = ? AND snoozed_until IS NOT NULL AND snoozed_until <= ?
	`, ProposalPending, ProposalSnoozed, time.Now())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ExpireOldProposals sets pending proposals whose expires_at has passed to
// expired, and returns the count affected.
func (s *Store) ExpireOldProposals() (int, error) {
	res, err := s.db.Exec(`
		UPDATE proposals SET status = ?
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
	`, ProposalExpired, ProposalPending, time.Now())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanProposals(rows *sql.Rows) ([]Proposal, error) {
	var out []Proposal
	for rows.Next() {
		var p Proposal
		var actionData string
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.Type, &p.Title, &p.Description, &actionData,
			&p.Status, &p.Priority, &p.ExpiresAt, &p.Result, &p.SnoozedUntil); err != nil {
			return nil, err
		}
		p.ActionData = unmarshalJSONMap(actionData)
		out = append(out, p)
	}
	return out, rows.Err()
}
