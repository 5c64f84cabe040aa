package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertContact inserts or merges a contact keyed by email. Name,
// organization, and notes are COALESCE-merged (new value wins only if
// non-empty); relationship only overwrites the stored value if the
// incoming value is not "unknown"; interaction_count increments by one
// rather than being overwritten.
func (s *Store) UpsertContact(c Contact) (Contact, error) {
	if c.Email == "" {
		return Contact{}, fmt.Errorf("upsert contact: email required")
	}
	if c.Relationship == "" {
		c.Relationship = RelationshipUnknown
	}
	now := time.Now()
	if c.LastInteraction.IsZero() {
		c.LastInteraction = now
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Contact{}, err
	}
	defer tx.Rollback()

	var existing Contact
	err = tx.QueryRow(`
		SELECT email, name, relationship, organization, last_interaction,
		       interaction_count, avg_response_time_hours, notes
		FROM contacts WHERE email = ? AND deleted_at IS NULL
	`, c.Email).Scan(&existing.Email, &existing.Name, &existing.Relationship, &existing.Organization,
		&existing.LastInteraction, &existing.InteractionCount, &existing.AvgResponseTimeHours, &existing.Notes)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO contacts (email, name, relationship, organization, last_interaction,
			                       interaction_count, avg_response_time_hours, notes)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		`, c.Email, c.Name, c.Relationship, c.Organization, c.LastInteraction, c.AvgResponseTimeHours, c.Notes)
		if err != nil {
			return Contact{}, fmt.Errorf("insert contact: %w", err)
		}
		c.InteractionCount = 1
	case err != nil:
		return Contact{}, err
	default:
		merged := existing
		if c.Name != "" {
			merged.Name = c.Name
		}
		if c.Organization != "" {
			merged.Organization = c.Organization
		}
		if c.Notes != "" {
			merged.Notes = c.Notes
		}
		if c.Relationship != "" && c.Relationship != RelationshipUnknown {
			merged.Relationship = c.Relationship
		}
		if c.AvgResponseTimeHours > 0 {
			merged.AvgResponseTimeHours = c.AvgResponseTimeHours
		}
		merged.InteractionCount = existing.InteractionCount + 1
		merged.LastInteraction = c.LastInteraction

		_, err = tx.Exec(`
			UPDATE contacts SET name = ?, relationship = ?, organization = ?, last_interaction = ?,
			                     interaction_count = ?, avg_response_time_hours = ?, notes = ?
			WHERE email = ?
		`, merged.Name, merged.Relationship, merged.Organization, merged.LastInteraction,
			merged.InteractionCount, merged.AvgResponseTimeHours, merged.Notes, c.Email)
		if err != nil {
			return Contact{}, fmt.Errorf("update contact: %w", err)
		}
		c = merged
	}

	if err := tx.Commit(); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// UpsertContactByName upserts a contact that has no known email address,
// synthesizing "name.slug@contact.local" as its key.
func (s *Store) UpsertContactByName(name, relationship, notes string) (Contact, error) {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "."))
	if slug == "" {
		slug = "unknown"
	}
	return s.UpsertContact(Contact{
		Email:        slug + "@contact.local",
		Name:         name,
		Relationship: relationship,
		Notes:        notes,
	})
}

// GetContact returns the contact for email, or nil if none exists (or it
// was soft-deleted).
func (s *Store) GetContact(email string) (*Contact, error) {
	var c Contact
	err := s.db.QueryRow(`
		SELECT email, name, relationship, organization, last_interaction,
		       interaction_count, avg_response_time_hours, notes
		FROM contacts WHERE email = ? AND deleted_at IS NULL
	`, email).Scan(&c.Email, &c.Name, &c.Relationship, &c.Organization, &c.LastInteraction,
		&c.InteractionCount, &c.AvgResponseTimeHours, &c.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns up to limit active contacts ordered by most recent
// interaction.
func (s *Store) ListContacts(limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT email, name, relationship, organization, last_interaction,
		       interaction_count, avg_response_time_hours, notes
		FROM contacts WHERE deleted_at IS NULL
		ORDER BY last_interaction DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

// ListVIPContacts returns all active contacts satisfying IsVIP.
func (s *Store) ListVIPContacts() ([]Contact, error) {
	rows, err := s.db.Query(`
		SELECT email, name, relationship, organization, last_interaction,
		       interaction_count, avg_response_time_hours, notes
		FROM contacts
		WHERE deleted_at IS NULL AND interaction_count >= 10 AND avg_response_time_hours < 4
		ORDER BY interaction_count DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

// ResolveContact finds a contact by exact email, then falls back to a
// case-insensitive substring match on name, then on the email local-part.
func (s *Store) ResolveContact(identifier string) (*Contact, error) {
	if c, err := s.GetContact(identifier); err != nil {
		return nil, err
	} else if c != nil {
		return c, nil
	}

	like := "%" + strings.ToLower(identifier) + "%"
	var c Contact
	err := s.db.QueryRow(`
		SELECT email, name, relationship, organization, last_interaction,
		       interaction_count, avg_response_time_hours, notes
		FROM contacts
		WHERE deleted_at IS NULL AND (lower(name) LIKE ? OR lower(email) LIKE ?)
		ORDER BY interaction_count DESC LIMIT 1
	`, like, like).Scan(&c.Email, &c.Name, &c.Relationship, &c.Organization, &c.LastInteraction,
		&c.InteractionCount, &c.AvgResponseTimeHours, &c.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]Contact, error) {
	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Email, &c.Name, &c.Relationship, &c.Organization, &c.LastInteraction,
			&c.InteractionCount, &c.AvgResponseTimeHours, &c.Notes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
