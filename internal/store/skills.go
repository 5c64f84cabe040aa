package store

import (
	"database/sql"
	"time"
)

// RegisterSkill inserts a discovered skill manifest if not already present.
// Re-running discovery on an already-registered skill is a no-op for the
// user-controlled fields (enabled, settings, data); only manifest metadata
// (version, description, author, category, permissions) is refreshed.
func (s *Store) RegisterSkill(sk InstalledSkill) error {
	now := time.Now()
	if sk.InstalledAt.IsZero() {
		sk.InstalledAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO installed_skills (name, version, description, author, category, permissions, enabled, installed_at, updated_at, settings, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version, description = excluded.description,
			author = excluded.author, category = excluded.category,
			permissions = excluded.permissions, updated_at = excluded.updated_at
	`, sk.Name, sk.Version, sk.Description, sk.Author, sk.Category, marshalStrings(sk.Permissions),
		sk.Enabled, sk.InstalledAt, now, marshalJSON(sk.Settings), marshalJSON(sk.Data))
	return err
}

// GetSkill returns an installed skill by name, or nil if not found.
func (s *Store) GetSkill(name string) (*InstalledSkill, error) {
	var sk InstalledSkill
	var perms, settings, data string
	err := s.db.QueryRow(`
		SELECT name, version, description, author, category, permissions, enabled, installed_at, updated_at, settings, data
		FROM installed_skills WHERE name = ?
	`, name).Scan(&sk.Name, &sk.Version, &sk.Description, &sk.Author, &sk.Category, &perms,
		&sk.Enabled, &sk.InstalledAt, &sk.UpdatedAt, &settings, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sk.Permissions = unmarshalStrings(perms)
	sk.Settings = unmarshalJSONMap(settings)
	sk.Data = unmarshalJSONMap(data)
	return &sk, nil
}

// ListSkills returns every registered skill.
func (s *Store) ListSkills() ([]InstalledSkill, error) {
	rows, err := s.db.Query(`
		SELECT name, version, description, author, category, permissions, enabled, installed_at, updated_at, settings, data
		FROM installed_skills ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InstalledSkill
	for rows.Next() {
		var sk InstalledSkill
		var perms, settings, data string
		if err := rows.Scan(&sk.Name, &sk.Version, &sk.Description, &sk.Author, &sk.Category, &perms,
			&sk.Enabled, &sk.InstalledAt, &sk.UpdatedAt, &settings, &data); err != nil {
			return nil, err
		}
		sk.Permissions = unmarshalStrings(perms)
		sk.Settings = unmarshalJSONMap(settings)
		sk.Data = unmarshalJSONMap(data)
		out = append(out, sk)
	}
	return out, rows.Err()
}

// SetSkillEnabled enables or disables a skill.
func (s *Store) SetSkillEnabled(name string, enabled bool) error {
	_, err := s.db.Exec(`UPDATE installed_skills SET enabled = ?, updated_at = ? WHERE name = ?`, enabled, time.Now(), name)
	return err
}

// DeleteSkill removes a skill's registration.
func (s *Store) DeleteSkill(name string) error {
	_, err := s.db.Exec(`DELETE FROM installed_skills WHERE name = ?`, name)
	return err
}
