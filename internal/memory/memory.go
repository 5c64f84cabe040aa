// Package memory implements the semantic-lookup facade: a mandatory
// FTS5-backed keyword store plus an optional vector store behind a single
// narrow interface. It is the only external surface onto either index —
// callers never touch the underlying SQLite handle directly.
package memory

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Document is one unit of indexed text.
type Document struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Source     string         `json:"source"`
	SourceType string         `json:"source_type"`
	Timestamp  time.Time      `json:"ts"`
	Contacts   []string       `json:"contacts,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Score      float64        `json:"score,omitempty"`
}

// VectorStore is the optional accelerator behind the facade. A failure from
// any VectorStore method is non-fatal: Memory logs and falls back to the
// keyword store.
type VectorStore interface {
	Store(doc Document) error
	Search(query string, maxResults int, sourceFilter string) ([]Document, error)
	Delete(id string) error
}

// Memory is the facade over the keyword store (mandatory) and an optional
// vector store.
type Memory struct {
	db     *sql.DB
	vector VectorStore
	log    *slog.Logger
	ftsOK  bool
}

// Open opens (creating if needed) the keyword store at path and wires an
// optional vector store. vector may be nil.
func Open(path string, vector VectorStore, log *slog.Logger) (*Memory, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	m := &Memory{db: db, vector: vector, log: log.With("component", "memory")}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate memory db: %w", err)
	}
	return m, nil
}

func (m *Memory) Close() error { return m.db.Close() }

const memorySchema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_type TEXT NOT NULL,
	ts          TIMESTAMP NOT NULL,
	contacts    TEXT,
	metadata    TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_source_type ON documents(source_type, ts);
`

func (m *Memory) migrate() error {
	if _, err := m.db.Exec(memorySchema); err != nil {
		return err
	}
	_, err := m.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			text, source, metadata, content='documents', content_rowid='rowid'
		)
	`)
	if err != nil {
		m.log.Warn("fts5 unavailable for memory store, falling back to LIKE search", "error", err)
		m.ftsOK = false
		return nil
	}
	m.ftsOK = true
	_, err = m.db.Exec(`INSERT INTO documents_fts(documents_fts) VALUES('rebuild')`)
	return err
}

// docID returns a deterministic 16-hex-char digest of "{source}:{text[:200]}"
// when the caller doesn't provide an explicit id.
func docID(source, text string) string {
	t := text
	if len(t) > 200 {
		t = t[:200]
	}
	sum := sha256.Sum256([]byte(source + ":" + t))
	return hex.EncodeToString(sum[:])[:16]
}

// Store writes a document to the keyword store and, best-effort, to the
// vector store. Returns the document id.
func (m *Memory) Store(text, id, source, sourceType string, contacts []string, metadata map[string]any) (string, error) {
	if id == "" {
		id = docID(source, text)
	}
	ts := time.Now()
	doc := Document{ID: id, Text: text, Source: source, SourceType: sourceType, Timestamp: ts, Contacts: contacts, Metadata: metadata}

	tx, err := m.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO documents (id, text, source, source_type, ts, contacts, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, source=excluded.source,
			source_type=excluded.source_type, ts=excluded.ts, contacts=excluded.contacts, metadata=excluded.metadata
	`, id, text, source, sourceType, ts, marshalStrings(contacts), marshalJSON(metadata))
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	if err := m.syncFTS(tx, id); err != nil {
		m.log.Warn("documents_fts sync failed", "id", id, "error", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	if m.vector != nil {
		if err := m.vector.Store(doc); err != nil {
			m.log.Warn("vector store write failed, keyword store remains authoritative", "id", id, "error", err)
		}
	}
	return id, nil
}

func (m *Memory) syncFTS(tx *sql.Tx, id string) error {
	if !m.ftsOK {
		return nil
	}
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE rowid = (SELECT rowid FROM documents WHERE id = ?)`, id); err != nil {
		return err
	}
	_, err := tx.Exec(`
		INSERT INTO documents_fts(rowid, text, source, metadata)
		SELECT rowid, text, source, metadata FROM documents WHERE id = ?
	`, id)
	return err
}

// sanitizeQuery strips to [alnum, space, ., -, _, @], splits into words,
// quotes each, and joins with OR. Returns "" if nothing survives.
func sanitizeQuery(q string) string {
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

// Search consults the vector store first if available, falling back to the
// keyword store when the vector store is unavailable or returns no results.
func (m *Memory) Search(query string, maxResults int, sourceFilter string, timeRangeDays int) ([]Document, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	if m.vector != nil {
		if docs, err := m.vector.Search(query, maxResults, sourceFilter); err != nil {
			m.log.Warn("vector search failed, falling back to keyword store", "error", err)
		} else if len(docs) > 0 {
			return docs, nil
		}
	}
	return m.keywordSearch(query, maxResults, sourceFilter, timeRangeDays)
}

func (m *Memory) keywordSearch(query string, maxResults int, sourceFilter string, timeRangeDays int) ([]Document, error) {
	sanitized := sanitizeQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	var since *time.Time
	if timeRangeDays > 0 {
		t := time.Now().AddDate(0, 0, -timeRangeDays)
		since = &t
	}

	if !m.ftsOK {
		like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		query := `SELECT id, text, source, source_type, ts, contacts, metadata FROM documents WHERE lower(text) LIKE ?`
		args := []any{like}
		if sourceFilter != "" && sourceFilter != "all" {
			query += " AND source_type = ?"
			args = append(args, sourceFilter)
		}
		if since != nil {
			query += " AND ts >= ?"
			args = append(args, *since)
		}
		query += " ORDER BY ts DESC LIMIT ?"
		args = append(args, maxResults)
		rows, err := m.db.Query(query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanDocuments(rows)
	}

	query2 := `
		SELECT d.id, d.text, d.source, d.source_type, d.ts, d.contacts, d.metadata
		FROM documents_fts f JOIN documents d ON d.rowid = f.rowid
		WHERE documents_fts MATCH ?`
	args := []any{sanitized}
	if sourceFilter != "" && sourceFilter != "all" {
		query2 += " AND d.source_type = ?"
		args = append(args, sourceFilter)
	}
	if since != nil {
		query2 += " AND d.ts >= ?"
		args = append(args, *since)
	}
	query2 += " ORDER BY rank LIMIT ?"
	args = append(args, maxResults)

	rows, err := m.db.Query(query2, args...)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		var d Document
		var contacts, metadata string
		if err := rows.Scan(&d.ID, &d.Text, &d.Source, &d.SourceType, &d.Timestamp, &contacts, &metadata); err != nil {
			return nil, err
		}
		d.Contacts = unmarshalStrings(contacts)
		d.Metadata = unmarshalJSONMap(metadata)
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByID returns a document by id, or nil if it doesn't exist.
func (m *Memory) GetByID(id string) (*Document, error) {
	var d Document
	var contacts, metadata string
	err := m.db.QueryRow(`SELECT id, text, source, source_type, ts, contacts, metadata FROM documents WHERE id = ?`, id).
		Scan(&d.ID, &d.Text, &d.Source, &d.SourceType, &d.Timestamp, &contacts, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Contacts = unmarshalStrings(contacts)
	d.Metadata = unmarshalJSONMap(metadata)
	return &d, nil
}

// GetRecent returns the most recently stored documents.
func (m *Memory) GetRecent(maxResults int, sourceFilter string) ([]Document, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	query := `SELECT id, text, source, source_type, ts, contacts, metadata FROM documents`
	var args []any
	if sourceFilter != "" && sourceFilter != "all" {
		query += " WHERE source_type = ?"
		args = append(args, sourceFilter)
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, maxResults)

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Delete removes a document from both stores.
func (m *Memory) Delete(id string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if m.ftsOK {
		tx.Exec(`DELETE FROM documents_fts WHERE rowid = (SELECT rowid FROM documents WHERE id = ?)`, id)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if m.vector != nil {
		if err := m.vector.Delete(id); err != nil {
			m.log.Warn("vector store delete failed", "id", id, "error", err)
		}
	}
	return nil
}

// Count returns the authoritative document count from the keyword store.
func (m *Memory) Count() (int, error) {
	var n int
	err := m.db.QueryRow(`SELECT count(*) FROM documents`).Scan(&n)
	return n, err
}

// StoreEmail is a convenience constructor building canonical email text and
// metadata before calling Store.
func (m *Memory) StoreEmail(sender, subject, body string, contacts []string, metadata map[string]any) (string, error) {
	text := fmt.Sprintf("Email from %s: %s\n\n%s", sender, subject, body)
	return m.Store(text, "", sender, "email", contacts, metadata)
}

// StoreCalendarEvent is a convenience constructor building canonical
// calendar-event text and metadata before calling Store.
func (m *Memory) StoreCalendarEvent(title, description, location string, attendees []string, metadata map[string]any) (string, error) {
	text := fmt.Sprintf("Calendar event: %s\n%s\nLocation: %s\nAttendees: %s",
		title, description, location, strings.Join(attendees, ", "))
	return m.Store(text, "", title, "calendar", attendees, metadata)
}

// newDocumentID exposes uuid.NewV7 time-ordered IDs for callers that want
// an explicit id distinct from the content-hash default.
func newDocumentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
