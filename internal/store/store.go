package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed durable state manager. Each public operation
// runs in its own transaction; failed operations roll back. Connections
// are opened in WAL mode with foreign keys on; reads do not block writes.
type Store struct {
	db        *sql.DB
	log       *slog.Logger
	ftsEvents bool // true once events_fts was created successfully
	ftsSkills bool // reserved for future FTS surfaces
}

// Open opens (or creates) the store database at path and runs migrations.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db, log: log.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	ts TIMESTAMP NOT NULL,
	source TEXT NOT NULL,
	event_type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	priority INTEGER NOT NULL DEFAULT 0,
	processed BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_unique ON events(source, event_type, title, ts);
CREATE INDEX IF NOT EXISTS idx_events_source_ts ON events(source, ts DESC);
CREATE INDEX IF NOT EXISTS idx_events_unprocessed ON events(processed, ts DESC);

CREATE TABLE IF NOT EXISTS contacts (
	email TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	relationship TEXT NOT NULL DEFAULT 'unknown',
	organization TEXT NOT NULL DEFAULT '',
	last_interaction TIMESTAMP,
	interaction_count INTEGER NOT NULL DEFAULT 0,
	avg_response_time_hours REAL NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	deleted_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_active_name
	ON contacts(name) WHERE deleted_at IS NULL AND name != '';

CREATE TABLE IF NOT EXISTS proposals (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	action_data TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	priority INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMP,
	result TEXT NOT NULL DEFAULT '',
	snoozed_until TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_proposals_pending ON proposals(status, priority DESC, created_at ASC);

CREATE TABLE IF NOT EXISTS observations (
	id TEXT PRIMARY KEY,
	ts TIMESTAMP NOT NULL,
	pattern_type TEXT NOT NULL,
	description TEXT NOT NULL,
	frequency INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	promoted_to_automation BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_observations_type_ts ON observations(pattern_type, ts DESC);

CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0,
	learned_from TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS briefings (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	events_processed INTEGER NOT NULL DEFAULT 0,
	actions_proposed INTEGER NOT NULL DEFAULT 0,
	generated_at TIMESTAMP NOT NULL,
	UNIQUE(type, date)
);

CREATE TABLE IF NOT EXISTS agent_sessions (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	task_type TEXT NOT NULL DEFAULT '',
	state_json TEXT NOT NULL DEFAULT '{}',
	profile_json TEXT NOT NULL DEFAULT '{}',
	plan_json TEXT NOT NULL DEFAULT '{}',
	graph_json TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS installed_skills (
	name TEXT PRIMARY KEY,
	version TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	permissions TEXT NOT NULL DEFAULT '[]',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	installed_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	settings TEXT NOT NULL DEFAULT '{}',
	data TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	ts TIMESTAMP NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, ts ASC);

CREATE TABLE IF NOT EXISTS llm_calls (
	id TEXT PRIMARY KEY,
	ts TIMESTAMP NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_hash TEXT NOT NULL,
	prompt_preview TEXT NOT NULL DEFAULT '',
	prompt_size INTEGER NOT NULL DEFAULT 0,
	response_size INTEGER NOT NULL DEFAULT 0,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens INTEGER NOT NULL DEFAULT 0,
	cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
	cost_estimate REAL NOT NULL DEFAULT 0,
	source TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	success BOOLEAN NOT NULL DEFAULT TRUE,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_llm_calls_ts ON llm_calls(ts DESC);
CREATE INDEX IF NOT EXISTS idx_llm_calls_provider ON llm_calls(provider, ts DESC);
`

// migrate creates the schema (idempotent) and the FTS5 shadow index for
// events, falling back gracefully if FTS5 is unavailable in the linked
// SQLite build.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(baseSchema); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
			title, body, metadata,
			content='events', content_rowid='rowid'
		);
	`)
	if err != nil {
		s.log.Warn("fts5 unavailable, falling back to LIKE search for events", "error", err)
		s.ftsEvents = false
		return nil
	}
	s.ftsEvents = true

	// Backfill in case events_fts was just created against a table that
	// already had rows (first migration on an existing DB).
	_, err = s.db.Exec(`INSERT INTO events_fts(events_fts) VALUES('rebuild')`)
	if err != nil {
		s.log.Warn("events_fts rebuild failed", "error", err)
	}
	return nil
}

// newID returns a time-ordered UUIDv7 string, falling back to a random
// UUIDv4 if the host's entropy source is briefly unavailable.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
