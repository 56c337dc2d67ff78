// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite C code — works everywhere Go works.
//
// The schema is created by migrate() at startup. CREATE TABLE IF NOT EXISTS
// keeps it idempotent; the rating aggregate triggers live here too, so the
// rating_count/rating_sum invariant is upheld by the storage layer rather
// than request code.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a SQLite connection pool and runs migrations.
//
// dbPath examples:
//   - "data/tracker.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — important for a
	// web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite; the tree tables rely on
	// ON DELETE CASCADE, so turn them on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			email            TEXT NOT NULL UNIQUE,
			username         TEXT NOT NULL UNIQUE,
			password_hash    TEXT NOT NULL,
			email_verified   INTEGER NOT NULL DEFAULT 0,
			otp_code         TEXT NOT NULL DEFAULT '',
			otp_expires_at   DATETIME,
			otp_attempts     INTEGER NOT NULL DEFAULT 0,
			reset_token_hash TEXT NOT NULL DEFAULT '',
			reset_expires_at DATETIME,
			local_migrated   INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS custom_lists (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			icon             TEXT NOT NULL DEFAULT '',
			is_public        INTEGER NOT NULL DEFAULT 0,
			rating_count     INTEGER NOT NULL DEFAULT 0,
			rating_sum       INTEGER NOT NULL DEFAULT 0,
			copy_count       INTEGER NOT NULL DEFAULT 0,
			original_list_id TEXT REFERENCES custom_lists(id) ON DELETE SET NULL,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_lists_user_id ON custom_lists(user_id);
		CREATE INDEX IF NOT EXISTS idx_lists_public ON custom_lists(is_public, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating custom_lists table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS custom_sections (
			id          TEXT PRIMARY KEY,
			list_id     TEXT NOT NULL REFERENCES custom_lists(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			icon        TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_sections_list_id ON custom_sections(list_id);

		CREATE TABLE IF NOT EXISTS custom_topics (
			id              TEXT PRIMARY KEY,
			section_id      TEXT NOT NULL REFERENCES custom_sections(id) ON DELETE CASCADE,
			parent_topic_id TEXT REFERENCES custom_topics(id) ON DELETE CASCADE,
			title           TEXT NOT NULL,
			order_index     INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_topics_section_id ON custom_topics(section_id);

		CREATE TABLE IF NOT EXISTS custom_resources (
			id          TEXT PRIMARY KEY,
			topic_id    TEXT NOT NULL REFERENCES custom_topics(id) ON DELETE CASCADE,
			type        TEXT NOT NULL CHECK (type IN ('video','note','link','practice')),
			title       TEXT NOT NULL,
			url         TEXT NOT NULL DEFAULT '',
			platform    TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_resources_topic_id ON custom_resources(topic_id);
	`)
	if err != nil {
		return fmt.Errorf("creating tree tables: %w", err)
	}

	// resource_id uses '' (not NULL) for topic-level rows so the UNIQUE
	// constraint applies without expression-index tricks.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS custom_progress (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			list_id      TEXT NOT NULL REFERENCES custom_lists(id) ON DELETE CASCADE,
			topic_id     TEXT NOT NULL,
			resource_id  TEXT NOT NULL DEFAULT '',
			completed    INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, list_id, topic_id, resource_id)
		);
		CREATE INDEX IF NOT EXISTS idx_progress_user_list ON custom_progress(user_id, list_id);

		CREATE TABLE IF NOT EXISTS builtin_progress (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			checklist_type TEXT NOT NULL CHECK (checklist_type IN ('language_dsa','language_dev','dsa_topics','examination')),
			checklist_id   TEXT NOT NULL,
			item_key       TEXT NOT NULL,
			completed      INTEGER NOT NULL DEFAULT 0,
			UNIQUE (user_id, checklist_type, checklist_id, item_key)
		);
		CREATE INDEX IF NOT EXISTS idx_builtin_user ON builtin_progress(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating progress tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS list_ratings (
			id      TEXT PRIMARY KEY,
			list_id TEXT NOT NULL REFERENCES custom_lists(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			rating  INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			UNIQUE (list_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating list_ratings table: %w", err)
	}

	// The denormalized rating_count/rating_sum on custom_lists is maintained
	// here, not in request code — every write path through list_ratings
	// keeps the aggregate consistent.
	_, err = db.conn.Exec(`
		CREATE TRIGGER IF NOT EXISTS list_ratings_after_insert
		AFTER INSERT ON list_ratings BEGIN
			UPDATE custom_lists
			SET rating_count = rating_count + 1,
			    rating_sum   = rating_sum + NEW.rating
			WHERE id = NEW.list_id;
		END;

		CREATE TRIGGER IF NOT EXISTS list_ratings_after_update
		AFTER UPDATE OF rating ON list_ratings BEGIN
			UPDATE custom_lists
			SET rating_sum = rating_sum - OLD.rating + NEW.rating
			WHERE id = NEW.list_id;
		END;

		CREATE TRIGGER IF NOT EXISTS list_ratings_after_delete
		AFTER DELETE ON list_ratings BEGIN
			UPDATE custom_lists
			SET rating_count = rating_count - 1,
			    rating_sum   = rating_sum - OLD.rating
			WHERE id = OLD.list_id;
		END;
	`)
	if err != nil {
		return fmt.Errorf("creating rating triggers: %w", err)
	}

	return nil
}
