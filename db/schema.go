// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/livepoll/cliparse"
)

// Open connects to the configured database and verifies the connection.
func Open(cfg cliparse.Config) (*sql.DB, error) {
	dsn := cfg.DatabaseURL
	if cfg.DatabaseType == cliparse.DatabaseSQLite {
		dsn = SQLiteDSN(dsn)
	}

	conn, err := sql.Open(cfg.DatabaseType, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection keeps transactions serialized
	// instead of failing with SQLITE_BUSY.
	if cfg.DatabaseType == cliparse.DatabaseSQLite {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// SQLiteDSN turns on foreign keys, which SQLite leaves off by default.
// Cascading deletes depend on them.
func SQLiteDSN(dsn string) string {
	sep := "?"
	for i := 0; i < len(dsn); i++ {
		if dsn[i] == '?' {
			sep = "&"
			break
		}
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The schema sticks to the subset of SQL that both PostgreSQL and SQLite accept.
const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    text TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    pub_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    closed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_poll_owner_id ON poll(owner_id);
CREATE INDEX IF NOT EXISTS idx_poll_active ON poll(active);

-- Choices
CREATE TABLE IF NOT EXISTS choice (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (id, poll_id)
);

CREATE INDEX IF NOT EXISTS idx_choice_poll_id ON choice(poll_id, position);

-- Votes
-- UNIQUE (user_id, poll_id) is what makes a vote count exactly once.
-- The composite foreign key keeps every vote's choice inside its poll.
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    choice_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, poll_id),
    FOREIGN KEY (choice_id, poll_id) REFERENCES choice(id, poll_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_vote_poll_id ON vote(poll_id);
CREATE INDEX IF NOT EXISTS idx_vote_choice_id ON vote(choice_id);
`
