// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Drivers

Open picks the driver from cfg.DatabaseType:

  - sqlite (default): modernc.org/sqlite, pure Go, foreign keys switched on
  - postgres: github.com/lib/pq

	conn, err := db.Open(cfg)

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - poll: question text, owner, active flag
  - choice: answers, ordered by position
  - vote: one row per (user, poll)

# Relationships

	poll 1──* choice
	poll 1──* vote
	choice 1──* vote

All foreign keys use ON DELETE CASCADE. vote references choice through
(choice_id, poll_id), so a vote can never point at another poll's choice.

# Constraints

UNIQUE (user_id, poll_id) on vote enforces one vote per user per poll even
when two requests race past the application-level check.
*/
package db
