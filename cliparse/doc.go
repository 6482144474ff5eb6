// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags

	-p                Server port (default 3318)
	-d                Database URL
	-t                Database type: sqlite (default) or postgres
	-session-secret   Session token secret
	-redis            Redis URL, enables cross-instance live updates
	-store-timeout    Bound on vote admission store work (default 5s)
	-publish-timeout  Bound on one live update publish (default 2s)
	-queue            Live update dispatch queue length (default 256)

# Environment Variables

Flags fall back to environment variables:

	PORT            → -p
	DATABASE_URL    → -d
	DATABASE_TYPE   → -t
	SESSION_SECRET  → -session-secret
	REDIS_URL       → -redis
	STORE_TIMEOUT   → -store-timeout
	PUBLISH_TIMEOUT → -publish-timeout
	BROADCAST_QUEUE → -queue

CLI flags take precedence over environment variables. main loads a .env
file into the environment before parsing, if one exists.

# Validation

ParseFlags returns an error if DATABASE_URL or SESSION_SECRET is missing,
or if the database type is not sqlite or postgres.
*/
package cliparse
