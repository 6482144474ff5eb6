// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Live Poll API server.

Live Poll runs single-choice polls: users create a poll, others vote once
each, and everyone watching sees the tallies change as votes arrive over a
websocket.

# Starting the Server

The server reads environment variables (and a .env file if present) or CLI
flags:

	SESSION_SECRET=... DATABASE_URL=livepoll.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): Database connection string or SQLite file
  - SESSION_SECRET (--session-secret): Secret for user token HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - REDIS_URL (--redis): Fan live updates out across instances
  - STORE_TIMEOUT (--store-timeout): Bound on vote admission (default: 5s)
  - PUBLISH_TIMEOUT (--publish-timeout): Bound on one live update (default: 2s)
  - BROADCAST_QUEUE (--queue): Pending live updates (default: 256)

# Architecture

  - handlers: HTTP request handlers (polls, voting, results, live)
  - router: Route definitions using Go 1.22+ routing
  - voting: Vote admission checks and the duplicate-vote guarantee
  - store: Persistence of polls, choices, and votes
  - results: Tallies to percentages
  - broadcast: Per-poll subscriber groups, dispatch queue, Redis relay
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: User tokens
  - db: Connection and schema
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
