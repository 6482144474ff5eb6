// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, domain, and live message types.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: text, choices
  - AddChoiceRequest: text
  - VoteRequest: choice_id

# Response Types

Types for JSON responses:

  - CreatePollResponse: poll_id, choice_ids
  - AddChoiceResponse: choice_id
  - EndPollResponse: poll_id, active, closed_at, results
  - VoteResponse: message, poll, results
  - StatsResponse: total_polls, total_votes, completed_polls
  - PollVotersResponse: polls of {poll_id, text, unique_voters}
  - ErrorResponse: error, message
  - DetailResponse: detail (REST resource errors)

# Domain Types

  - Poll: question text, owner, active flag
  - Choice: answer text, ordered by position within a poll
  - Vote: one per (user, poll)

# Tallies

TallySnapshot is what the store reads; ResultPayload is what clients see.
The results package converts one into the other so percentages are rounded
the same way everywhere.

# Live Messages

Subscribers of a poll receive PollUpdateMessage values:

	{"type": "poll_update", "data": {"choices": [{"id": "...", "votes": 1, "percentage": 100}], "total_votes": 1}}
*/
package models
