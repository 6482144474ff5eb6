// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Live Poll API.

# Handler Types

Each handler is a struct holding the store and whatever else it needs:

  - PollHandler: Poll lifecycle (create, view, add choices, end, delete)
  - VotingHandler: Vote admission on both voting routes
  - ResultsHandler: Current tallies
  - StatsHandler: Site-wide totals and unique voters per poll
  - LiveHandler: Websocket subscriptions to live tallies

	pollHandler := handlers.NewPollHandler(st, dispatcher, cfg)

# Identity

Requests carry a signed user token in the X-User-Token header (see package
auth). Reading a poll or its results needs no token; creating, managing, and
voting do.

# Poll Lifecycle

Polls are created active and can only be closed, never reopened:

	POST   /polls               → CreatePoll (caller becomes the owner)
	GET    /polls/{id}          → GetPoll (includes user_can_vote)
	POST   /polls/{id}/choices  → AddChoice (owner, active polls only)
	POST   /polls/{id}/end      → EndPoll (owner)
	DELETE /polls/{id}          → DeletePoll (owner; votes go with it)

# Voting

	POST /polls/{id}/vote    → Vote
	POST /choices/{id}/vote  → VoteChoice

Both run the same admission checks (package voting). Vote answers with the
poll and fresh results; VoteChoice answers with the vote record and reports
errors as {"detail": "..."}. Status codes for Vote:

	401  no user token
	404  unknown poll
	409  poll closed
	403  voting on your own poll
	409  already voted
	400  choice not in this poll
	503  store unavailable, nothing recorded

After an admitted vote the handler passes the new results to its Notifier.
The response does not depend on whether the live update goes out.
DeletePoll tells the Notifier to forget the poll.

A body without choice_id goes through the same checks, so a closed poll or
a repeat voter still gets its own error. Only a voter who could vote gets
400 "You didn't select a choice."

# Stats

	GET /stats        → GetStats (total polls, votes, completed polls)
	GET /stats/polls  → GetPollStats (unique voters per poll)

# Live Updates

	GET /polls/{id}/live → Subscribe

Unknown or closed polls are rejected before the upgrade. Each admitted vote
sends a poll_update message; clients fetch GET /polls/{id}/results for the
state at connect time.
*/
package handlers
