// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Live Poll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(st, hub, dispatcher, cfg)

The notifier (normally a broadcast.Dispatcher) receives fresh results after
every admitted vote and when a poll ends. The hub holds websocket
subscribers.

# Endpoints

Health:

	GET /health
	GET /stats
	GET /stats/polls - Unique voters per poll

Poll lifecycle (requires X-User-Token, except GET):

	POST   /polls              - Create poll
	GET    /polls/{id}         - Poll with choices
	POST   /polls/{id}/choices - Add choice (owner)
	POST   /polls/{id}/end     - Close voting (owner)
	DELETE /polls/{id}         - Delete poll (owner)

Voting (requires X-User-Token):

	POST /polls/{id}/vote   - Vote with {"choice_id": "..."}
	POST /choices/{id}/vote - Vote for the choice in the path

Results (public):

	GET /polls/{id}/results - Current tallies
	GET /polls/{id}/live    - Websocket stream of tallies
*/
package router
