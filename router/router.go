// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/livepoll/broadcast"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/handlers"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/store"
	"github.com/danielhkuo/livepoll/voting"
)

// NewRouter registers every endpoint. Admitted votes and closed polls are
// reported to notifier; live subscribers are attached to hub.
func NewRouter(st *store.Store, hub *broadcast.Hub, notifier handlers.Notifier, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	controller := voting.NewController(st, cfg.StoreTimeout)
	pollHandler := handlers.NewPollHandler(st, notifier, cfg)
	votingHandler := handlers.NewVotingHandler(st, controller, notifier, cfg)
	resultsHandler := handlers.NewResultsHandler(st)
	statsHandler := handlers.NewStatsHandler(st)
	liveHandler := handlers.NewLiveHandler(st, hub)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Poll lifecycle
	mux.HandleFunc("POST /polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(pollHandler.GetPoll))
	mux.HandleFunc("POST /polls/{id}/choices", middleware.WithLogging(pollHandler.AddChoice))
	mux.HandleFunc("POST /polls/{id}/end", middleware.WithLogging(pollHandler.EndPoll))
	mux.HandleFunc("DELETE /polls/{id}", middleware.WithLogging(pollHandler.DeletePoll))

	// Voting
	mux.HandleFunc("POST /polls/{id}/vote", middleware.WithLogging(votingHandler.Vote))
	mux.HandleFunc("POST /choices/{id}/vote", middleware.WithLogging(votingHandler.VoteChoice))

	// Results
	mux.HandleFunc("GET /polls/{id}/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /stats", middleware.WithLogging(statsHandler.GetStats))
	mux.HandleFunc("GET /stats/polls", middleware.WithLogging(statsHandler.GetPollStats))

	// Live updates (websocket)
	mux.HandleFunc("GET /polls/{id}/live", middleware.WithLogging(liveHandler.Subscribe))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("livepoll API v1"))
	})

	return mux
}
