// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/results"
	"github.com/danielhkuo/livepoll/store"
)

type ResultsHandler struct {
	store *store.Store
}

func NewResultsHandler(st *store.Store) *ResultsHandler {
	return &ResultsHandler{store: st}
}

// GetResults handles GET /polls/{id}/results
// Results are public and live; closed polls return their final tallies.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	snap, err := h.store.ComputeTallies(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to compute tallies", "poll_id", pollID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, results.Build(snap, time.Now()))
}

type StatsHandler struct {
	store *store.Store
}

func NewStatsHandler(st *store.Store) *StatsHandler {
	return &StatsHandler{store: st}
}

// GetStats handles GET /stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		slog.Error("failed to query stats", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.StatsResponse{
		TotalPolls:     st.TotalPolls,
		TotalVotes:     st.TotalVotes,
		CompletedPolls: st.CompletedPolls,
	})
}

// GetPollStats handles GET /stats/polls
func (h *StatsHandler) GetPollStats(w http.ResponseWriter, r *http.Request) {
	voters, err := h.store.PollVoters(r.Context())
	if err != nil {
		slog.Error("failed to query poll voters", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.PollVotersResponse{Polls: make([]models.PollVoters, 0, len(voters))}
	for _, pv := range voters {
		resp.Polls = append(resp.Polls, models.PollVoters{
			PollID:       pv.PollID,
			Text:         pv.Text,
			UniqueVoters: pv.UniqueVoters,
		})
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
