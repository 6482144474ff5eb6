// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/results"
	"github.com/danielhkuo/livepoll/store"
)

// Notifier hands a fresh result payload to the live update path. It must not
// block; the return value only reports whether the update was queued.
// Forget is called once a poll is deleted.
type Notifier interface {
	Dispatch(pollID string, payload models.ResultPayload) bool
	Forget(pollID string)
}

type PollHandler struct {
	store    *store.Store
	notifier Notifier
	cfg      cliparse.Config
}

func NewPollHandler(st *store.Store, notifier Notifier, cfg cliparse.Config) *PollHandler {
	return &PollHandler{store: st, notifier: notifier, cfg: cfg}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.cfg.SessionSecret)
	if !ok {
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "text is required")
		return
	}
	choices := make([]string, 0, len(req.Choices))
	for _, c := range req.Choices {
		c = strings.TrimSpace(c)
		if c == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "choice text cannot be empty")
			return
		}
		choices = append(choices, c)
	}

	poll, created, err := h.store.CreatePoll(r.Context(), userID, req.Text, choices)
	if err != nil {
		slog.Error("failed to create poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", poll.ID, "owner_id", userID, "choices", len(created))

	choiceIDs := make([]string, 0, len(created))
	for _, c := range created {
		choiceIDs = append(choiceIDs, c.ID)
	}
	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:    poll.ID,
		ChoiceIDs: choiceIDs,
	})
}

// GetPoll handles GET /polls/{id}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	userID, err := auth.UserFromRequest(r, h.cfg.SessionSecret)
	if err != nil && !errors.Is(err, auth.ErrNoToken) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid user token")
		return
	}

	view, err := loadPoll(r.Context(), h.store, pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to load poll", "poll_id", pollID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Anonymous users, owners, and repeat voters cannot vote
	if view.Poll.Active && userID != "" && userID != view.Poll.OwnerID {
		voted, err := h.store.HasVoted(r.Context(), pollID, userID)
		if err != nil {
			slog.Error("failed to check vote", "poll_id", pollID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		view.UserCanVote = !voted
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// AddChoice handles POST /polls/{id}/choices
func (h *PollHandler) AddChoice(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.ownedPoll(w, r)
	if !ok {
		return
	}

	var req models.AddChoiceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "text is required")
		return
	}

	if !poll.Active {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot add choices to a closed poll")
		return
	}

	choice, err := h.store.AddChoice(r.Context(), poll.ID, req.Text)
	if errors.Is(err, store.ErrForeignKey) {
		// Deleted between the ownership check and the insert
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to add choice", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create choice")
		return
	}

	slog.Info("choice added", "poll_id", poll.ID, "choice_id", choice.ID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddChoiceResponse{
		ChoiceID: choice.ID,
	})
}

// EndPoll handles POST /polls/{id}/end
func (h *PollHandler) EndPoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.ownedPoll(w, r)
	if !ok {
		return
	}

	closed, closedAt, err := h.store.ClosePoll(r.Context(), poll.ID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to close poll", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}
	if !closed {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is already closed")
		return
	}

	snap, err := h.store.ComputeTallies(r.Context(), poll.ID)
	if err != nil {
		slog.Error("failed to compute final tallies", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}
	payload := results.Build(snap, time.Now())

	slog.Info("poll closed", "poll_id", poll.ID, "total_votes", payload.TotalVotes)

	// Watchers get the final tallies
	h.notifier.Dispatch(poll.ID, payload)

	middleware.JSONResponse(w, http.StatusOK, models.EndPollResponse{
		PollID:   poll.ID,
		Active:   false,
		ClosedAt: closedAt,
		Results:  payload,
	})
}

// DeletePoll handles DELETE /polls/{id}
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.ownedPoll(w, r)
	if !ok {
		return
	}

	err := h.store.DeletePoll(r.Context(), poll.ID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete poll", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete poll")
		return
	}

	h.notifier.Forget(poll.ID)
	slog.Info("poll deleted", "poll_id", poll.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ownedPoll loads the path's poll and checks the caller owns it. It writes
// the error response itself and reports false when the request should stop.
func (h *PollHandler) ownedPoll(w http.ResponseWriter, r *http.Request) (models.Poll, bool) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return models.Poll{}, false
	}

	userID, ok := requireUser(w, r, h.cfg.SessionSecret)
	if !ok {
		return models.Poll{}, false
	}

	poll, err := h.store.GetPoll(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return models.Poll{}, false
	}
	if err != nil {
		slog.Error("failed to query poll", "poll_id", pollID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Poll{}, false
	}

	if poll.OwnerID != userID {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the poll owner can do that")
		return models.Poll{}, false
	}

	return poll, true
}

// requireUser writes a 401 and reports false for anonymous or forged requests.
func requireUser(w http.ResponseWriter, r *http.Request, secret string) (string, bool) {
	userID, err := auth.UserFromRequest(r, secret)
	if errors.Is(err, auth.ErrNoToken) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid user token")
		return "", false
	}
	return userID, true
}

func loadPoll(ctx context.Context, st *store.Store, pollID string) (models.PollWithChoices, error) {
	poll, err := st.GetPoll(ctx, pollID)
	if err != nil {
		return models.PollWithChoices{}, err
	}

	choices, err := st.ListChoices(ctx, pollID)
	if err != nil {
		return models.PollWithChoices{}, err
	}

	return models.PollWithChoices{Poll: poll, Choices: choices}, nil
}
