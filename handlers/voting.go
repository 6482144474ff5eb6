// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/results"
	"github.com/danielhkuo/livepoll/store"
	"github.com/danielhkuo/livepoll/voting"
)

type VotingHandler struct {
	store      *store.Store
	controller *voting.Controller
	notifier   Notifier
	cfg        cliparse.Config
}

func NewVotingHandler(st *store.Store, controller *voting.Controller, notifier Notifier, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{store: st, controller: controller, notifier: notifier, cfg: cfg}
}

// Vote handles POST /polls/{id}/vote
func (h *VotingHandler) Vote(w http.ResponseWriter, r *http.Request) {
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

	// An empty body is a vote without a choice; admission reports it after
	// the poll, self-vote and repeat checks
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	adm, err := h.controller.Admit(r.Context(), pollID, userID, req.ChoiceID)
	recorded := err == nil || errors.Is(err, voting.ErrTalliesUnavailable)
	if !recorded {
		status, message := voteErrorStatus(err)
		if req.ChoiceID == "" && errors.Is(err, voting.ErrInvalidChoice) {
			message = "You didn't select a choice."
		}
		if status >= http.StatusInternalServerError {
			slog.Error("vote admission failed", "poll_id", pollID, "error", err)
		}
		middleware.ErrorResponse(w, status, message)
		return
	}

	slog.Info("vote recorded",
		"poll_id", pollID,
		"vote_id", adm.Vote.ID,
		"client", auth.HashIP(middleware.GetClientIP(r), h.cfg.SessionSecret),
	)

	resp := models.VoteResponse{
		Message: "Your vote has been recorded!",
		Results: models.ResultPayload{PollID: pollID, Choices: []models.ChoiceResult{}},
	}
	if err == nil {
		resp.Results = results.Build(adm.Snapshot, time.Now())
		h.notifier.Dispatch(pollID, resp.Results)
	}

	// The vote is committed; a failed read here only thins the response
	view, err := loadPoll(r.Context(), h.store, pollID)
	if err != nil {
		slog.Warn("failed to reload poll after vote", "poll_id", pollID, "error", err)
		view = models.PollWithChoices{Poll: models.Poll{ID: pollID}, Choices: []models.Choice{}}
	}
	resp.Poll = view

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// VoteChoice handles POST /choices/{id}/vote. Errors use the {"detail": ...}
// body of the REST resource endpoints.
func (h *VotingHandler) VoteChoice(w http.ResponseWriter, r *http.Request) {
	choiceID := r.PathValue("id")
	if choiceID == "" {
		middleware.DetailResponse(w, http.StatusBadRequest, "choice_id is required")
		return
	}

	userID, err := auth.UserFromRequest(r, h.cfg.SessionSecret)
	if err != nil && !errors.Is(err, auth.ErrNoToken) {
		middleware.DetailResponse(w, http.StatusUnauthorized, "Invalid user token.")
		return
	}

	adm, err := h.controller.AdmitChoice(r.Context(), choiceID, userID)
	recorded := err == nil || errors.Is(err, voting.ErrTalliesUnavailable)
	if !recorded {
		status, detail := choiceVoteErrorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("vote admission failed", "choice_id", choiceID, "error", err)
		}
		middleware.DetailResponse(w, status, detail)
		return
	}

	slog.Info("vote recorded",
		"poll_id", adm.Vote.PollID,
		"vote_id", adm.Vote.ID,
		"client", auth.HashIP(middleware.GetClientIP(r), h.cfg.SessionSecret),
	)

	if err == nil {
		h.notifier.Dispatch(adm.Vote.PollID, results.Build(adm.Snapshot, time.Now()))
	}

	middleware.JSONResponse(w, http.StatusCreated, adm.Vote)
}

// voteErrorStatus maps an admission failure to a status code and message.
func voteErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, voting.ErrAnonymous):
		return http.StatusUnauthorized, "Authentication required to vote"
	case errors.Is(err, voting.ErrPollNotFound):
		return http.StatusNotFound, "Poll not found"
	case errors.Is(err, voting.ErrPollClosed):
		return http.StatusConflict, "This poll is closed"
	case errors.Is(err, voting.ErrSelfVote):
		return http.StatusForbidden, "You cannot vote on your own poll!"
	case errors.Is(err, voting.ErrDuplicateVote):
		return http.StatusConflict, "You have already voted on this poll!"
	case errors.Is(err, voting.ErrInvalidChoice):
		return http.StatusBadRequest, "Choice does not belong to this poll"
	}
	return http.StatusServiceUnavailable, "Vote could not be recorded, please retry"
}

func choiceVoteErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, voting.ErrAnonymous):
		return http.StatusUnauthorized, "Authentication credentials were not provided."
	case errors.Is(err, voting.ErrChoiceNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, voting.ErrPollClosed):
		return http.StatusBadRequest, "This poll is closed."
	case errors.Is(err, voting.ErrSelfVote):
		return http.StatusForbidden, "You cannot vote on your own poll."
	case errors.Is(err, voting.ErrDuplicateVote):
		return http.StatusBadRequest, "You have already voted in this poll."
	case errors.Is(err, voting.ErrInvalidChoice):
		return http.StatusBadRequest, "Choice does not belong to this poll."
	}
	return http.StatusServiceUnavailable, "Vote could not be recorded, please retry."
}
