// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/store"
	"github.com/danielhkuo/livepoll/testutil"
	"github.com/danielhkuo/livepoll/voting"
)

func newTestVotingHandler(t *testing.T) (*VotingHandler, *sql.DB, *recordingNotifier, cliparse.Config) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	st := store.New(db)
	notifier := &recordingNotifier{}
	return NewVotingHandler(st, voting.NewController(st, cfg.StoreTimeout), notifier, cfg), db, notifier, cfg
}

func castVote(h *VotingHandler, pollID string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("POST", "/polls/"+pollID+"/vote", body, headers)
	req.SetPathValue("id", pollID)
	w := httptest.NewRecorder()
	h.Vote(w, req)
	return w
}

func TestVote(t *testing.T) {
	handler, db, notifier, cfg := newTestVotingHandler(t)

	pollID := testutil.CreateTestPoll(t, db, "owner", true)
	a := testutil.AddTestChoice(t, db, pollID, "A")
	b := testutil.AddTestChoice(t, db, pollID, "B")

	w := castVote(handler, pollID, models.VoteRequest{ChoiceID: a}, testutil.UserHeaders(cfg, "u1"))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.VoteResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Results.TotalVotes != 1 {
		t.Errorf("Expected total_votes 1, got %d", resp.Results.TotalVotes)
	}
	if resp.Results.Choices[0].ID != a || resp.Results.Choices[0].Percentage != 100 {
		t.Errorf("Unexpected results: %+v", resp.Results.Choices)
	}
	if resp.Poll.Poll.ID != pollID || len(resp.Poll.Choices) != 2 {
		t.Errorf("Unexpected poll in response: %+v", resp.Poll)
	}
	if resp.Poll.UserCanVote {
		t.Error("Voter should not be able to vote again")
	}

	w = castVote(handler, pollID, models.VoteRequest{ChoiceID: b}, testutil.UserHeaders(cfg, "u2"))
	testutil.AssertStatus(t, w, http.StatusCreated)

	updates := notifier.Updates()
	if len(updates) != 2 {
		t.Fatalf("Expected 2 live updates, got %d", len(updates))
	}
	last := updates[1]
	if last.TotalVotes != 2 || last.Choices[0].Percentage != 50 || last.Choices[1].Percentage != 50 {
		t.Errorf("Unexpected live update: %+v", last)
	}
}

func TestVoteErrors(t *testing.T) {
	handler, db, notifier, cfg := newTestVotingHandler(t)

	pollID := testutil.CreateTestPoll(t, db, "owner", true)
	a := testutil.AddTestChoice(t, db, pollID, "A")
	closedPoll := testutil.CreateTestPoll(t, db, "owner", false)
	closedChoice := testutil.AddTestChoice(t, db, closedPoll, "A")
	otherPoll := testutil.CreateTestPoll(t, db, "owner", true)
	foreign := testutil.AddTestChoice(t, db, otherPoll, "X")
	testutil.CastTestVote(t, db, pollID, a, "voted")

	tests := []struct {
		name           string
		pollID         string
		body           interface{}
		headers        map[string]string
		expectedStatus int
		message        string
	}{
		{"anonymous", pollID, models.VoteRequest{ChoiceID: a}, nil, http.StatusUnauthorized, ""},
		{"forged token", pollID, models.VoteRequest{ChoiceID: a}, map[string]string{auth.UserTokenHeader: "u1.bad"}, http.StatusUnauthorized, ""},
		{"unknown poll", "missing", models.VoteRequest{ChoiceID: a}, testutil.UserHeaders(cfg, "u1"), http.StatusNotFound, ""},
		{"closed poll", closedPoll, models.VoteRequest{ChoiceID: closedChoice}, testutil.UserHeaders(cfg, "u1"), http.StatusConflict, ""},
		{"self vote", pollID, models.VoteRequest{ChoiceID: a}, testutil.UserHeaders(cfg, "owner"), http.StatusForbidden, ""},
		{"duplicate", pollID, models.VoteRequest{ChoiceID: a}, testutil.UserHeaders(cfg, "voted"), http.StatusConflict, ""},
		{"choice from another poll", pollID, models.VoteRequest{ChoiceID: foreign}, testutil.UserHeaders(cfg, "u1"), http.StatusBadRequest, "Choice does not belong to this poll"},
		{"no choice", pollID, models.VoteRequest{}, testutil.UserHeaders(cfg, "u1"), http.StatusBadRequest, "You didn't select a choice."},
		{"empty body", pollID, nil, testutil.UserHeaders(cfg, "u1"), http.StatusBadRequest, "You didn't select a choice."},
		{"no choice on closed poll", closedPoll, models.VoteRequest{}, testutil.UserHeaders(cfg, "u1"), http.StatusConflict, "This poll is closed"},
		{"no choice from owner", pollID, models.VoteRequest{}, testutil.UserHeaders(cfg, "owner"), http.StatusForbidden, "You cannot vote on your own poll!"},
		{"no choice after voting", pollID, models.VoteRequest{}, testutil.UserHeaders(cfg, "voted"), http.StatusConflict, "You have already voted on this poll!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := castVote(handler, tt.pollID, tt.body, tt.headers)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			var resp models.ErrorResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Message == "" {
				t.Error("Expected an error message")
			}
			if tt.message != "" && resp.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, resp.Message)
			}
		})
	}

	if n := testutil.CountVotes(t, db, pollID); n != 1 {
		t.Errorf("Rejected votes changed the count to %d", n)
	}
	if updates := notifier.Updates(); len(updates) != 0 {
		t.Errorf("Rejected votes must not publish, got %d updates", len(updates))
	}
}

func TestVoteStoreUnavailable(t *testing.T) {
	handler, db, _, cfg := newTestVotingHandler(t)

	pollID := testutil.CreateTestPoll(t, db, "owner", true)
	a := testutil.AddTestChoice(t, db, pollID, "A")
	db.Close()

	w := castVote(handler, pollID, models.VoteRequest{ChoiceID: a}, testutil.UserHeaders(cfg, "u1"))
	testutil.AssertStatus(t, w, http.StatusServiceUnavailable)
}

func TestVoteChoice(t *testing.T) {
	handler, db, notifier, cfg := newTestVotingHandler(t)

	pollID := testutil.CreateTestPoll(t, db, "owner", true)
	a := testutil.AddTestChoice(t, db, pollID, "A")

	vote := func(choiceID string, headers map[string]string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/choices/"+choiceID+"/vote", nil, headers)
		req.SetPathValue("id", choiceID)
		w := httptest.NewRecorder()
		handler.VoteChoice(w, req)
		return w
	}

	w := vote(a, testutil.UserHeaders(cfg, "u1"))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var created models.Vote
	testutil.AssertJSON(t, w, &created)
	if created.PollID != pollID || created.ChoiceID != a || created.UserID != "u1" {
		t.Errorf("Unexpected vote: %+v", created)
	}
	if len(notifier.Updates()) != 1 {
		t.Errorf("Expected one live update, got %d", len(notifier.Updates()))
	}

	tests := []struct {
		name           string
		choiceID       string
		headers        map[string]string
		expectedStatus int
		detail         string
	}{
		{"duplicate", a, testutil.UserHeaders(cfg, "u1"), http.StatusBadRequest, "You have already voted in this poll."},
		{"anonymous", a, nil, http.StatusUnauthorized, "Authentication credentials were not provided."},
		{"self vote", a, testutil.UserHeaders(cfg, "owner"), http.StatusForbidden, "You cannot vote on your own poll."},
		{"unknown choice", "missing", testutil.UserHeaders(cfg, "u2"), http.StatusNotFound, "Not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := vote(tt.choiceID, tt.headers)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			var resp models.DetailResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Detail != tt.detail {
				t.Errorf("Expected detail %q, got %q", tt.detail, resp.Detail)
			}
		})
	}

	if n := testutil.CountVotes(t, db, pollID); n != 1 {
		t.Errorf("Expected 1 vote, got %d", n)
	}
}
