// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Live message type constants
const (
	MessageTypePollUpdate = "poll_update"
)

// Request types

type CreatePollRequest struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

type AddChoiceRequest struct {
	Text string `json:"text"`
}

type VoteRequest struct {
	ChoiceID string `json:"choice_id"`
}

// Response types

type CreatePollResponse struct {
	PollID    string   `json:"poll_id"`
	ChoiceIDs []string `json:"choice_ids"`
}

type AddChoiceResponse struct {
	ChoiceID string `json:"choice_id"`
}

type EndPollResponse struct {
	PollID   string        `json:"poll_id"`
	Active   bool          `json:"active"`
	ClosedAt time.Time     `json:"closed_at"`
	Results  ResultPayload `json:"results"`
}

type VoteResponse struct {
	Message string          `json:"message"`
	Poll    PollWithChoices `json:"poll"`
	Results ResultPayload   `json:"results"`
}

type StatsResponse struct {
	TotalPolls     int `json:"total_polls"`
	TotalVotes     int `json:"total_votes"`
	CompletedPolls int `json:"completed_polls"`
}

type PollVoters struct {
	PollID       string `json:"poll_id"`
	Text         string `json:"text"`
	UniqueVoters int    `json:"unique_voters"`
}

type PollVotersResponse struct {
	Polls []PollVoters `json:"polls"`
}

// Domain types

type Poll struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Text      string     `json:"text"`
	Active    bool       `json:"active"`
	PubDate   time.Time  `json:"pub_date"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type Choice struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	Text      string    `json:"text"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type PollWithChoices struct {
	Poll        Poll     `json:"poll"`
	Choices     []Choice `json:"choices"`
	UserCanVote bool     `json:"user_can_vote"`
}

type Vote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PollID    string    `json:"poll_id"`
	ChoiceID  string    `json:"choice_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Tally types

// ChoiceTally is the vote count of one choice, read from vote records.
type ChoiceTally struct {
	ChoiceID string
	Text     string
	Votes    int
}

// TallySnapshot is a point-in-time view of a poll's tallies.
// Choices are in creation order.
type TallySnapshot struct {
	PollID     string
	Choices    []ChoiceTally
	TotalVotes int
}

type ChoiceResult struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// ResultPayload is the client-ready shape of a TallySnapshot.
type ResultPayload struct {
	PollID      string         `json:"poll_id"`
	Choices     []ChoiceResult `json:"choices"`
	TotalVotes  int            `json:"total_votes"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Live message types

type ChoiceUpdate struct {
	ID         string  `json:"id"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

type PollUpdateData struct {
	PollID      string         `json:"poll_id"`
	Choices     []ChoiceUpdate `json:"choices"`
	TotalVotes  int            `json:"total_votes"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type PollUpdateMessage struct {
	Type string         `json:"type"`
	Data PollUpdateData `json:"data"`
}

// Error responses

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DetailResponse is the error body of the REST resource endpoints.
type DetailResponse struct {
	Detail string `json:"detail"`
}
