// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package results

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/danielhkuo/livepoll/models"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		votes    int
		total    int
		expected float64
	}{
		{"zero total", 0, 0, 0},
		{"all votes", 1, 1, 100.0},
		{"half", 1, 2, 50.0},
		{"one third rounds down", 1, 3, 33.3},
		{"two thirds rounds up", 2, 3, 66.7},
		{"one sixth", 1, 6, 16.7},
		{"no votes for choice", 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentage(tt.votes, tt.total)
			if got != tt.expected {
				t.Errorf("Percentage(%d, %d) = %v, expected %v", tt.votes, tt.total, got, tt.expected)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := models.TallySnapshot{
		PollID: "poll-1",
		Choices: []models.ChoiceTally{
			{ChoiceID: "a", Text: "Alpha", Votes: 1},
			{ChoiceID: "b", Text: "Beta", Votes: 1},
			{ChoiceID: "c", Text: "Gamma", Votes: 0},
		},
		TotalVotes: 2,
	}

	payload := Build(snap, now)

	if payload.PollID != "poll-1" {
		t.Errorf("Expected poll_id poll-1, got %s", payload.PollID)
	}
	if payload.TotalVotes != 2 {
		t.Errorf("Expected total 2, got %d", payload.TotalVotes)
	}
	if !payload.GeneratedAt.Equal(now) {
		t.Errorf("Expected generated_at %v, got %v", now, payload.GeneratedAt)
	}
	if len(payload.Choices) != 3 {
		t.Fatalf("Expected 3 choices, got %d", len(payload.Choices))
	}

	// Order must follow the snapshot, not the counts
	expected := []struct {
		id  string
		pct float64
	}{{"a", 50.0}, {"b", 50.0}, {"c", 0}}
	for i, e := range expected {
		if payload.Choices[i].ID != e.id {
			t.Errorf("Choice %d: expected id %s, got %s", i, e.id, payload.Choices[i].ID)
		}
		if payload.Choices[i].Percentage != e.pct {
			t.Errorf("Choice %s: expected %v%%, got %v%%", e.id, e.pct, payload.Choices[i].Percentage)
		}
	}
}

func TestBuild_NoVotes(t *testing.T) {
	snap := models.TallySnapshot{
		PollID: "poll-1",
		Choices: []models.ChoiceTally{
			{ChoiceID: "a", Text: "Alpha"},
			{ChoiceID: "b", Text: "Beta"},
		},
	}

	payload := Build(snap, time.Now())

	for _, c := range payload.Choices {
		if c.Percentage != 0 {
			t.Errorf("Expected 0%% for %s with no votes, got %v", c.ID, c.Percentage)
		}
	}
}

func TestUpdateMessage_WireFormat(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := Build(models.TallySnapshot{
		PollID:     "poll-1",
		Choices:    []models.ChoiceTally{{ChoiceID: "a", Text: "Alpha", Votes: 1}},
		TotalVotes: 1,
	}, now)

	data, err := json.Marshal(UpdateMessage(payload))
	if err != nil {
		t.Fatalf("Failed to marshal message: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Choices []struct {
				ID         string  `json:"id"`
				Votes      int     `json:"votes"`
				Percentage float64 `json:"percentage"`
			} `json:"choices"`
			TotalVotes int `json:"total_votes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if decoded.Type != "poll_update" {
		t.Errorf("Expected type poll_update, got %s", decoded.Type)
	}
	if decoded.Data.TotalVotes != 1 {
		t.Errorf("Expected total_votes 1, got %d", decoded.Data.TotalVotes)
	}
	if len(decoded.Data.Choices) != 1 || decoded.Data.Choices[0].Percentage != 100.0 {
		t.Errorf("Unexpected choices: %+v", decoded.Data.Choices)
	}
}
