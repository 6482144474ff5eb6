// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package results turns tally snapshots into the payloads clients render.
// The same functions serve the results page and every live update, so both
// always agree on rounding.
package results

import (
	"math"
	"time"

	"github.com/danielhkuo/livepoll/models"
)

// Percentage returns votes as a percentage of total, rounded to one decimal.
// It is 0 when total is 0.
func Percentage(votes, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(votes)*1000/float64(total)) / 10
}

// Build converts a snapshot into a ResultPayload stamped with now.
func Build(snap models.TallySnapshot, now time.Time) models.ResultPayload {
	payload := models.ResultPayload{
		PollID:      snap.PollID,
		Choices:     make([]models.ChoiceResult, 0, len(snap.Choices)),
		TotalVotes:  snap.TotalVotes,
		GeneratedAt: now.UTC(),
	}

	for _, c := range snap.Choices {
		payload.Choices = append(payload.Choices, models.ChoiceResult{
			ID:         c.ChoiceID,
			Text:       c.Text,
			Votes:      c.Votes,
			Percentage: Percentage(c.Votes, snap.TotalVotes),
		})
	}

	return payload
}

// UpdateMessage wraps a payload as a poll_update live message.
func UpdateMessage(p models.ResultPayload) models.PollUpdateMessage {
	choices := make([]models.ChoiceUpdate, 0, len(p.Choices))
	for _, c := range p.Choices {
		choices = append(choices, models.ChoiceUpdate{
			ID:         c.ID,
			Votes:      c.Votes,
			Percentage: c.Percentage,
		})
	}

	return models.PollUpdateMessage{
		Type: models.MessageTypePollUpdate,
		Data: models.PollUpdateData{
			PollID:      p.PollID,
			Choices:     choices,
			TotalVotes:  p.TotalVotes,
			GeneratedAt: p.GeneratedAt,
		},
	}
}
