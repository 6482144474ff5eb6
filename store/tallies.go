// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"

	"github.com/danielhkuo/livepoll/models"
)

// ComputeTallies counts the poll's votes per choice from the vote records.
//
// The counts come from one grouped statement, so every choice is counted
// against the same snapshot of the vote table and TotalVotes is their sum.
// Choices are returned in creation order, including those with no votes.
func (s *Store) ComputeTallies(ctx context.Context, pollID string) (models.TallySnapshot, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM poll WHERE id = $1)
	`, pollID).Scan(&exists)
	if err != nil {
		return models.TallySnapshot{}, fmt.Errorf("failed to query poll: %w", err)
	}
	if !exists {
		return models.TallySnapshot{}, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.text, COUNT(v.id)
		FROM choice c
		LEFT JOIN vote v ON v.choice_id = c.id AND v.poll_id = c.poll_id
		WHERE c.poll_id = $1
		GROUP BY c.id, c.text, c.position, c.created_at
		ORDER BY c.position, c.created_at, c.id
	`, pollID)
	if err != nil {
		return models.TallySnapshot{}, fmt.Errorf("failed to query tallies: %w", err)
	}
	defer rows.Close()

	snap := models.TallySnapshot{
		PollID:  pollID,
		Choices: []models.ChoiceTally{},
	}
	for rows.Next() {
		var ct models.ChoiceTally
		if err := rows.Scan(&ct.ChoiceID, &ct.Text, &ct.Votes); err != nil {
			return models.TallySnapshot{}, fmt.Errorf("failed to scan tally: %w", err)
		}
		snap.Choices = append(snap.Choices, ct)
		snap.TotalVotes += ct.Votes
	}
	if err := rows.Err(); err != nil {
		return models.TallySnapshot{}, fmt.Errorf("failed to read tallies: %w", err)
	}

	return snap, nil
}
