// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/models"
)

// CreatePoll inserts an active poll and its initial choices in one transaction.
func (s *Store) CreatePoll(ctx context.Context, ownerID, text string, choices []string) (models.Poll, []models.Choice, error) {
	now := time.Now().UTC()
	poll := models.Poll{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Text:      text,
		Active:    true,
		PubDate:   now,
		CreatedAt: now,
	}

	var created []models.Choice
	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, `
			INSERT INTO poll (id, owner_id, text, active, pub_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, poll.ID, poll.OwnerID, poll.Text, poll.Active, poll.PubDate, poll.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert poll: %w", err)
		}

		for _, choiceText := range choices {
			choice, err := addChoice(ctx, tx.tx, poll.ID, choiceText)
			if err != nil {
				return err
			}
			created = append(created, choice)
		}
		return nil
	})
	if err != nil {
		return models.Poll{}, nil, err
	}

	return poll, created, nil
}

// AddChoice appends a choice at the end of the poll's choice order.
func (s *Store) AddChoice(ctx context.Context, pollID, text string) (models.Choice, error) {
	var choice models.Choice
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		choice, err = addChoice(ctx, tx.tx, pollID, text)
		return err
	})
	return choice, err
}

func addChoice(ctx context.Context, q querier, pollID, text string) (models.Choice, error) {
	var position int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM choice WHERE poll_id = $1
	`, pollID).Scan(&position)
	if err != nil {
		return models.Choice{}, fmt.Errorf("failed to read choice position: %w", err)
	}

	choice := models.Choice{
		ID:        uuid.NewString(),
		PollID:    pollID,
		Text:      text,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO choice (id, poll_id, text, position, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, choice.ID, choice.PollID, choice.Text, choice.Position, choice.CreatedAt)
	if err != nil {
		return models.Choice{}, fmt.Errorf("failed to insert choice: %w", classify(err))
	}

	return choice, nil
}

// GetPoll returns a poll by ID, or ErrNotFound.
func (s *Store) GetPoll(ctx context.Context, pollID string) (models.Poll, error) {
	var poll models.Poll
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, text, active, pub_date, created_at, closed_at
		FROM poll
		WHERE id = $1
	`, pollID).Scan(
		&poll.ID, &poll.OwnerID, &poll.Text, &poll.Active,
		&poll.PubDate, &poll.CreatedAt, &poll.ClosedAt,
	)
	if err == sql.ErrNoRows {
		return models.Poll{}, ErrNotFound
	}
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to query poll: %w", err)
	}

	return poll, nil
}

// ListChoices returns the poll's choices in creation order.
func (s *Store) ListChoices(ctx context.Context, pollID string) ([]models.Choice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, text, position, created_at
		FROM choice
		WHERE poll_id = $1
		ORDER BY position, created_at, id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	choices := []models.Choice{}
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.PollID, &c.Text, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, c)
	}

	return choices, rows.Err()
}

// ClosePoll marks an active poll inactive. Closing is one-directional:
// it reports false when the poll was already closed.
func (s *Store) ClosePoll(ctx context.Context, pollID string) (bool, time.Time, error) {
	closedAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE poll
		SET active = $1, closed_at = $2
		WHERE id = $3 AND active = $4
	`, false, closedAt, pollID, true)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to close poll: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to close poll: %w", err)
	}
	if n == 1 {
		return true, closedAt, nil
	}

	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return false, time.Time{}, err
	}
	if poll.ClosedAt != nil {
		closedAt = *poll.ClosedAt
	}
	return false, closedAt, nil
}

// DeletePoll removes a poll; its choices and votes go with it.
func (s *Store) DeletePoll(ctx context.Context, pollID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM poll WHERE id = $1`, pollID)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChoicePoll returns the ID of the poll that owns the choice.
func (s *Store) ChoicePoll(ctx context.Context, choiceID string) (string, error) {
	var pollID string
	err := s.db.QueryRowContext(ctx, `
		SELECT poll_id FROM choice WHERE id = $1
	`, choiceID).Scan(&pollID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query choice: %w", err)
	}
	return pollID, nil
}

// HasVoted reports whether the user already has a vote on the poll.
func (s *Store) HasVoted(ctx context.Context, pollID, userID string) (bool, error) {
	return hasVoted(ctx, s.db, pollID, userID)
}

type Stats struct {
	TotalPolls     int
	TotalVotes     int
	CompletedPolls int
}

// Stats returns site-wide totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM poll),
			(SELECT COUNT(*) FROM vote),
			(SELECT COUNT(*) FROM poll WHERE active = $1)
	`, false).Scan(&st.TotalPolls, &st.TotalVotes, &st.CompletedPolls)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return st, nil
}

type PollVoters struct {
	PollID       string
	Text         string
	UniqueVoters int
}

// PollVoters returns every poll with the number of distinct users who voted
// on it, oldest poll first.
func (s *Store) PollVoters(ctx context.Context) ([]PollVoters, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, COUNT(DISTINCT v.user_id)
		FROM poll p
		LEFT JOIN vote v ON v.poll_id = p.id
		GROUP BY p.id, p.text, p.created_at
		ORDER BY p.created_at, p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll voters: %w", err)
	}
	defer rows.Close()

	out := []PollVoters{}
	for rows.Next() {
		var pv PollVoters
		if err := rows.Scan(&pv.PollID, &pv.Text, &pv.UniqueVoters); err != nil {
			return nil, fmt.Errorf("failed to scan poll voters: %w", err)
		}
		out = append(out, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poll voters: %w", err)
	}
	return out, nil
}
