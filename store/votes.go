// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/livepoll/models"
)

// PollGate is the part of a poll that decides whether a vote may be cast.
type PollGate struct {
	OwnerID string
	Active  bool
}

// PollGate reads the poll's owner and active flag, or returns ErrNotFound.
func (t *Tx) PollGate(ctx context.Context, pollID string) (PollGate, error) {
	var g PollGate
	err := t.tx.QueryRowContext(ctx, `
		SELECT owner_id, active FROM poll WHERE id = $1
	`, pollID).Scan(&g.OwnerID, &g.Active)
	if err == sql.ErrNoRows {
		return PollGate{}, ErrNotFound
	}
	if err != nil {
		return PollGate{}, fmt.Errorf("failed to query poll: %w", err)
	}
	return g, nil
}

// HasVoted reports whether the user already has a vote on the poll.
func (t *Tx) HasVoted(ctx context.Context, pollID, userID string) (bool, error) {
	return hasVoted(ctx, t.tx, pollID, userID)
}

func hasVoted(ctx context.Context, q querier, pollID, userID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM vote
			WHERE poll_id = $1 AND user_id = $2
		)
	`, pollID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return exists, nil
}

// ChoiceInPoll reports whether the choice belongs to the poll.
func (t *Tx) ChoiceInPoll(ctx context.Context, choiceID, pollID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM choice
			WHERE id = $1 AND poll_id = $2
		)
	`, choiceID, pollID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check choice: %w", err)
	}
	return exists, nil
}

// InsertVote writes the vote only while its poll is still active. It returns
// ErrNotFound when the poll is gone or closed, ErrDuplicate when the user
// already voted on the poll, and ErrForeignKey when the choice is not in the poll.
// The row's created_at is v.CreatedAt.
func (t *Tx) InsertVote(ctx context.Context, v models.Vote) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO vote (id, user_id, poll_id, choice_id)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (
			SELECT 1 FROM poll WHERE id = $3 AND active = $5
		)
	`, v.ID, v.UserID, v.PollID, v.ChoiceID, true)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	// PostgreSQL cannot type a parameter in the SELECT list above, so the
	// timestamp is set separately; an UPDATE gets it from the column.
	if !v.CreatedAt.IsZero() {
		_, err = t.tx.ExecContext(ctx, `
			UPDATE vote SET created_at = $1 WHERE id = $2
		`, v.CreatedAt, v.ID)
		if err != nil {
			return fmt.Errorf("failed to stamp vote: %w", err)
		}
	}
	return nil
}
