// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/store"
)

// Admission errors. Each is a distinct, user-visible failure mode.
var (
	ErrAnonymous      = errors.New("authentication required to vote")
	ErrPollClosed     = errors.New("poll is not open for voting")
	ErrPollNotFound   = fmt.Errorf("%w: poll not found", ErrPollClosed)
	ErrSelfVote       = errors.New("cannot vote on own poll")
	ErrDuplicateVote  = errors.New("already voted on this poll")
	ErrInvalidChoice  = errors.New("choice does not belong to this poll")
	ErrChoiceNotFound = fmt.Errorf("%w: choice not found", ErrInvalidChoice)
)

// Infrastructure errors.
var (
	// ErrStoreUnavailable means the vote was not recorded; retrying is safe.
	ErrStoreUnavailable = errors.New("vote store unavailable")
	// ErrTalliesUnavailable means the vote was recorded but the tallies
	// could not be read back afterwards.
	ErrTalliesUnavailable = errors.New("vote recorded but tallies unavailable")
)

// Store is the part of the tally store the controller needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
	ComputeTallies(ctx context.Context, pollID string) (models.TallySnapshot, error)
	ChoicePoll(ctx context.Context, choiceID string) (string, error)
}

// Admission is the result of a successful Admit.
type Admission struct {
	Vote     models.Vote
	Snapshot models.TallySnapshot
}

// Controller validates and commits votes.
type Controller struct {
	store   Store
	timeout time.Duration
}

// NewController returns a controller whose store work is bounded by timeout.
// A zero timeout leaves the caller's context as the only bound.
func NewController(s Store, timeout time.Duration) *Controller {
	return &Controller{store: s, timeout: timeout}
}

// Admit records userID's vote for choiceID on pollID and returns the
// recomputed tallies. Preconditions are checked in this order, each with its
// own error: the poll is active, the voter is not the owner, the voter has not
// voted, the choice belongs to the poll.
//
// The vote is committed before tallies are read. If that read fails, Admit
// returns the committed vote with ErrTalliesUnavailable.
func (c *Controller) Admit(ctx context.Context, pollID, userID, choiceID string) (Admission, error) {
	if userID == "" {
		return Admission{}, ErrAnonymous
	}

	vote := models.Vote{
		ID:        uuid.NewString(),
		UserID:    userID,
		PollID:    pollID,
		ChoiceID:  choiceID,
		CreatedAt: time.Now().UTC(),
	}

	if err := c.commit(ctx, vote); err != nil {
		return Admission{}, err
	}

	slog.Info("vote admitted", "poll_id", pollID, "vote_id", vote.ID)

	snap, err := c.store.ComputeTallies(ctx, pollID)
	if err != nil {
		slog.Error("failed to compute tallies after vote", "poll_id", pollID, "error", err)
		return Admission{Vote: vote}, fmt.Errorf("%w: %v", ErrTalliesUnavailable, err)
	}

	return Admission{Vote: vote, Snapshot: snap}, nil
}

// AdmitChoice is Admit for callers that only know the choice.
func (c *Controller) AdmitChoice(ctx context.Context, choiceID, userID string) (Admission, error) {
	if userID == "" {
		return Admission{}, ErrAnonymous
	}

	pollID, err := c.store.ChoicePoll(ctx, choiceID)
	if errors.Is(err, store.ErrNotFound) {
		return Admission{}, ErrChoiceNotFound
	}
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return c.Admit(ctx, pollID, userID, choiceID)
}

func (c *Controller) commit(ctx context.Context, vote models.Vote) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		gate, err := tx.PollGate(ctx, vote.PollID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPollNotFound
		}
		if err != nil {
			return err
		}
		if !gate.Active {
			return ErrPollClosed
		}

		if gate.OwnerID == vote.UserID {
			return ErrSelfVote
		}

		ok, err := tx.ChoiceInPoll(ctx, vote.ChoiceID, vote.PollID)
		if err != nil {
			return err
		}
		if !ok {
			// A repeat voter hears about the repeat before the bad choice
			voted, err := tx.HasVoted(ctx, vote.PollID, vote.UserID)
			if err != nil {
				return err
			}
			if voted {
				return ErrDuplicateVote
			}
			return ErrInvalidChoice
		}

		// The unique constraint on (user_id, poll_id) decides repeat votes,
		// including ones racing this transaction.
		return tx.InsertVote(ctx, vote)
	})

	return translate(err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPollClosed),
		errors.Is(err, ErrSelfVote),
		errors.Is(err, ErrDuplicateVote),
		errors.Is(err, ErrInvalidChoice):
		return err
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicateVote, err)
	case errors.Is(err, store.ErrNotFound):
		// InsertVote found the poll closed (or deleted) after the gate check.
		return ErrPollClosed
	case errors.Is(err, store.ErrForeignKey):
		return ErrInvalidChoice
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
