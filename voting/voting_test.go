// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/results"
	"github.com/danielhkuo/livepoll/store"
	"github.com/danielhkuo/livepoll/testutil"
)

func setupController(t *testing.T) (*Controller, *sql.DB) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	return NewController(store.New(conn), 5*time.Second), conn
}

func TestAdmit(t *testing.T) {
	c, conn := setupController(t)
	ctx := context.Background()

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	b := testutil.AddTestChoice(t, conn, pollID, "B")

	adm, err := c.Admit(ctx, pollID, "u1", a)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if adm.Vote.ID == "" || adm.Vote.UserID != "u1" || adm.Vote.ChoiceID != a {
		t.Errorf("unexpected vote %+v", adm.Vote)
	}
	if adm.Snapshot.TotalVotes != 1 {
		t.Errorf("Expected total 1, got %d", adm.Snapshot.TotalVotes)
	}
	if adm.Snapshot.Choices[0].Votes != 1 || adm.Snapshot.Choices[1].Votes != 0 {
		t.Errorf("unexpected tallies %+v", adm.Snapshot.Choices)
	}

	adm, err = c.Admit(ctx, pollID, "u2", b)
	if err != nil {
		t.Fatalf("second Admit() error = %v", err)
	}
	if adm.Snapshot.TotalVotes != 2 {
		t.Errorf("Expected total 2, got %d", adm.Snapshot.TotalVotes)
	}
}

// TestAdmit_Scenario follows one poll through two voters and a repeat vote,
// checking the client-ready percentages at each step.
func TestAdmit_Scenario(t *testing.T) {
	c, conn := setupController(t)
	ctx := context.Background()

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	b := testutil.AddTestChoice(t, conn, pollID, "B")

	adm, err := c.Admit(ctx, pollID, "u1", a)
	if err != nil {
		t.Fatalf("Admit(u1) error = %v", err)
	}
	p := results.Build(adm.Snapshot, time.Now())
	if p.Choices[0].Percentage != 100.0 || p.Choices[1].Percentage != 0 || p.TotalVotes != 1 {
		t.Errorf("after first vote: %+v", p)
	}

	adm, err = c.Admit(ctx, pollID, "u2", b)
	if err != nil {
		t.Fatalf("Admit(u2) error = %v", err)
	}
	p = results.Build(adm.Snapshot, time.Now())
	if p.Choices[0].Percentage != 50.0 || p.Choices[1].Percentage != 50.0 || p.TotalVotes != 2 {
		t.Errorf("after second vote: %+v", p)
	}

	if _, err := c.Admit(ctx, pollID, "u1", b); !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("Expected ErrDuplicateVote, got %v", err)
	}
	if n := testutil.CountVotes(t, conn, pollID); n != 2 {
		t.Errorf("Expected total to stay at 2, got %d", n)
	}
}

func TestAdmit_Rejections(t *testing.T) {
	c, conn := setupController(t)
	ctx := context.Background()

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	choiceID := testutil.AddTestChoice(t, conn, pollID, "A")
	closedPoll := testutil.CreateTestPoll(t, conn, "owner", false)
	closedChoice := testutil.AddTestChoice(t, conn, closedPoll, "A")
	otherPoll := testutil.CreateTestPoll(t, conn, "owner", true)
	foreignChoice := testutil.AddTestChoice(t, conn, otherPoll, "X")
	testutil.CastTestVote(t, conn, pollID, choiceID, "voted")

	tests := []struct {
		name     string
		pollID   string
		userID   string
		choiceID string
		wantErr  error
	}{
		{"anonymous", pollID, "", choiceID, ErrAnonymous},
		{"closed poll", closedPoll, "u1", closedChoice, ErrPollClosed},
		{"missing poll", "missing", "u1", choiceID, ErrPollNotFound},
		{"owner", pollID, "owner", choiceID, ErrSelfVote},
		{"already voted", pollID, "voted", choiceID, ErrDuplicateVote},
		{"choice from another poll", pollID, "u1", foreignChoice, ErrInvalidChoice},
		{"unknown choice", pollID, "u1", "missing", ErrInvalidChoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CountVotes(t, conn, tt.pollID)

			_, err := c.Admit(ctx, tt.pollID, tt.userID, tt.choiceID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Admit() error = %v, want %v", err, tt.wantErr)
			}

			if after := testutil.CountVotes(t, conn, tt.pollID); after != before {
				t.Errorf("rejected vote changed the count from %d to %d", before, after)
			}
		})
	}
}

func TestAdmit_CheckOrder(t *testing.T) {
	c, conn := setupController(t)
	ctx := context.Background()

	closedPoll := testutil.CreateTestPoll(t, conn, "owner", false)
	choiceID := testutil.AddTestChoice(t, conn, closedPoll, "A")

	// The owner of a closed poll hears about the poll first
	if _, err := c.Admit(ctx, closedPoll, "owner", choiceID); !errors.Is(err, ErrPollClosed) {
		t.Errorf("Expected ErrPollClosed, got %v", err)
	}

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	testutil.CastTestVote(t, conn, pollID, a, "voted")

	// A repeat voter with a bad choice hears about the repeat first
	if _, err := c.Admit(ctx, pollID, "voted", "missing"); !errors.Is(err, ErrDuplicateVote) {
		t.Errorf("Expected ErrDuplicateVote, got %v", err)
	}

	// The owner with a bad choice hears about self-voting first
	if _, err := c.Admit(ctx, pollID, "owner", "missing"); !errors.Is(err, ErrSelfVote) {
		t.Errorf("Expected ErrSelfVote, got %v", err)
	}

	// No choice at all is the last thing checked
	noChoice := []struct {
		pollID  string
		userID  string
		wantErr error
	}{
		{closedPoll, "u1", ErrPollClosed},
		{pollID, "owner", ErrSelfVote},
		{pollID, "voted", ErrDuplicateVote},
		{pollID, "u1", ErrInvalidChoice},
	}
	for _, tt := range noChoice {
		if _, err := c.Admit(ctx, tt.pollID, tt.userID, ""); !errors.Is(err, tt.wantErr) {
			t.Errorf("Admit(%s, %s, no choice) error = %v, want %v", tt.pollID, tt.userID, err, tt.wantErr)
		}
	}
}

func TestAdmitChoice(t *testing.T) {
	c, conn := setupController(t)
	ctx := context.Background()

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")

	adm, err := c.AdmitChoice(ctx, a, "u1")
	if err != nil {
		t.Fatalf("AdmitChoice() error = %v", err)
	}
	if adm.Vote.PollID != pollID {
		t.Errorf("Expected vote on %s, got %s", pollID, adm.Vote.PollID)
	}

	if _, err := c.AdmitChoice(ctx, "missing", "u1"); !errors.Is(err, ErrChoiceNotFound) {
		t.Errorf("Expected ErrChoiceNotFound, got %v", err)
	}
	if _, err := c.AdmitChoice(ctx, a, ""); !errors.Is(err, ErrAnonymous) {
		t.Errorf("Expected ErrAnonymous, got %v", err)
	}
	if _, err := c.AdmitChoice(ctx, a, "u1"); !errors.Is(err, ErrDuplicateVote) {
		t.Errorf("Expected ErrDuplicateVote, got %v", err)
	}
}

// TestAdmit_ConcurrentSameUser races one user against themselves: exactly one
// vote may land.
func TestAdmit_ConcurrentSameUser(t *testing.T) {
	c, conn := setupController(t)

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	b := testutil.AddTestChoice(t, conn, pollID, "B")

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
		other     []error
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		choice := a
		if i%2 == 1 {
			choice = b
		}
		go func() {
			defer wg.Done()
			_, err := c.Admit(context.Background(), pollID, "racer", choice)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateVote):
				dupes++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if successes != 1 || dupes != attempts-1 {
		t.Errorf("Expected 1 success and %d duplicates, got %d and %d", attempts-1, successes, dupes)
	}
	if n := testutil.CountVotes(t, conn, pollID); n != 1 {
		t.Errorf("Expected exactly 1 vote, got %d", n)
	}
}

// TestAdmit_RepeatVoteRejectedByConstraint checks that a repeat vote for a
// valid choice is stopped by the (user_id, poll_id) unique constraint and
// reported as a duplicate.
func TestAdmit_RepeatVoteRejectedByConstraint(t *testing.T) {
	c, conn := setupController(t)
	ctx := context.Background()

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	b := testutil.AddTestChoice(t, conn, pollID, "B")

	if _, err := c.Admit(ctx, pollID, "u1", a); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	for _, choice := range []string{a, b} {
		_, err := c.Admit(ctx, pollID, "u1", choice)
		if !errors.Is(err, ErrDuplicateVote) {
			t.Fatalf("Expected ErrDuplicateVote, got %v", err)
		}
		if !errors.Is(err, store.ErrDuplicate) {
			t.Errorf("Expected the duplicate to come from the unique constraint, got %v", err)
		}
	}

	if n := testutil.CountVotes(t, conn, pollID); n != 1 {
		t.Errorf("Expected exactly 1 vote, got %d", n)
	}
}

func TestAdmit_CreatedAtMatchesRecord(t *testing.T) {
	c, conn := setupController(t)

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")

	adm, err := c.Admit(context.Background(), pollID, "u1", a)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	var stored time.Time
	if err := conn.QueryRow(`SELECT created_at FROM vote WHERE id = $1`, adm.Vote.ID).Scan(&stored); err != nil {
		t.Fatalf("failed to read vote: %v", err)
	}
	if !stored.Equal(adm.Vote.CreatedAt) {
		t.Errorf("Returned created_at %v, stored %v", adm.Vote.CreatedAt, stored)
	}
}

func TestAdmit_ConcurrentUsers(t *testing.T) {
	c, conn := setupController(t)

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	b := testutil.AddTestChoice(t, conn, pollID, "B")

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		choice := a
		if i%4 == 0 {
			choice = b
		}
		go func(user string) {
			defer wg.Done()
			if _, err := c.Admit(context.Background(), pollID, user, choice); err != nil {
				errs <- err
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Admit() error = %v", err)
	}

	snap, err := store.New(conn).ComputeTallies(context.Background(), pollID)
	if err != nil {
		t.Fatalf("ComputeTallies() error = %v", err)
	}
	if snap.TotalVotes != voters || snap.Choices[0].Votes != 15 || snap.Choices[1].Votes != 5 {
		t.Errorf("unexpected tallies %+v", snap)
	}
}

// flakyStore commits through a real store but fails every tally read.
type flakyStore struct {
	*store.Store
}

func (f flakyStore) ComputeTallies(context.Context, string) (models.TallySnapshot, error) {
	return models.TallySnapshot{}, errors.New("connection lost")
}

func TestAdmit_TalliesUnavailable(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	c := NewController(flakyStore{store.New(conn)}, time.Second)

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")

	adm, err := c.Admit(context.Background(), pollID, "u1", a)
	if !errors.Is(err, ErrTalliesUnavailable) {
		t.Fatalf("Expected ErrTalliesUnavailable, got %v", err)
	}
	if adm.Vote.ID == "" {
		t.Error("Expected the committed vote alongside the error")
	}
	if n := testutil.CountVotes(t, conn, pollID); n != 1 {
		t.Errorf("Expected the vote to stay recorded, got %d votes", n)
	}
}

func TestAdmit_StoreUnavailable(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	c := NewController(store.New(conn), time.Second)

	pollID := testutil.CreateTestPoll(t, conn, "owner", true)
	a := testutil.AddTestChoice(t, conn, pollID, "A")
	conn.Close()

	if _, err := c.Admit(context.Background(), pollID, "u1", a); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}
