// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/db"
)

// TestDBURL is an in-memory SQLite database. It lives as long as its single
// connection, so every SetupTestDB call starts empty.
const TestDBURL = ":memory:"

// SetupTestDB creates a fresh test database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open(cliparse.DatabaseSQLite, db.SQLiteDSN(TestDBURL))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    TestDBURL,
		DatabaseType:   cliparse.DatabaseSQLite,
		SessionSecret:  "test-session-secret",
		StoreTimeout:   5 * time.Second,
		PublishTimeout: time.Second,
		QueueSize:      64,
	}
}

// CreateTestPoll creates a poll owned by ownerID and returns its ID
func CreateTestPoll(t *testing.T, conn *sql.DB, ownerID string, active bool) string {
	t.Helper()

	pollID := uuid.NewString()
	now := time.Now().UTC()

	var closedAt *time.Time
	if !active {
		closedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO poll (id, owner_id, text, active, pub_date, created_at, closed_at)
		VALUES ($1, $2, 'Test Poll', $3, $4, $5, $6)
	`, pollID, ownerID, active, now, now, closedAt)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID
}

// AddTestChoice appends a choice to a poll and returns the choice ID
func AddTestChoice(t *testing.T, conn *sql.DB, pollID, text string) string {
	t.Helper()

	var position int
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM choice WHERE poll_id = $1
	`, pollID).Scan(&position)
	if err != nil {
		t.Fatalf("Failed to count test choices: %v", err)
	}

	choiceID := uuid.NewString()
	_, err = conn.Exec(`
		INSERT INTO choice (id, poll_id, text, position, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, choiceID, pollID, text, position, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test choice: %v", err)
	}

	return choiceID
}

// CastTestVote writes a vote directly, bypassing admission checks
func CastTestVote(t *testing.T, conn *sql.DB, pollID, choiceID, userID string) string {
	t.Helper()

	voteID := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO vote (id, user_id, poll_id, choice_id)
		VALUES ($1, $2, $3, $4)
	`, voteID, userID, pollID, choiceID)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	return voteID
}

// CountVotes returns the number of vote records on a poll
func CountVotes(t *testing.T, conn *sql.DB, pollID string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE poll_id = $1`, pollID).Scan(&n); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// UserHeaders returns request headers authenticating userID
func UserHeaders(cfg cliparse.Config, userID string) map[string]string {
	return map[string]string{
		auth.UserTokenHeader: auth.IssueUserToken(userID, cfg.SessionSecret),
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
