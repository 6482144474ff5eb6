// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "poll_abc", Topic("abc"))

	tests := []struct {
		topic  string
		pollID string
		ok     bool
	}{
		{"poll_abc", "abc", true},
		{Topic("123e4567-e89b-12d3-a456-426614174000"), "123e4567-e89b-12d3-a456-426614174000", true},
		{"poll_", "", false},
		{"chat_abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			pollID, ok := PollIDFromTopic(tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.pollID, pollID)
		})
	}
}

func TestRelayDeliver(t *testing.T) {
	hub := NewHub(DefaultBuffer)
	defer hub.Close()
	conn := newMockConn()
	hub.Subscribe("p1", conn)

	relay := NewRedisRelay(nil, hub)

	data, err := json.Marshal(payload("p1", 7))
	require.NoError(t, err)

	relay.deliver(context.Background(), &redis.Message{Channel: Topic("p1"), Payload: string(data)})

	msg := receive(t, conn)
	assert.Equal(t, "p1", msg.Data.PollID)
	assert.Equal(t, 7, msg.Data.TotalVotes)
}

func TestRelayDeliver_IgnoresBadMessages(t *testing.T) {
	hub := NewHub(DefaultBuffer)
	defer hub.Close()
	conn := newMockConn()
	hub.Subscribe("p1", conn)

	relay := NewRedisRelay(nil, hub)
	data, err := json.Marshal(payload("p1", 1))
	require.NoError(t, err)

	relay.deliver(context.Background(), &redis.Message{Channel: "other_p1", Payload: string(data)})
	relay.deliver(context.Background(), &redis.Message{Channel: Topic("p1"), Payload: "{not json"})

	assertNothingReceived(t, conn)
}
