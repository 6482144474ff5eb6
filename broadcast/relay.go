// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/livepoll/models"
)

const topicPrefix = "poll_"

// Topic returns the live update topic of a poll.
func Topic(pollID string) string {
	return topicPrefix + pollID
}

// PollIDFromTopic is the inverse of Topic.
func PollIDFromTopic(topic string) (string, bool) {
	pollID, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok || pollID == "" {
		return "", false
	}
	return pollID, true
}

// RedisRelay carries poll updates between server instances. Publish sends
// the payload to the poll's Redis channel; Run receives every instance's
// payloads and hands them to the local Hub. When the relay is in use it
// replaces the Hub as the dispatcher's Publisher, so each update reaches
// local subscribers exactly once, by way of Redis.
//
// Redis pub/sub keeps nothing: a message published while an instance is
// disconnected is lost to that instance.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
}

func NewRedisRelay(client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, hub: hub}
}

func (r *RedisRelay) Publish(ctx context.Context, pollID string, payload models.ResultPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if err := r.client.Publish(ctx, Topic(pollID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Forget clears the local hub's state for a deleted poll. Other instances
// keep their marks until restart; payloads for a deleted poll never arrive.
func (r *RedisRelay) Forget(pollID string) {
	r.hub.Forget(pollID)
}

// Run subscribes to every poll topic and delivers to the local Hub until ctx
// is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, topicPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to poll topics: %w", err)
	}
	slog.Info("redis relay subscribed", "pattern", topicPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, msg *redis.Message) {
	pollID, ok := PollIDFromTopic(msg.Channel)
	if !ok {
		slog.Warn("ignoring message on unexpected channel", "channel", msg.Channel)
		return
	}

	var payload models.ResultPayload
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		slog.Warn("ignoring malformed poll update", "poll_id", pollID, "error", err)
		return
	}

	if err := r.hub.Publish(ctx, pollID, payload); err != nil {
		slog.Warn("failed to publish relayed update", "poll_id", pollID, "error", err)
	}
}
