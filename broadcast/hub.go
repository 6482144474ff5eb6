// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/results"
)

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 16

// Conn is a subscriber's transport. Send must return within a bounded time
// (the websocket adapter sets a write deadline). Close is called once, after
// the subscription ends.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id     string
	pollID string
	hub    *Hub
	conn   Conn
	send   chan []byte
	once   sync.Once
	done   chan struct{}
}

func (s *Subscription) ID() string     { return s.id }
func (s *Subscription) PollID() string { return s.pollID }

// Done is closed once the subscription has ended and its Conn is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

// stop ends the pump. Callers must have removed s from its group first so no
// publisher can send on the closed channel.
func (s *Subscription) stop() {
	s.once.Do(func() { close(s.send) })
}

func (s *Subscription) pump() {
	defer close(s.done)
	defer func() {
		if err := s.conn.Close(); err != nil {
			slog.Debug("error closing subscriber connection", "subscription_id", s.id, "error", err)
		}
	}()

	for data := range s.send {
		if err := s.conn.Send(data); err != nil {
			slog.Warn("live update delivery failed", "poll_id", s.pollID, "subscription_id", s.id, "error", err)
			s.hub.Unsubscribe(s)
			return
		}
	}
}

// group is one poll's set of subscribers.
type group struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	// highest total_votes published to this group
	highWater int
}

// Hub keeps a subscriber group per poll and fans payloads out to them.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]*group
	// high-water marks of polls without a group, so a poll's next group
	// still rejects payloads older than what was already published
	marks  map[string]int
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		groups: make(map[string]*group),
		marks:  make(map[string]int),
		buffer: buffer,
	}
}

// Subscribe adds conn to the poll's group. It does not check the poll;
// callers reject unknown or closed polls before subscribing.
func (h *Hub) Subscribe(pollID string, conn Conn) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		pollID: pollID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.buffer),
		done:   make(chan struct{}),
	}
	go sub.pump()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.stop()
		return sub
	}
	g := h.groups[pollID]
	if g == nil {
		g = &group{subs: make(map[string]*Subscription), highWater: h.marks[pollID]}
		h.groups[pollID] = g
		delete(h.marks, pollID)
	}
	g.mu.Lock()
	g.subs[sub.id] = sub
	g.mu.Unlock()
	h.mu.Unlock()

	slog.Debug("subscriber joined", "poll_id", pollID, "subscription_id", sub.id)
	return sub
}

// Unsubscribe removes the subscription and closes its connection.
// It is idempotent, and the poll's group is torn down when it empties.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if g := h.groups[sub.pollID]; g != nil {
		g.mu.Lock()
		if g.subs[sub.id] == sub {
			delete(g.subs, sub.id)
			slog.Debug("subscriber left", "poll_id", sub.pollID, "subscription_id", sub.id)
		}
		empty := len(g.subs) == 0
		mark := g.highWater
		g.mu.Unlock()
		if empty {
			delete(h.groups, sub.pollID)
			h.marks[sub.pollID] = mark
		}
	}
	h.mu.Unlock()

	sub.stop()
}

// Publish queues the payload, as a poll_update message, for every current
// subscriber of the poll. It never waits on a subscriber: when a
// subscriber's queue is full its oldest queued update is replaced.
//
// A payload with fewer total votes than one already published for the poll
// is stale and is dropped, including across the poll's group being torn
// down and recreated.
func (h *Hub) Publish(_ context.Context, pollID string, payload models.ResultPayload) error {
	data, err := json.Marshal(results.UpdateMessage(payload))
	if err != nil {
		return fmt.Errorf("failed to encode poll update: %w", err)
	}

	// Group teardown takes the write lock, so the group stays live while
	// this publish holds the read lock.
	h.mu.RLock()
	if g := h.groups[pollID]; g != nil {
		g.deliver(pollID, payload.TotalVotes, data)
		h.mu.RUnlock()
		return nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if g := h.groups[pollID]; g != nil {
		g.deliver(pollID, payload.TotalVotes, data)
		return nil
	}
	if payload.TotalVotes > h.marks[pollID] {
		h.marks[pollID] = payload.TotalVotes
	}
	return nil
}

func (g *group) deliver(pollID string, total int, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if total < g.highWater {
		slog.Debug("dropping stale poll update", "poll_id", pollID,
			"total_votes", total, "high_water", g.highWater)
		return
	}
	g.highWater = total

	for _, sub := range g.subs {
		select {
		case sub.send <- data:
			continue
		default:
		}

		// Queue full: every queued item is an older snapshot, so evict one.
		select {
		case <-sub.send:
		default:
		}
		select {
		case sub.send <- data:
		default:
			slog.Warn("subscriber queue full, dropping poll update", "poll_id", pollID, "subscription_id", sub.id)
		}
	}
}

// Forget drops what the hub remembers about a poll with no subscribers.
// Call it once the poll is deleted.
func (h *Hub) Forget(pollID string) {
	h.mu.Lock()
	delete(h.marks, pollID)
	h.mu.Unlock()
}

// Subscribers returns the number of subscribers currently watching the poll.
func (h *Hub) Subscribers(pollID string) int {
	h.mu.RLock()
	g := h.groups[pollID]
	h.mu.RUnlock()
	if g == nil {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Groups returns the number of polls with at least one subscriber.
func (h *Hub) Groups() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// Close ends every subscription. Later subscriptions end immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	groups := h.groups
	h.groups = make(map[string]*group)
	h.closed = true
	h.mu.Unlock()

	for _, g := range groups {
		g.mu.Lock()
		subs := make([]*Subscription, 0, len(g.subs))
		for _, sub := range g.subs {
			subs = append(subs, sub)
		}
		g.subs = make(map[string]*Subscription)
		g.mu.Unlock()

		for _, sub := range subs {
			sub.stop()
		}
	}
}
