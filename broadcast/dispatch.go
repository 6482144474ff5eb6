// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/livepoll/models"
)

// Publisher delivers a poll's payload to its subscribers.
// Hub publishes locally; RedisRelay publishes through Redis.
type Publisher interface {
	Publish(ctx context.Context, pollID string, payload models.ResultPayload) error
}

// forgetter is implemented by publishers that remember per-poll state.
type forgetter interface {
	Forget(pollID string)
}

// Dispatcher decouples vote admission from publishing. Dispatch only
// enqueues; Run publishes in the background and logs failures. Nothing a
// publisher does reaches the caller of Dispatch.
//
// At most one update per poll is pending. A newer payload for a poll
// replaces the pending one, so a burst of votes publishes the latest tally
// once instead of every intermediate snapshot.
type Dispatcher struct {
	pub     Publisher
	size    int
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]models.ResultPayload
	order   []string // poll IDs in arrival order
	notify  chan struct{}
}

func NewDispatcher(pub Publisher, size int, timeout time.Duration) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		pub:     pub,
		size:    size,
		timeout: timeout,
		pending: make(map[string]models.ResultPayload),
		notify:  make(chan struct{}, 1),
	}
}

// Dispatch queues a payload without blocking. A pending update for the same
// poll is replaced unless it already carries more votes. When size distinct
// polls are already pending, the oldest poll's update is dropped to make
// room and Dispatch returns false.
func (d *Dispatcher) Dispatch(pollID string, payload models.ResultPayload) bool {
	d.mu.Lock()
	kept := true
	if prev, ok := d.pending[pollID]; ok {
		if payload.TotalVotes >= prev.TotalVotes {
			d.pending[pollID] = payload
		}
	} else {
		if len(d.order) >= d.size {
			oldest := d.order[0]
			d.order = d.order[1:]
			dropped := d.pending[oldest]
			delete(d.pending, oldest)
			slog.Warn("live update queue full, dropping oldest update",
				"poll_id", oldest, "total_votes", dropped.TotalVotes)
			kept = false
		}
		d.pending[pollID] = payload
		d.order = append(d.order, pollID)
	}
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
	return kept
}

// Forget drops any pending update for the poll and clears what the
// publisher remembers about it. Call it once the poll is deleted.
func (d *Dispatcher) Forget(pollID string) {
	d.mu.Lock()
	if _, ok := d.pending[pollID]; ok {
		delete(d.pending, pollID)
		for i, id := range d.order {
			if id == pollID {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()

	if f, ok := d.pub.(forgetter); ok {
		f.Forget(pollID)
	}
}

// Run publishes queued updates until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.notify:
		}

		for {
			pollID, payload, ok := d.next()
			if !ok {
				break
			}
			d.publish(ctx, pollID, payload)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (d *Dispatcher) next() (string, models.ResultPayload, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.order) == 0 {
		return "", models.ResultPayload{}, false
	}
	pollID := d.order[0]
	d.order = d.order[1:]
	payload := d.pending[pollID]
	delete(d.pending, pollID)
	return pollID, payload, true
}

func (d *Dispatcher) publish(ctx context.Context, pollID string, payload models.ResultPayload) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("live update publish panicked", "poll_id", pollID, "panic", r)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.pub.Publish(ctx, pollID, payload); err != nil {
		slog.Warn("live update publish failed", "poll_id", pollID, "error", err)
	}
}
