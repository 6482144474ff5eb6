// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package broadcast pushes live tally updates to the clients watching a poll.

# Hub

A Hub owns one subscriber group per poll:

	hub := broadcast.NewHub(broadcast.DefaultBuffer)
	sub := hub.Subscribe(pollID, conn)
	defer sub.Close()

	hub.Publish(ctx, pollID, payload)

Each subscription has a small queue and a goroutine that writes to its
Conn. Publish only enqueues, so a slow or dead connection never holds up
the others. A connection whose Send fails is unsubscribed and closed.

Groups are created by the first Subscribe and removed when the last
subscriber leaves. Unsubscribe is idempotent. The hub keeps each poll's
highest published total across group teardown; Forget drops it once the
poll is deleted.

# Delivery

Best effort. No acknowledgements, retries, or replay. A client that misses
an update reloads GET /polls/{id}/results. Payloads carry the full tally,
so a payload with fewer total votes than one already published is stale
and is dropped.

# Dispatcher

The voting path hands payloads to a Dispatcher rather than publishing
directly:

	d := broadcast.NewDispatcher(hub, cfg.QueueSize, cfg.PublishTimeout)
	go d.Run(ctx)
	d.Dispatch(pollID, payload) // never blocks

At most one update per poll waits in the queue. A newer payload for the
same poll replaces the waiting one, and when the queue holds updates for
size distinct polls the oldest is dropped to admit the new one.

Publish errors and panics stop at the Dispatcher and are only logged.

# Redis Relay

With REDIS_URL set, updates travel through Redis channels named
poll_{poll_id} so every server instance can serve every poll:

	relay := broadcast.NewRedisRelay(client, hub)
	go relay.Run(ctx)
	d := broadcast.NewDispatcher(relay, cfg.QueueSize, cfg.PublishTimeout)
*/
package broadcast
