// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/livepoll/broadcast"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Results are public; any origin may watch
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket to broadcast.Conn. Only the subscription's pump
// calls Send; pings go through WriteControl, which gorilla allows
// concurrently with other writes.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

type LiveHandler struct {
	store *store.Store
	hub   *broadcast.Hub
}

func NewLiveHandler(st *store.Store, hub *broadcast.Hub) *LiveHandler {
	return &LiveHandler{store: st, hub: hub}
}

// Subscribe handles GET /polls/{id}/live
// Upgrades to a websocket that receives a poll_update message after every
// admitted vote. Clients load the current state from GET /polls/{id}/results.
func (h *LiveHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	poll, err := h.store.GetPoll(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "poll_id", pollID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !poll.Active {
		middleware.ErrorResponse(w, http.StatusConflict, "This poll is closed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		slog.Warn("websocket upgrade failed", "poll_id", pollID, "error", err)
		return
	}

	ws := &wsConn{conn: conn}
	sub := h.hub.Subscribe(pollID, ws)
	slog.Info("live subscriber connected", "poll_id", pollID, "subscription_id", sub.ID())

	go keepAlive(sub, ws)
	readUntilClosed(conn)

	sub.Close()
	slog.Info("live subscriber disconnected", "poll_id", pollID, "subscription_id", sub.ID())
}

// readUntilClosed drains the client's frames so control messages are
// processed, and returns once the connection fails or closes.
func readUntilClosed(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func keepAlive(sub *broadcast.Subscription, ws *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			return
		case <-ticker.C:
			if err := ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				sub.Close()
				return
			}
		}
	}
}
