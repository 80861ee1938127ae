// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package ws

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/deainexus/pulse/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // client frames are tiny subscribe/unsubscribe requests
)

// sendQueueSize buffers outbound frames per session. A consumer that stops
// draining fills its own queue and is disconnected on the next broadcast
// without stalling delivery to other sessions.
const sendQueueSize = 64

// sessionState is the lifecycle of one client session.
// Transitions: connected -> subscribed <-> connected -> disconnected.
// Disconnected is terminal; the handle must not be reused.
type sessionState int

const (
	stateNew sessionState = iota
	stateConnected
	stateSubscribed
	stateDisconnected
)

// seqCounter orders sessions for deterministic broadcast iteration.
var seqCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
// The hub owns subscription bookkeeping and the send queue lifecycle; the
// transport goroutines own the physical connection.
type Client struct {
	id   string
	seq  uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Frame

	// state is guarded by hub.mu.
	state sessionState
}

// NewClient wraps a websocket connection in a session handle. The session is
// not registered until Hub.Connect is called.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		seq:  seqCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Frame, sendQueueSize),
	}
}

// ID returns the opaque session identifier.
func (c *Client) ID() string {
	return c.id
}

// enqueue attempts a non-blocking hand-off to the session's write pump.
// It reports false when the session is disconnected or its queue is full.
// Must be called with hub.mu held: the hub closes c.send under the same
// lock, so a send can never race the close.
func (c *Client) enqueue(frame Frame) bool {
	if c.state == stateDisconnected {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump decodes client messages and applies subscription changes until
// the connection drops, then disconnects the session. Malformed messages
// are dropped without tearing down the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("session", c.id).Msg("unexpected websocket close")
			}
			return
		}

		req, err := DecodeClientMessage(raw)
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) {
				logging.Debug().Str("session", c.id).Msg("dropping malformed client message")
				continue
			}
			return
		}

		switch r := req.(type) {
		case SubscribeRequest:
			c.hub.Subscribe(c, r.Channel)
		case UnsubscribeRequest:
			c.hub.Unsubscribe(c, r.Channel)
		}
	}
}

// writePump drains the send queue to the connection and keeps the
// connection alive with periodic pings. A write error ends the pump; the
// read pump notices the closed connection and disconnects the session.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the queue on disconnect.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				logging.Debug().Err(err).Str("session", c.id).Msg("write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
