// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package ws implements the live channel registry: it tracks connected
// WebSocket sessions, their per-channel subscriptions, and fans fresh data
// out to subscribers.
//
// The channel set is fixed at construction. Membership mutation and
// broadcast snapshotting are serialized under one mutex, so a broadcast
// never observes a torn member set, and broadcasts for a single channel are
// delivered in the order they were produced.
package ws

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/metrics"
)

// ErrSessionClosed is returned when a disconnected session handle is reused.
var ErrSessionClosed = errors.New("session already disconnected")

// ErrNoChannels is returned when the hub is constructed without a channel
// set. This is the only fatal condition in the subsystem.
var ErrNoChannels = errors.New("hub requires at least one channel")

// broadcastQueueSize bounds pending broadcasts. Producers are slow periodic
// refresh loops, so the queue only fills when delivery is badly stalled; in
// that case new broadcasts are dropped with a warning rather than blocking
// the producer.
const broadcastQueueSize = 256

type broadcastRequest struct {
	channel string
	payload any
}

// Hub is the channel registry. It owns subscription bookkeeping for every
// live session but never owns the underlying transport connections.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	broadcast chan broadcastRequest
}

// NewHub creates a hub with the given static channel set.
func NewHub(channels ...string) (*Hub, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	chans := make(map[string]map[*Client]struct{}, len(channels))
	for _, name := range channels {
		chans[name] = make(map[*Client]struct{})
	}

	return &Hub{
		clients:   make(map[*Client]struct{}),
		channels:  chans,
		broadcast: make(chan broadcastRequest, broadcastQueueSize),
	}, nil
}

// Channels returns the registered channel names, sorted.
func (h *Hub) Channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.channels))
	for name := range h.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect registers a session with empty subscriptions. Reusing a handle
// that has already disconnected is an error: Disconnected is terminal.
func (h *Hub) Connect(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.state == stateDisconnected {
		return ErrSessionClosed
	}
	h.clients[c] = struct{}{}
	c.state = stateConnected

	metrics.WSConnectedClients.Set(float64(len(h.clients)))
	logging.Info().Str("session", c.ID()).Int("total_clients", len(h.clients)).Msg("client connected")
	return nil
}

// Disconnect removes the session from every channel and from the active
// set, then closes its send queue. Idempotent: disconnecting an already
// disconnected session is a no-op.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(c)
}

func (h *Hub) disconnectLocked(c *Client) {
	if c.state == stateDisconnected {
		return
	}
	c.state = stateDisconnected

	// Atomic removal: by the time the lock is released the session is in no
	// channel member set and no longer in the active set.
	for name, members := range h.channels {
		if _, ok := members[c]; ok {
			delete(members, c)
			metrics.WSChannelSubscribers.WithLabelValues(name).Set(float64(len(members)))
		}
	}
	delete(h.clients, c)
	close(c.send)

	metrics.WSConnectedClients.Set(float64(len(h.clients)))
	logging.Info().Str("session", c.ID()).Int("total_clients", len(h.clients)).Msg("client disconnected")
}

// Subscribe adds the session to a channel's member set and queues the ack.
// Unknown channel names are ignored (no error frame exists in the wire
// protocol); duplicate subscriptions are a no-op but still acked.
func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.state == stateDisconnected {
		return
	}
	members, ok := h.channels[channel]
	if !ok {
		logging.Debug().Str("session", c.ID()).Str("channel", channel).Msg("subscribe to unknown channel ignored")
		return
	}

	members[c] = struct{}{}
	c.state = stateSubscribed
	metrics.WSChannelSubscribers.WithLabelValues(channel).Set(float64(len(members)))
	logging.Debug().Str("session", c.ID()).Str("channel", channel).Msg("client subscribed")

	// The ack is queued only after membership is registered, so a client
	// holding the ack cannot miss the next broadcast.
	c.enqueue(Ack{Type: FrameSubscribed, Channel: channel})
}

// Unsubscribe removes the session from a channel's member set. Unsubscribing
// a non-member or an unknown channel is a no-op.
func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.state == stateDisconnected {
		return
	}
	members, ok := h.channels[channel]
	if !ok {
		logging.Debug().Str("session", c.ID()).Str("channel", channel).Msg("unsubscribe from unknown channel ignored")
		return
	}

	delete(members, c)
	metrics.WSChannelSubscribers.WithLabelValues(channel).Set(float64(len(members)))

	// Dropping the last membership returns the session to the bare
	// connected state.
	if c.state == stateSubscribed && !h.hasAnySubscriptionLocked(c) {
		c.state = stateConnected
	}

	c.enqueue(Ack{Type: FrameUnsubscribed, Channel: channel})
}

func (h *Hub) hasAnySubscriptionLocked(c *Client) bool {
	for _, members := range h.channels {
		if _, ok := members[c]; ok {
			return true
		}
	}
	return false
}

// Broadcast queues a payload for delivery to every current subscriber of
// channel. Delivery is best-effort, at-most-once; if the queue is full the
// message is dropped with a warning rather than blocking the producer.
// Subscribers can therefore observe gaps under sustained backpressure, but
// never reordering: whatever is delivered arrives in broadcast order.
func (h *Hub) Broadcast(channel string, payload any) {
	select {
	case h.broadcast <- broadcastRequest{channel: channel, payload: payload}:
	default:
		logging.Warn().Str("channel", channel).Msg("broadcast queue full, dropping message")
	}
}

// RunWithContext drains the broadcast queue until the context is canceled,
// then closes every connected client. Designed to run under suture
// supervision; per-channel ordering follows from this single consumer.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Str("component", "ws-hub").Msg("hub stopped")
			return ctx.Err()
		case req := <-h.broadcast:
			h.deliver(req.channel, req.payload)
		}
	}
}

// deliver fans one payload out to a snapshot of the channel's members.
// Each delivery is attempted independently; a full send queue marks the
// session failed without aborting the remaining deliveries. Failed sessions
// are disconnected after the pass completes, never mid-iteration.
func (h *Hub) deliver(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[channel]
	if !ok {
		return
	}

	// Snapshot in stable session order so delivery order is reproducible.
	snapshot := make([]*Client, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].seq < snapshot[j].seq })

	frame := newDataFrame(channel, payload)
	metrics.WSBroadcasts.WithLabelValues(channel).Inc()

	var failed []*Client
	for _, c := range snapshot {
		if !c.enqueue(frame) {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		metrics.WSDeliveryFailures.WithLabelValues(channel).Inc()
		logging.Warn().Str("session", c.ID()).Str("channel", channel).Msg("delivery failed, disconnecting session")
		h.disconnectLocked(c)
	}
}

// closeAllClients disconnects every session during shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.disconnectLocked(c)
	}
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of sessions subscribed to channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
