// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package ws

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Client actions accepted on the live channel protocol.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Server frame types that are not channel names.
const (
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
)

// ErrMalformedMessage reports an unparseable or unrecognized client message.
// Malformed messages are logged and dropped; the connection stays open.
var ErrMalformedMessage = errors.New("malformed client message")

// ClientMessage is a decoded client request. The wire form is
// {"action":"subscribe"|"unsubscribe","channel":<name>}. Decoding is the
// single place untyped JSON enters the subsystem; everything downstream
// works with the closed variant set below.
type clientEnvelope struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// ClientRequest is the closed set of decoded client messages.
type ClientRequest interface{ clientRequest() }

// SubscribeRequest asks to join a channel.
type SubscribeRequest struct{ Channel string }

// UnsubscribeRequest asks to leave a channel.
type UnsubscribeRequest struct{ Channel string }

func (SubscribeRequest) clientRequest()   {}
func (UnsubscribeRequest) clientRequest() {}

// DecodeClientMessage parses raw JSON into a typed request. Anything outside
// the variant set yields ErrMalformedMessage.
func DecodeClientMessage(raw []byte) (ClientRequest, error) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedMessage
	}
	if env.Channel == "" {
		return nil, ErrMalformedMessage
	}
	switch env.Action {
	case ActionSubscribe:
		return SubscribeRequest{Channel: env.Channel}, nil
	case ActionUnsubscribe:
		return UnsubscribeRequest{Channel: env.Channel}, nil
	default:
		return nil, ErrMalformedMessage
	}
}

// Frame is a server-to-client message. The two concrete frames are Ack
// (subscription bookkeeping) and Data (channel payloads).
type Frame interface{ frame() }

// Ack confirms a subscribe or unsubscribe. It is sent only after the
// membership change is fully registered, so a client that has received the
// ack is guaranteed to be eligible for the next broadcast.
type Ack struct {
	Type    string `json:"type"` // "subscribed" or "unsubscribed"
	Channel string `json:"channel"`
}

// Data carries one broadcast payload for a channel.
type Data struct {
	Type      string `json:"type"` // channel name
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"` // ISO-8601
}

func (Ack) frame()  {}
func (Data) frame() {}

// newDataFrame stamps a broadcast payload with the current UTC time.
func newDataFrame(channel string, payload any) Data {
	return Data{
		Type:      channel,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
