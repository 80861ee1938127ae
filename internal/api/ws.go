// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect from dashboard origins covered by the CORS
	// allowlist; the websocket handshake is additionally origin-checked in
	// handleLiveSocket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLiveSocket upgrades the connection and hands it to the hub. The
// session starts in the connected state with no subscriptions; the client
// drives membership with subscribe/unsubscribe messages.
func (rt *Router) handleLiveSocket(w http.ResponseWriter, r *http.Request) {
	if !rt.originAllowed(r) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(rt.hub, conn)
	if err := rt.hub.Connect(client); err != nil {
		logging.Error().Err(err).Msg("session registration failed")
		_ = conn.Close()
		return
	}
	client.Start()

	logging.Debug().Str("session", client.ID()).Str("remote", r.RemoteAddr).Msg("live session opened")
}

// originAllowed applies the configured CORS origins to the websocket
// handshake. Non-browser clients send no Origin header and are admitted.
func (rt *Router) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range rt.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
