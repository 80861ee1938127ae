// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/upstream"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Debug().Err(err).Msg("response write failed")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}

// writeUpstreamError maps a read-through failure to a response. Upstream
// failures become 502 so clients can distinguish provider outages from
// Pulse's own errors; anything else is a 500.
func writeUpstreamError(w http.ResponseWriter, err error) {
	if ue, ok := upstream.AsError(err); ok {
		logging.Warn().Err(err).Str("provider", ue.Provider).Msg("upstream fetch failed on read path")
		writeError(w, http.StatusBadGateway, "upstream data provider unavailable")
		return
	}
	logging.Error().Err(err).Msg("read path failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// netuidParam parses the {netuid} URL parameter.
func netuidParam(r *http.Request) (int, bool) {
	netuid, err := strconv.Atoi(chi.URLParam(r, "netuid"))
	if err != nil || netuid < 0 {
		return 0, false
	}
	return netuid, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
