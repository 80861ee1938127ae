// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/deainexus/pulse/internal/cache"
	"github.com/deainexus/pulse/internal/models"
)

// Cache TTLs for the on-demand read path. The price and snapshot keys are
// also written by the refresh loops with their own TTLs; writes from either
// path are equivalent.
const (
	priceTTL      = 30 * time.Second
	historyTTL    = 5 * time.Minute
	subnetsTTL    = 2 * time.Minute
	validatorsTTL = 2 * time.Minute
	neuronsTTL    = time.Minute
	statsTTL      = 5 * time.Minute
	apyTTL        = 5 * time.Minute
	nominatorTTL  = 2 * time.Minute
	searchTTL     = time.Minute
)

func (rt *Router) handlePrice(w http.ResponseWriter, r *http.Request) {
	price, err := cache.ReadThrough(r.Context(), rt.store, "price", priceTTL, rt.price.TAOPrice)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (rt *Router) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			writeError(w, http.StatusBadRequest, "days must be an integer between 1 and 365")
			return
		}
		days = parsed
	}

	key := fmt.Sprintf("price:history:%d", days)
	chart, err := cache.ReadThrough(r.Context(), rt.store, key, historyTTL, func(ctx context.Context) (map[string][][2]float64, error) {
		return rt.price.HistoricalPrices(ctx, days)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (rt *Router) handleSubnets(w http.ResponseWriter, r *http.Request) {
	subnets, err := cache.ReadThrough(r.Context(), rt.store, "subnets", subnetsTTL, rt.network.Subnets)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subnets)
}

func (rt *Router) handleSubnet(w http.ResponseWriter, r *http.Request) {
	netuid, ok := netuidParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "netuid must be a non-negative integer")
		return
	}

	key := fmt.Sprintf("subnet:%d", netuid)
	detail, err := cache.ReadThrough(r.Context(), rt.store, key, subnetsTTL, func(ctx context.Context) (json.RawMessage, error) {
		return rt.network.Subnet(ctx, netuid)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (rt *Router) handleSubnetValidators(w http.ResponseWriter, r *http.Request) {
	netuid, ok := netuidParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "netuid must be a non-negative integer")
		return
	}

	key := fmt.Sprintf("subnet:%d:validators", netuid)
	validators, err := cache.ReadThrough(r.Context(), rt.store, key, validatorsTTL, func(ctx context.Context) ([]models.Validator, error) {
		return rt.network.SubnetValidators(ctx, netuid)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validators)
}

func (rt *Router) handleSubnetNeurons(w http.ResponseWriter, r *http.Request) {
	netuid, ok := netuidParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "netuid must be a non-negative integer")
		return
	}

	key := fmt.Sprintf("subnet:%d:neurons", netuid)
	neurons, err := cache.ReadThrough(r.Context(), rt.store, key, neuronsTTL, func(ctx context.Context) (json.RawMessage, error) {
		return rt.network.SubnetNeurons(ctx, netuid)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, neurons)
}

func (rt *Router) handleValidators(w http.ResponseWriter, r *http.Request) {
	validators, err := cache.ReadThrough(r.Context(), rt.store, "validators", validatorsTTL, rt.network.Validators)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validators)
}

func (rt *Router) handleSubnetAPY(w http.ResponseWriter, r *http.Request) {
	netuid, ok := netuidParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "netuid must be a non-negative integer")
		return
	}

	key := fmt.Sprintf("apy:%d", netuid)
	apy, err := cache.ReadThrough(r.Context(), rt.store, key, apyTTL, func(ctx context.Context) (json.RawMessage, error) {
		return rt.network.SubnetAPY(ctx, netuid)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apy)
}

func (rt *Router) handleWeightCopy(w http.ResponseWriter, r *http.Request) {
	info, err := cache.ReadThrough(r.Context(), rt.store, "weight-copy", apyTTL, rt.network.WeightCopy)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) handleNominator(w http.ResponseWriter, r *http.Request) {
	hotkey := chi.URLParam(r, "hotkey")
	if hotkey == "" {
		writeError(w, http.StatusBadRequest, "hotkey is required")
		return
	}

	info, err := cache.ReadThrough(r.Context(), rt.store, "nominator:"+hotkey, nominatorTTL, func(ctx context.Context) (json.RawMessage, error) {
		return rt.network.Nominator(ctx, hotkey)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := cache.ReadThrough(r.Context(), rt.store, "search:"+query, searchTTL, func(ctx context.Context) (json.RawMessage, error) {
		return rt.network.Search(ctx, query)
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (rt *Router) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := cache.ReadThrough(r.Context(), rt.store, "stats", statsTTL, rt.network.NetworkStats)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleSubnetHistory serves stored subnet snapshots from the database.
func (rt *Router) handleSubnetHistory(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "historical storage not configured")
		return
	}

	netuid, ok := netuidParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "netuid must be a non-negative integer")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}

	snaps, err := rt.db.SubnetHistory(r.Context(), netuid, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if snaps == nil {
		snaps = []models.SubnetSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// handleHealth reports liveness plus the degraded-mode flags monitors care
// about: cache fail-open state and database reachability.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":            "ok",
		"cache_disabled":    !rt.store.Enabled(),
		"connected_clients": rt.hub.ClientCount(),
	}

	if rt.db != nil {
		if err := rt.db.Ping(r.Context()); err != nil {
			health["database"] = "unreachable"
		} else {
			health["database"] = "ok"
		}
	} else {
		health["database"] = "disabled"
	}

	writeJSON(w, http.StatusOK, health)
}
