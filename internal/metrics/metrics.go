// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package metrics exposes Prometheus instrumentation for the cache, the live
// channel hub, the refresh loops, the upstream clients, and the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"key_family"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses (absent, expired, or cache disabled)",
		},
		[]string{"key_family"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache backend errors (degraded to miss)",
		},
		[]string{"operation"},
	)

	CacheDisabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_disabled",
			Help: "1 when the cache backend is unreachable and the store is in fail-open mode",
		},
	)

	// WebSocket / channel metrics
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSChannelSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_channel_subscribers",
			Help: "Current number of subscribers per channel",
		},
		[]string{"channel"},
	)

	WSBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_broadcasts_total",
			Help: "Total number of channel broadcasts",
		},
		[]string{"channel"},
	)

	WSDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_delivery_failures_total",
			Help: "Total number of per-session delivery failures during broadcast",
		},
		[]string{"channel"},
	)

	// Refresh loop metrics
	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_cycles_total",
			Help: "Total refresh cycles per channel and outcome",
		},
		[]string{"channel", "outcome"}, // outcome: success, fetch_error, cache_error
	)

	RefreshBackoff = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refresh_backoff_seconds",
			Help: "Current retry interval per channel (equals cadence when healthy)",
		},
		[]string{"channel"},
	)

	RefreshLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh per channel",
		},
		[]string{"channel"},
	)

	// Upstream client metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total upstream provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: success, failure, rejected
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)
