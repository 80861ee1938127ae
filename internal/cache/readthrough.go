// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package cache

import (
	"context"
	"time"
)

// ReadThrough is the cache-aside read path used uniformly by every read
// endpoint: return the cached value when present and fresh, otherwise invoke
// fetch, store the result with ttl, and return it.
//
// A fetch error with no cached value propagates to the caller unchanged; a
// cache write failure after a successful fetch is swallowed (fail-open) and
// the fetched value is still returned.
func ReadThrough[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.Get(ctx, key, &cached) {
		return cached, nil
	}

	fresh, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	// Best-effort populate; a disabled or failing cache must not turn a
	// successful fetch into an error.
	_ = s.Set(ctx, key, fresh, ttl)
	return fresh, nil
}
