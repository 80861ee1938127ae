// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package cache provides the Redis-backed TTL store that shields the
// upstream data providers from redundant load.
//
// The store is fail-open: when Redis is unreachable at construction or at
// call time, reads report absent and writes report failure, and callers fall
// back to the source of truth. No caller ever needs to special-case a
// degraded cache.
//
// Values are serialized to JSON on write and deserialized on read, so
// callers always receive copies and never share references with the store.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/metrics"
)

// ErrDisabled is returned by write operations while the backing Redis is
// unreachable. Callers must treat it as non-fatal.
var ErrDisabled = errors.New("cache disabled: redis unavailable")

// Store is a TTL-bounded key/value cache backed by Redis.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
	disabled  atomic.Bool
}

// Options configures a Store.
type Options struct {
	// URL is the Redis connection URL (redis://host:port/db).
	URL string

	// KeyPrefix namespaces every key, e.g. "pulse:".
	KeyPrefix string

	// OpTimeout bounds each individual cache operation.
	// Default: 2s.
	OpTimeout time.Duration
}

// New connects to Redis and returns a Store. A connection failure does not
// return an error: the store starts in disabled (fail-open) mode and every
// read reports a miss until the process is restarted with a reachable
// backend.
func New(ctx context.Context, opts Options) *Store {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 2 * time.Second
	}

	s := &Store{
		prefix:    opts.KeyPrefix,
		opTimeout: opts.OpTimeout,
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		logging.Warn().Err(err).Str("url", opts.URL).Msg("invalid redis url, caching disabled")
		s.disabled.Store(true)
		metrics.CacheDisabled.Set(1)
		return s
	}

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.OpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis connection failed, caching disabled")
		_ = client.Close()
		s.disabled.Store(true)
		metrics.CacheDisabled.Set(1)
		return s
	}

	s.client = client
	metrics.CacheDisabled.Set(0)
	logging.Info().Str("prefix", opts.KeyPrefix).Msg("redis connection established")
	return s
}

// newWithClient is used by tests to wire a pre-built client (miniredis).
func newWithClient(client redis.UniversalClient, prefix string, opTimeout time.Duration) *Store {
	return &Store{client: client, prefix: prefix, opTimeout: opTimeout}
}

// Enabled reports whether the backing Redis was reachable at construction.
func (s *Store) Enabled() bool {
	return !s.disabled.Load()
}

// Get retrieves the value stored under key into dest, which must be a
// pointer. It returns false on absence, expiry, backend error, or disabled
// mode; it never returns an error because every failure degrades to a miss.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if s.disabled.Load() {
		metrics.CacheMisses.WithLabelValues(keyFamily(key)).Inc()
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, err := s.client.Get(opCtx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Error().Err(err).Str("key", key).Msg("cache get error")
			metrics.CacheErrors.WithLabelValues("get").Inc()
		}
		metrics.CacheMisses.WithLabelValues(keyFamily(key)).Inc()
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry is treated as absent and evicted.
		logging.Error().Err(err).Str("key", key).Msg("cache entry unmarshal failed, evicting")
		_ = s.Delete(ctx, key)
		metrics.CacheMisses.WithLabelValues(keyFamily(key)).Inc()
		return false
	}

	metrics.CacheHits.WithLabelValues(keyFamily(key)).Inc()
	return true
}

// Set stores value under key with the given TTL, overwriting any existing
// entry. The returned error is informational; callers must not treat it as
// fatal.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.disabled.Load() {
		return ErrDisabled
	}

	raw, err := json.Marshal(value)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(opCtx, s.prefix+key, raw, ttl).Err(); err != nil {
		logging.Error().Err(err).Str("key", key).Msg("cache set error")
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.disabled.Load() {
		return ErrDisabled
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Del(opCtx, s.prefix+key).Err(); err != nil {
		logging.Error().Err(err).Str("key", key).Msg("cache delete error")
		metrics.CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// ClearPattern removes every key matching the glob pattern (relative to the
// store's prefix) and returns the number of keys removed. Used to bust
// families of keys, e.g. "subnet:*" after a snapshot refresh.
func (s *Store) ClearPattern(ctx context.Context, pattern string) int {
	if s.disabled.Load() {
		return 0
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var removed int
	iter := s.client.Scan(opCtx, 0, s.prefix+pattern, 100).Iterator()
	for iter.Next(opCtx) {
		if err := s.client.Del(opCtx, iter.Val()).Err(); err != nil {
			logging.Error().Err(err).Str("pattern", pattern).Msg("cache clear pattern delete error")
			metrics.CacheErrors.WithLabelValues("clear_pattern").Inc()
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		logging.Error().Err(err).Str("pattern", pattern).Msg("cache clear pattern scan error")
		metrics.CacheErrors.WithLabelValues("clear_pattern").Inc()
	}
	return removed
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// keyFamily extracts the metric label from a key: everything before the
// first colon, or the whole key when there is none.
func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
