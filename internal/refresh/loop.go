// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package refresh runs the per-channel background loops that tie the three
// halves of live distribution together: fetch from an upstream provider,
// write through the cache, broadcast to subscribed sessions.
//
// Each channel has its own loop, cadence, and failure backoff. One slow or
// failing provider never delays another channel's loop; a failing loop keeps
// serving the last cached value to the read path until natural TTL expiry.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deainexus/pulse/internal/cache"
	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/metrics"
)

// Broadcaster publishes a payload to every session subscribed to a channel.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// FetchFunc retrieves the current value for a channel from its upstream
// provider.
type FetchFunc func(ctx context.Context) (any, error)

// Options configures a refresh loop.
type Options struct {
	// Channel is the live channel name ("price", "subnets", "validators").
	Channel string

	// Key is the cache key the loop writes. Defaults to Channel.
	Key string

	// Interval is the nominal cadence between successful cycles.
	Interval time.Duration

	// TTL bounds the cached value's lifetime. It must be at least Interval
	// so the read path keeps hitting between refreshes; defaults to twice
	// the interval.
	TTL time.Duration

	// MaxBackoff caps the retry interval after consecutive failures.
	// Defaults to 5 minutes.
	MaxBackoff time.Duration

	Fetch FetchFunc
	Store *cache.Store
	Hub   Broadcaster
}

// Loop is one channel's periodic refresh task. It implements suture.Service.
type Loop struct {
	channel    string
	key        string
	interval   time.Duration
	ttl        time.Duration
	maxBackoff time.Duration
	fetch      FetchFunc
	store      *cache.Store
	hub        Broadcaster

	failures int
}

// NewLoop creates a refresh loop for one channel.
func NewLoop(opts Options) (*Loop, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("refresh loop requires a channel name")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("refresh loop %q requires a positive interval", opts.Channel)
	}
	if opts.Fetch == nil || opts.Store == nil || opts.Hub == nil {
		return nil, fmt.Errorf("refresh loop %q requires fetch, store, and hub", opts.Channel)
	}
	if opts.Key == "" {
		opts.Key = opts.Channel
	}
	if opts.TTL < opts.Interval {
		opts.TTL = 2 * opts.Interval
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}

	return &Loop{
		channel:    opts.Channel,
		key:        opts.Key,
		interval:   opts.Interval,
		ttl:        opts.TTL,
		maxBackoff: opts.MaxBackoff,
		fetch:      opts.Fetch,
		store:      opts.Store,
		hub:        opts.Hub,
	}, nil
}

// Serve implements suture.Service. It runs one cycle immediately so clients
// have data as soon as the process starts, then cycles at the nominal
// cadence, stretching the wait with bounded exponential backoff while the
// upstream is failing. Returns only when ctx is canceled.
func (l *Loop) Serve(ctx context.Context) error {
	logging.Info().
		Str("channel", l.channel).
		Dur("interval", l.interval).
		Dur("ttl", l.ttl).
		Msg("refresh loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("channel", l.channel).Msg("refresh loop stopped")
			return ctx.Err()
		case <-timer.C:
		}

		l.runCycle(ctx)

		delay := l.nextDelay()
		metrics.RefreshBackoff.WithLabelValues(l.channel).Set(delay.Seconds())
		timer.Reset(delay)
	}
}

// String implements fmt.Stringer for supervisor logging.
func (l *Loop) String() string {
	return "refresh-" + l.channel
}

// runCycle performs one fetch → cache → broadcast pass. The fetch is bounded
// by the loop interval so a hung provider cannot stall the loop past one
// cycle. Errors are contained here; the loop has no caller to report to.
func (l *Loop) runCycle(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.interval)
	defer cancel()

	payload, err := l.fetch(fetchCtx)
	if err != nil {
		l.failures++
		metrics.RefreshCycles.WithLabelValues(l.channel, "fetch_error").Inc()
		logging.Warn().
			Err(err).
			Str("channel", l.channel).
			Int("consecutive_failures", l.failures).
			Msg("refresh fetch failed, serving stale cache until retry")
		return
	}
	l.failures = 0

	// Broadcast only after the cache write has settled, so the read path and
	// the live channel never disagree about the latest value. A disabled
	// cache is pass-through and cannot disagree with anything.
	if err := l.store.Set(ctx, l.key, payload, l.ttl); err != nil && !errors.Is(err, cache.ErrDisabled) {
		metrics.RefreshCycles.WithLabelValues(l.channel, "cache_error").Inc()
		logging.Warn().Err(err).Str("channel", l.channel).Msg("refresh cache write failed, skipping broadcast")
		return
	}

	l.hub.Broadcast(l.channel, payload)
	metrics.RefreshCycles.WithLabelValues(l.channel, "success").Inc()
	metrics.RefreshLastSuccess.WithLabelValues(l.channel).SetToCurrentTime()

	logging.Debug().Str("channel", l.channel).Msg("refresh cycle complete")
}

// nextDelay returns the wait before the next cycle: the nominal cadence when
// healthy, otherwise interval doubled per consecutive failure up to the cap.
func (l *Loop) nextDelay() time.Duration {
	if l.failures == 0 {
		return l.interval
	}

	delay := l.interval
	for i := 0; i < l.failures; i++ {
		delay *= 2
		if delay >= l.maxBackoff {
			return l.maxBackoff
		}
	}
	return delay
}
