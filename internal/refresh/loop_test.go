// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deainexus/pulse/internal/cache"
)

type recordingHub struct {
	mu       sync.Mutex
	payloads []any
}

func (h *recordingHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
}

func (h *recordingHub) broadcasts() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]any(nil), h.payloads...)
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store := cache.New(context.Background(), cache.Options{
		URL:       "redis://" + mr.Addr(),
		KeyPrefix: "test:",
	})
	require.True(t, store.Enabled())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestLoop(t *testing.T, store *cache.Store, hub Broadcaster, fetch FetchFunc) *Loop {
	t.Helper()
	loop, err := NewLoop(Options{
		Channel:    "price",
		Interval:   time.Minute,
		MaxBackoff: 8 * time.Minute,
		Fetch:      fetch,
		Store:      store,
		Hub:        hub,
	})
	require.NoError(t, err)
	return loop
}

func TestNewLoopValidation(t *testing.T) {
	store := newTestStore(t)
	hub := &recordingHub{}
	fetch := func(ctx context.Context) (any, error) { return nil, nil }

	_, err := NewLoop(Options{Interval: time.Second, Fetch: fetch, Store: store, Hub: hub})
	assert.Error(t, err, "missing channel")

	_, err = NewLoop(Options{Channel: "price", Fetch: fetch, Store: store, Hub: hub})
	assert.Error(t, err, "missing interval")

	_, err = NewLoop(Options{Channel: "price", Interval: time.Second, Store: store, Hub: hub})
	assert.Error(t, err, "missing fetch")
}

func TestNewLoopDefaults(t *testing.T) {
	store := newTestStore(t)
	loop := newTestLoop(t, store, &recordingHub{}, func(ctx context.Context) (any, error) { return nil, nil })

	assert.Equal(t, "price", loop.key)
	assert.Equal(t, 2*time.Minute, loop.ttl, "ttl defaults to twice the cadence")
	assert.Equal(t, "refresh-price", loop.String())
}

func TestCycleWritesCacheThenBroadcasts(t *testing.T) {
	store := newTestStore(t)
	hub := &recordingHub{}
	loop := newTestLoop(t, store, hub, func(ctx context.Context) (any, error) {
		return map[string]float64{"price": 450.2}, nil
	})

	loop.runCycle(context.Background())

	var cached map[string]float64
	require.True(t, store.Get(context.Background(), "price", &cached))
	assert.Equal(t, 450.2, cached["price"])

	got := hub.broadcasts()
	require.Len(t, got, 1)
	assert.Equal(t, map[string]float64{"price": 450.2}, got[0])
}

func TestFetchFailureKeepsStaleCacheAndSkipsBroadcast(t *testing.T) {
	store := newTestStore(t)
	hub := &recordingHub{}

	require.NoError(t, store.Set(context.Background(), "price", map[string]float64{"price": 440.0}, time.Hour))

	loop := newTestLoop(t, store, hub, func(ctx context.Context) (any, error) {
		return nil, errors.New("provider down")
	})
	loop.runCycle(context.Background())

	var cached map[string]float64
	require.True(t, store.Get(context.Background(), "price", &cached), "stale value still served")
	assert.Equal(t, 440.0, cached["price"])
	assert.Empty(t, hub.broadcasts())
	assert.Equal(t, 1, loop.failures)
}

func TestDisabledCacheStillBroadcasts(t *testing.T) {
	// Unreachable backend puts the store in fail-open mode; live clients
	// must keep receiving data regardless.
	store := cache.New(context.Background(), cache.Options{URL: "redis://127.0.0.1:1/0"})
	require.False(t, store.Enabled())

	hub := &recordingHub{}
	loop := newTestLoop(t, store, hub, func(ctx context.Context) (any, error) {
		return map[string]float64{"price": 451.0}, nil
	})

	loop.runCycle(context.Background())

	assert.Len(t, hub.broadcasts(), 1)
}

func TestBackoffGrowsStrictlyThenCapsAndResets(t *testing.T) {
	store := newTestStore(t)
	hub := &recordingHub{}

	shouldFail := true
	loop, err := NewLoop(Options{
		Channel:    "validators",
		Interval:   time.Minute,
		MaxBackoff: 5 * time.Minute,
		Fetch: func(ctx context.Context) (any, error) {
			if shouldFail {
				return nil, errors.New("provider down")
			}
			return []string{"ok"}, nil
		},
		Store: store,
		Hub:   hub,
	})
	require.NoError(t, err)

	ctx := context.Background()

	var delays []time.Duration
	for i := 0; i < 4; i++ {
		loop.runCycle(ctx)
		delays = append(delays, loop.nextDelay())
	}

	assert.Equal(t, []time.Duration{
		2 * time.Minute,
		4 * time.Minute,
		5 * time.Minute, // capped
		5 * time.Minute,
	}, delays)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
	}

	shouldFail = false
	loop.runCycle(ctx)
	assert.Equal(t, time.Minute, loop.nextDelay(), "nominal cadence restored after success")
}

func TestFetchBoundedByInterval(t *testing.T) {
	store := newTestStore(t)
	hub := &recordingHub{}

	loop, err := NewLoop(Options{
		Channel:  "price",
		Interval: 20 * time.Millisecond,
		Fetch: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		Store: store,
		Hub:   hub,
	})
	require.NoError(t, err)

	start := time.Now()
	loop.runCycle(context.Background())

	assert.Less(t, time.Since(start), time.Second, "hung fetch is cut off at the cadence")
	assert.Empty(t, hub.broadcasts())
}

func TestServeRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	hub := &recordingHub{}

	fetched := make(chan struct{}, 8)
	loop, err := NewLoop(Options{
		Channel:  "price",
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (any, error) {
			select {
			case fetched <- struct{}{}:
			default:
			}
			return map[string]float64{"price": 450.2}, nil
		},
		Store: store,
		Hub:   hub,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Serve(ctx) }()

	select {
	case <-fetched:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run promptly")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.NotEmpty(t, hub.broadcasts())
}
