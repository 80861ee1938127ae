// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package upstream implements the external data provider clients: CoinGecko
// for TAO market data and TAOStats for subnet and validator snapshots.
//
// Every request is bounded by the configured timeout, rate-limited per
// provider, and routed through a circuit breaker so a failing provider
// cannot soak up connections. All failures surface as *Error.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/metrics"
)

// client is the shared HTTP plumbing for provider clients.
type client struct {
	name    string
	baseURL string
	headers map[string]string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// Options configures a provider client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond limits outbound requests; zero disables limiting.
	RatePerSecond float64
	// Headers are attached to every request (e.g. an API key).
	Headers map[string]string
}

func newClient(name string, opts Options) *client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	// Opens after a 60% failure rate with at least 10 requests in the
	// measurement window; recovery is probed after 2 minutes.
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &client{
		name:    name,
		baseURL: opts.BaseURL,
		headers: opts.Headers,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		cb:      cb,
	}
}

// getJSON fetches baseURL+path with the query attached and decodes the JSON
// response into dest. Returns *Error on any failure.
func (c *client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	raw, err := c.fetch(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &Error{Provider: c.name, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Provider: c.name, Err: err}
		}
	}

	start := time.Now()
	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, path, query)
	})
	metrics.UpstreamRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequests.WithLabelValues(c.name, "rejected").Inc()
			return nil, &Error{Provider: c.name, Err: err}
		}
		metrics.UpstreamRequests.WithLabelValues(c.name, "failure").Inc()
		var ue *Error
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, &Error{Provider: c.name, Err: err}
	}

	metrics.UpstreamRequests.WithLabelValues(c.name, "success").Inc()
	return raw, nil
}

func (c *client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Error{Provider: c.name, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Provider: c.name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &Error{Provider: c.name, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Provider: c.name,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("non-success response: %s", http.StatusText(resp.StatusCode)),
		}
	}
	return body, nil
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
