// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinGeckoTAOPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bittensor", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bittensor":{"usd":452.31,"usd_market_cap":3900000000,"usd_24h_vol":120000000,"usd_24h_change":-2.4}}`))
	}))
	defer srv.Close()

	gecko := NewCoinGecko(Options{BaseURL: srv.URL, Timeout: 2 * time.Second})

	price, err := gecko.TAOPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 452.31, price.Price)
	assert.Equal(t, float64(3900000000), price.MarketCap)
	assert.Equal(t, float64(120000000), price.Volume24h)
	assert.Equal(t, -2.4, price.Change24h)
	assert.NotZero(t, price.FetchedAt)
}

func TestCoinGeckoHistoricalPricesDefaultsDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bittensor/market_chart", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,441.5]],"market_caps":[],"total_volumes":[]}`))
	}))
	defer srv.Close()

	gecko := NewCoinGecko(Options{BaseURL: srv.URL})

	chart, err := gecko.HistoricalPrices(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, chart["prices"], 1)
	assert.Equal(t, 441.5, chart["prices"][0][1])
}

func TestTaostatsSubnets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subnets", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"netuid":1,"name":"text-prompting","emission":0.12,"total_validators":64,"total_neurons":1024}]`))
	}))
	defer srv.Close()

	ts := NewTaostats(Options{BaseURL: srv.URL, Timeout: 2 * time.Second}, "secret-key")

	subnets, err := ts.Subnets(context.Background())
	require.NoError(t, err)
	require.Len(t, subnets, 1)
	assert.Equal(t, 1, subnets[0].NetUID)
	assert.Equal(t, "text-prompting", subnets[0].Name)
	assert.Equal(t, 64, subnets[0].TotalValidators)
}

func TestTaostatsSubnetValidators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subnet/18/validators", r.URL.Path)
		_, _ = w.Write([]byte(`[{"hotkey":"5F3s","netuid":18,"stake":12000.5}]`))
	}))
	defer srv.Close()

	ts := NewTaostats(Options{BaseURL: srv.URL}, "")

	validators, err := ts.SubnetValidators(context.Background(), 18)
	require.NoError(t, err)
	require.Len(t, validators, 1)
	assert.Equal(t, "5F3s", validators[0].Hotkey)
	assert.Equal(t, 12000.5, validators[0].Stake)
}

func TestTaostatsDelegationEndpoints(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ts := NewTaostats(Options{BaseURL: srv.URL}, "")
	ctx := context.Background()

	_, err := ts.SubnetAPY(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "/subnet/7/apy", gotPath)

	_, err = ts.WeightCopy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/weight-copy", gotPath)

	_, err = ts.Nominator(ctx, "5F3s")
	require.NoError(t, err)
	assert.Equal(t, "/nominator/5F3s", gotPath)

	_, err = ts.Search(ctx, "text prompting")
	require.NoError(t, err)
	assert.Equal(t, "/search", gotPath)
	assert.Equal(t, "text prompting", gotQuery)
}

func TestTaostatsNetworkStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_stake":6500000,"total_supply":21000000,"subnet_count":45}`))
	}))
	defer srv.Close()

	ts := NewTaostats(Options{BaseURL: srv.URL}, "")

	stats, err := ts.NetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(6500000), stats.TotalStake)
	assert.Equal(t, 45, stats.SubnetCount)
}

func TestNonSuccessStatusReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gecko := NewCoinGecko(Options{BaseURL: srv.URL})

	_, err := gecko.TAOPrice(context.Background())
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "coingecko", ue.Provider)
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
}

func TestTimeoutReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ts := NewTaostats(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, "")

	_, err := ts.Subnets(context.Background())
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "taostats", ue.Provider)
	assert.Zero(t, ue.Status)
}

func TestMalformedBodyReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not valid json`))
	}))
	defer srv.Close()

	ts := NewTaostats(Options{BaseURL: srv.URL}, "")

	_, err := ts.NetworkStats(context.Background())
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "taostats", ue.Provider)
}

func TestCircuitBreakerOpensAfterSustainedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient("flaky", Options{BaseURL: srv.URL, Timeout: time.Second})

	for i := 0; i < 12; i++ {
		_, _ = c.fetch(context.Background(), "/x", nil)
	}

	_, err := c.fetch(context.Background(), "/x", nil)
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Zero(t, ue.Status)
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient("slow", Options{BaseURL: srv.URL, RatePerSecond: 0.001})

	// First request consumes the single burst token.
	_, err := c.fetch(context.Background(), "/x", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = c.fetch(ctx, "/x", nil)
	require.Error(t, err)
}
