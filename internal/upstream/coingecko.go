// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package upstream

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/deainexus/pulse/internal/models"
)

// taoCoinID is CoinGecko's identifier for the Bittensor token.
const taoCoinID = "bittensor"

// CoinGecko fetches live TAO market data.
type CoinGecko struct {
	c *client
}

// NewCoinGecko creates a CoinGecko client.
func NewCoinGecko(opts Options) *CoinGecko {
	return &CoinGecko{c: newClient("coingecko", opts)}
}

// TAOPrice returns the current TAO price, market cap, volume, and 24h change.
func (g *CoinGecko) TAOPrice(ctx context.Context) (models.PriceData, error) {
	query := url.Values{
		"ids":                 {taoCoinID},
		"vs_currencies":       {"usd"},
		"include_market_cap":  {"true"},
		"include_24hr_vol":    {"true"},
		"include_24hr_change": {"true"},
	}

	var resp map[string]struct {
		USD          float64 `json:"usd"`
		USDMarketCap float64 `json:"usd_market_cap"`
		USD24hVol    float64 `json:"usd_24h_vol"`
		USD24hChange float64 `json:"usd_24h_change"`
	}
	if err := g.c.getJSON(ctx, "/simple/price", query, &resp); err != nil {
		return models.PriceData{}, err
	}

	tao := resp[taoCoinID]
	return models.PriceData{
		Price:     tao.USD,
		MarketCap: tao.USDMarketCap,
		Volume24h: tao.USD24hVol,
		Change24h: tao.USD24hChange,
		FetchedAt: time.Now().Unix(),
	}, nil
}

// HistoricalPrices returns the raw market chart for the last N days. The
// payload shape is CoinGecko's {prices, market_caps, total_volumes} arrays,
// passed through untouched for charting clients.
func (g *CoinGecko) HistoricalPrices(ctx context.Context, days int) (map[string][][2]float64, error) {
	if days <= 0 {
		days = 30
	}
	query := url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(days)},
	}

	var resp map[string][][2]float64
	if err := g.c.getJSON(ctx, "/coins/"+taoCoinID+"/market_chart", query, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
