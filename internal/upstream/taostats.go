// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package upstream

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/deainexus/pulse/internal/models"
)

// Taostats fetches Bittensor subnet, validator, and network data.
type Taostats struct {
	c *client
}

// NewTaostats creates a TAOStats client. apiKey may be empty for the public
// rate-limited tier.
func NewTaostats(opts Options, apiKey string) *Taostats {
	if apiKey != "" {
		if opts.Headers == nil {
			opts.Headers = map[string]string{}
		}
		opts.Headers["Authorization"] = apiKey
	}
	return &Taostats{c: newClient("taostats", opts)}
}

// Subnets returns the list of all subnets.
func (t *Taostats) Subnets(ctx context.Context) ([]models.Subnet, error) {
	var subnets []models.Subnet
	if err := t.c.getJSON(ctx, "/subnets", nil, &subnets); err != nil {
		return nil, err
	}
	return subnets, nil
}

// Subnet returns detail for one subnet. The provider's schema varies per
// subnet type, so the payload is passed through as raw JSON.
func (t *Taostats) Subnet(ctx context.Context, netuid int) (json.RawMessage, error) {
	var detail json.RawMessage
	if err := t.c.getJSON(ctx, "/subnet/"+strconv.Itoa(netuid), nil, &detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// Validators returns the validator snapshot across all subnets.
func (t *Taostats) Validators(ctx context.Context) ([]models.Validator, error) {
	var validators []models.Validator
	if err := t.c.getJSON(ctx, "/validators", nil, &validators); err != nil {
		return nil, err
	}
	return validators, nil
}

// SubnetValidators returns the validators for one subnet.
func (t *Taostats) SubnetValidators(ctx context.Context, netuid int) ([]models.Validator, error) {
	var validators []models.Validator
	if err := t.c.getJSON(ctx, "/subnet/"+strconv.Itoa(netuid)+"/validators", nil, &validators); err != nil {
		return nil, err
	}
	return validators, nil
}

// SubnetNeurons returns the miner (neuron) snapshot for one subnet as raw
// JSON; neuron schemas change frequently upstream.
func (t *Taostats) SubnetNeurons(ctx context.Context, netuid int) (json.RawMessage, error) {
	var neurons json.RawMessage
	if err := t.c.getJSON(ctx, "/subnet/"+strconv.Itoa(netuid)+"/neurons", nil, &neurons); err != nil {
		return nil, err
	}
	return neurons, nil
}

// SubnetAPY returns yield figures (validator, miner, composite) for one
// subnet.
func (t *Taostats) SubnetAPY(ctx context.Context, netuid int) (json.RawMessage, error) {
	var apy json.RawMessage
	if err := t.c.getJSON(ctx, "/subnet/"+strconv.Itoa(netuid)+"/apy", nil, &apy); err != nil {
		return nil, err
	}
	return apy, nil
}

// WeightCopy returns delegation (weight copy) operator data across subnets.
func (t *Taostats) WeightCopy(ctx context.Context) (json.RawMessage, error) {
	var info json.RawMessage
	if err := t.c.getJSON(ctx, "/weight-copy", nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Nominator returns delegation details, stake, and rewards for one hotkey.
func (t *Taostats) Nominator(ctx context.Context, hotkey string) (json.RawMessage, error) {
	var info json.RawMessage
	if err := t.c.getJSON(ctx, "/nominator/"+url.PathEscape(hotkey), nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Search looks up hotkeys, validators, and subnets matching query.
func (t *Taostats) Search(ctx context.Context, query string) (json.RawMessage, error) {
	var results json.RawMessage
	if err := t.c.getJSON(ctx, "/search", url.Values{"q": []string{query}}, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// NetworkStats returns aggregate Bittensor network statistics.
func (t *Taostats) NetworkStats(ctx context.Context) (models.NetworkStats, error) {
	var stats models.NetworkStats
	if err := t.c.getJSON(ctx, "/stats", nil, &stats); err != nil {
		return models.NetworkStats{}, err
	}
	return stats, nil
}
