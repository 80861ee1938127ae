// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package models defines the shared data types exchanged between the
// upstream clients, the cache, the live channels, and the API layer.
package models

import "time"

// PriceData is the live TAO price snapshot from CoinGecko.
type PriceData struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
	Volume24h float64 `json:"volume24h"`
	Change24h float64 `json:"change24h"`
	FetchedAt int64   `json:"timestamp"`
}

// Subnet is a Bittensor subnet summary from TAOStats.
type Subnet struct {
	NetUID          int     `json:"netuid"`
	Name            string  `json:"name"`
	Emission        float64 `json:"emission"`
	TotalValidators int     `json:"total_validators"`
	TotalNeurons    int     `json:"total_neurons"`
	RegistrationFee float64 `json:"registration_fee,omitempty"`
}

// Validator is a validator snapshot for a subnet.
type Validator struct {
	Hotkey    string  `json:"hotkey"`
	NetUID    int     `json:"netuid"`
	Stake     float64 `json:"stake"`
	Trust     float64 `json:"trust,omitempty"`
	Emission  float64 `json:"emission,omitempty"`
	Dividends float64 `json:"dividends,omitempty"`
}

// NetworkStats is the aggregate network summary served by /api/stats.
type NetworkStats struct {
	TotalStake    float64 `json:"total_stake"`
	TotalSupply   float64 `json:"total_supply"`
	SubnetCount   int     `json:"subnet_count"`
	BlockNumber   int64   `json:"block_number,omitempty"`
	EmissionDaily float64 `json:"emission_daily,omitempty"`
}

// WalletUser is a wallet address known to the portfolio store. Rows are
// created implicitly the first time an address stakes or records a
// transaction.
type WalletUser struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an authenticated account.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// StakingPosition is an open stake a wallet holds in a subnet.
type StakingPosition struct {
	ID          int64     `json:"id"`
	UserAddress string    `json:"user_address"`
	SubnetID    int       `json:"subnet_id"`
	Amount      float64   `json:"amount"`
	APY         float64   `json:"apy"`
	Earnings    float64   `json:"earnings"`
	Status      string    `json:"status"` // active, inactive, completed
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction is a staking operation recorded for history views.
type Transaction struct {
	ID        int64     `json:"id"`
	Address   string    `json:"user_address"`
	Type      string    `json:"type"` // stake, unstake, harvest
	SubnetID  int       `json:"subnet_id"`
	Amount    float64   `json:"amount"`
	Hash      string    `json:"hash,omitempty"`
	Status    string    `json:"status"` // pending, confirmed, failed
	Timestamp time.Time `json:"timestamp"`
}

// SubnetSnapshot is a periodic record of subnet vitals for historical charts.
type SubnetSnapshot struct {
	ID              int64     `json:"id"`
	SubnetID        int       `json:"subnet_id"`
	Emissions       float64   `json:"emissions"`
	TotalValidators int       `json:"total_validators"`
	TotalNeurons    int       `json:"total_neurons"`
	Timestamp       time.Time `json:"timestamp"`
}
