// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package config loads and validates Pulse configuration.
//
// Configuration is layered via koanf (highest priority wins):
//  1. Built-in defaults
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (PULSE_ prefix, e.g. PULSE_SERVER_PORT)
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Pulse server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Cache    CacheConfig    `koanf:"cache"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Refresh  RefreshConfig  `koanf:"refresh"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig holds Redis cache settings.
type CacheConfig struct {
	// URL is the Redis connection URL. The cache degrades to pass-through
	// (fail-open) when the server is unreachable.
	URL string `koanf:"url"`

	// KeyPrefix namespaces all cache keys (e.g. "pulse:").
	KeyPrefix string `koanf:"key_prefix"`

	// OpTimeout bounds every individual cache operation.
	OpTimeout time.Duration `koanf:"op_timeout"`
}

// UpstreamConfig holds external data provider settings.
type UpstreamConfig struct {
	CoinGeckoURL string        `koanf:"coingecko_url" validate:"url"`
	TaostatsURL  string        `koanf:"taostats_url" validate:"url"`
	TaostatsKey  string        `koanf:"taostats_key"`
	Timeout      time.Duration `koanf:"timeout"`

	// RatePerSecond limits outbound requests per provider.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// RefreshConfig holds per-channel background refresh cadences.
type RefreshConfig struct {
	PriceInterval      time.Duration `koanf:"price_interval"`
	SubnetsInterval    time.Duration `koanf:"subnets_interval"`
	ValidatorsInterval time.Duration `koanf:"validators_interval"`

	// MaxBackoff caps the exponential backoff applied after consecutive
	// fetch failures.
	MaxBackoff time.Duration `koanf:"max_backoff"`
}

// SecurityConfig holds authentication and API protection settings.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL settings for account and staking storage.
type DatabaseConfig struct {
	// URL is the Postgres connection string. Empty disables the account
	// store entirely (market data endpoints still work).
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			URL:       "redis://localhost:6379/0",
			KeyPrefix: "pulse:",
			OpTimeout: 2 * time.Second,
		},
		Upstream: UpstreamConfig{
			CoinGeckoURL:  "https://api.coingecko.com/api/v3",
			TaostatsURL:   "https://api.taostats.io/api",
			TaostatsKey:   "",
			Timeout:       10 * time.Second,
			RatePerSecond: 2,
		},
		Refresh: RefreshConfig{
			PriceInterval:      15 * time.Second,
			SubnetsInterval:    60 * time.Second,
			ValidatorsInterval: 60 * time.Second,
			MaxBackoff:         5 * time.Minute,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			TokenTTL:        24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			URL:      "",
			MaxConns: 8,
		},
	}
}

// Validate checks structural constraints (via validator tags) and semantic
// invariants that tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.Refresh.PriceInterval <= 0 || c.Refresh.SubnetsInterval <= 0 || c.Refresh.ValidatorsInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}
	if c.Refresh.MaxBackoff < c.Refresh.ValidatorsInterval {
		return fmt.Errorf("refresh.max_backoff (%s) must be at least the slowest cadence (%s)",
			c.Refresh.MaxBackoff, c.Refresh.ValidatorsInterval)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	return nil
}

// AuthEnabled reports whether JWT authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.Security.JWTSecret != ""
}
