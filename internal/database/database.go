// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package database implements the PostgreSQL store for accounts, staking
// positions, transaction history, and subnet snapshots. The live
// distribution path never touches it; market endpoints work with the
// database disabled.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deainexus/pulse/internal/config"
	"github.com/deainexus/pulse/internal/logging"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint is violated, e.g.
// registering an email twice.
var ErrDuplicate = errors.New("already exists")

// Store is the PostgreSQL-backed account and staking store.
type Store struct {
	pool *pgxpool.Pool
}

// NewPool creates a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewStore wraps an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		username      TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_users (
		address    TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS staking_positions (
		id           BIGSERIAL PRIMARY KEY,
		user_address TEXT NOT NULL,
		subnet_id    INTEGER NOT NULL,
		amount       DOUBLE PRECISION NOT NULL,
		apy          DOUBLE PRECISION NOT NULL DEFAULT 0,
		earnings     DOUBLE PRECISION NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'active',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_staking_positions_address
		ON staking_positions (user_address)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id           BIGSERIAL PRIMARY KEY,
		user_address TEXT NOT NULL,
		type         TEXT NOT NULL,
		subnet_id    INTEGER NOT NULL,
		amount       DOUBLE PRECISION NOT NULL,
		hash         TEXT,
		status       TEXT NOT NULL DEFAULT 'pending',
		timestamp    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_address
		ON transactions (user_address, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS subnet_snapshots (
		id               BIGSERIAL PRIMARY KEY,
		subnet_id        INTEGER NOT NULL,
		emissions        DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_validators INTEGER NOT NULL DEFAULT 0,
		total_neurons    INTEGER NOT NULL DEFAULT 0,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subnet_snapshots_subnet
		ON subnet_snapshots (subnet_id, timestamp DESC)`,
}

// EnsureSchema creates all tables and indexes if missing. Statements are
// idempotent so startup is safe against an already-initialized database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	logging.Info().Msg("database schema verified")
	return nil
}
