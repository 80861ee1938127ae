// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deainexus/pulse/internal/models"
)

// ListStakingPositions returns all positions for a wallet address, newest
// first.
func (s *Store) ListStakingPositions(ctx context.Context, address string) ([]models.StakingPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_address, subnet_id, amount, apy, earnings, status, created_at, updated_at
		 FROM staking_positions WHERE user_address = $1 ORDER BY created_at DESC`, address)
	if err != nil {
		return nil, fmt.Errorf("list staking positions: %w", err)
	}
	defer rows.Close()

	var positions []models.StakingPosition
	for rows.Next() {
		var p models.StakingPosition
		if err := rows.Scan(&p.ID, &p.UserAddress, &p.SubnetID, &p.Amount, &p.APY, &p.Earnings, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan staking position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CreateStakingPosition opens a new position.
func (s *Store) CreateStakingPosition(ctx context.Context, address string, subnetID int, amount, apy float64) (*models.StakingPosition, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO staking_positions (user_address, subnet_id, amount, apy)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_address, subnet_id, amount, apy, earnings, status, created_at, updated_at`,
		address, subnetID, amount, apy)

	var p models.StakingPosition
	if err := row.Scan(&p.ID, &p.UserAddress, &p.SubnetID, &p.Amount, &p.APY, &p.Earnings, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create staking position: %w", err)
	}
	return &p, nil
}

// UpdateStakingPosition adjusts a position's amount, earnings, and status.
func (s *Store) UpdateStakingPosition(ctx context.Context, id int64, amount, earnings float64, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staking_positions
		 SET amount = $2, earnings = $3, status = $4, updated_at = now()
		 WHERE id = $1`, id, amount, earnings, status)
	if err != nil {
		return fmt.Errorf("update staking position %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update staking position %d: %w", id, ErrNotFound)
	}
	return nil
}

// RecordTransaction appends a staking operation to the history.
func (s *Store) RecordTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO transactions (user_address, type, subnet_id, amount, hash, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_address, type, subnet_id, amount, COALESCE(hash, ''), status, timestamp`,
		tx.Address, tx.Type, tx.SubnetID, tx.Amount, nullableString(tx.Hash), tx.Status)

	var out models.Transaction
	if err := row.Scan(&out.ID, &out.Address, &out.Type, &out.SubnetID, &out.Amount, &out.Hash, &out.Status, &out.Timestamp); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	return &out, nil
}

// ListTransactions returns a wallet's transaction history, newest first,
// capped at limit (default 50).
func (s *Store) ListTransactions(ctx context.Context, address string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_address, type, subnet_id, amount, COALESCE(hash, ''), status, timestamp
		 FROM transactions WHERE user_address = $1 ORDER BY timestamp DESC LIMIT $2`,
		address, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.Address, &tx.Type, &tx.SubnetID, &tx.Amount, &tx.Hash, &tx.Status, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// RecordSubnetSnapshot stores one periodic subnet vitals row.
func (s *Store) RecordSubnetSnapshot(ctx context.Context, snap models.SubnetSnapshot) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO subnet_snapshots (subnet_id, emissions, total_validators, total_neurons)
		 VALUES ($1, $2, $3, $4)`,
		snap.SubnetID, snap.Emissions, snap.TotalValidators, snap.TotalNeurons); err != nil {
		return fmt.Errorf("record subnet snapshot: %w", err)
	}
	return nil
}

// SubnetHistory returns the most recent snapshots for one subnet, newest
// first.
func (s *Store) SubnetHistory(ctx context.Context, subnetID, limit int) ([]models.SubnetSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, subnet_id, emissions, total_validators, total_neurons, timestamp
		 FROM subnet_snapshots WHERE subnet_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		subnetID, limit)
	if err != nil {
		return nil, fmt.Errorf("subnet history: %w", err)
	}
	defer rows.Close()

	var snaps []models.SubnetSnapshot
	for rows.Next() {
		var snap models.SubnetSnapshot
		if err := rows.Scan(&snap.ID, &snap.SubnetID, &snap.Emissions, &snap.TotalValidators, &snap.TotalNeurons, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan subnet snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// GetStakingPosition fetches one position by ID.
func (s *Store) GetStakingPosition(ctx context.Context, id int64) (*models.StakingPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_address, subnet_id, amount, apy, earnings, status, created_at, updated_at
		 FROM staking_positions WHERE id = $1`, id)

	var p models.StakingPosition
	if err := row.Scan(&p.ID, &p.UserAddress, &p.SubnetID, &p.Amount, &p.APY, &p.Earnings, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get staking position %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get staking position %d: %w", id, err)
	}
	return &p, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
