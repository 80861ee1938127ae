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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deainexus/pulse/internal/models"
)

// CreateUser inserts a new account and returns it with the generated ID.
// Returns ErrDuplicate when the email is already registered.
func (s *Store) CreateUser(ctx context.Context, email, username, passwordHash string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, username, password_hash, created_at, last_login`,
		email, username, passwordHash)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUserByEmail fetches an account for login. Returns ErrNotFound when no
// account has that email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at, last_login
		 FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user by email: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID fetches an account by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at, last_login
		 FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// TouchLastLogin records a successful login timestamp.
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// GetOrCreateWalletUser returns the wallet row for address, inserting it on
// first sight. Repeat calls bump updated_at.
func (s *Store) GetOrCreateWalletUser(ctx context.Context, address string) (*models.WalletUser, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO wallet_users (address) VALUES ($1)
		 ON CONFLICT (address) DO UPDATE SET updated_at = now()
		 RETURNING address, created_at, updated_at`, address)

	var u models.WalletUser
	if err := row.Scan(&u.Address, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get or create wallet user: %w", err)
	}
	return &u, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.LastLogin); err != nil {
		return nil, err
	}
	return &u, nil
}
