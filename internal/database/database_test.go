// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deainexus/pulse/internal/config"
	"github.com/deainexus/pulse/internal/models"
)

// newIntegrationStore connects to the database named by
// PULSE_TEST_DATABASE_URL, or skips the test when none is configured.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("PULSE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PULSE_TEST_DATABASE_URL not set, skipping database integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)

	store := NewStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(store.Close)
	return store
}

func TestUserLifecycle(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	email := "alice+" + time.Now().Format("150405.000000") + "@example.com"

	user, err := store.CreateUser(ctx, email, "alice", "$2a$12$fakehash")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Nil(t, user.LastLogin)

	_, err = store.CreateUser(ctx, email, "alice2", "$2a$12$fakehash")
	assert.ErrorIs(t, err, ErrDuplicate)

	byEmail, err := store.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	require.NoError(t, store.TouchLastLogin(ctx, user.ID))
	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, byID.LastLogin)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWalletUserGetOrCreate(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	address := "5Fget" + time.Now().Format("150405.000000")

	first, err := store.GetOrCreateWalletUser(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, address, first.Address)

	again, err := store.GetOrCreateWalletUser(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, again.CreatedAt, "row created once")
	assert.False(t, again.UpdatedAt.Before(first.UpdatedAt))
}

func TestStakingPositionLifecycle(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	address := "5Fwallet" + time.Now().Format("150405.000000")

	pos, err := store.CreateStakingPosition(ctx, address, 18, 100.5, 12.4)
	require.NoError(t, err)
	assert.Equal(t, "active", pos.Status)

	require.NoError(t, store.UpdateStakingPosition(ctx, pos.ID, 150.0, 3.2, "active"))

	got, err := store.GetStakingPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Amount)
	assert.Equal(t, 3.2, got.Earnings)

	listed, err := store.ListStakingPositions(ctx, address)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	assert.ErrorIs(t, store.UpdateStakingPosition(ctx, -1, 0, 0, "active"), ErrNotFound)
}

func TestTransactionHistory(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	address := "5Ftx" + time.Now().Format("150405.000000")

	first, err := store.RecordTransaction(ctx, models.Transaction{
		Address: address, Type: "stake", SubnetID: 1, Amount: 10, Status: "confirmed",
	})
	require.NoError(t, err)
	assert.Empty(t, first.Hash)

	_, err = store.RecordTransaction(ctx, models.Transaction{
		Address: address, Type: "unstake", SubnetID: 1, Amount: 4, Hash: "0xabc", Status: "pending",
	})
	require.NoError(t, err)

	txs, err := store.ListTransactions(ctx, address, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "unstake", txs[0].Type, "newest first")
}

func TestSubnetSnapshots(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	subnetID := int(time.Now().UnixNano() % 100000)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordSubnetSnapshot(ctx, models.SubnetSnapshot{
			SubnetID: subnetID, Emissions: float64(i), TotalValidators: 64, TotalNeurons: 1024,
		}))
	}

	snaps, err := store.SubnetHistory(ctx, subnetID, 2)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}
