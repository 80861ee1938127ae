// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/models"
)

type createStakingRequest struct {
	Address  string  `json:"user_address"`
	SubnetID int     `json:"subnet_id"`
	Amount   float64 `json:"amount"`
	APY      float64 `json:"apy"`
}

type recordTransactionRequest struct {
	Address  string  `json:"user_address"`
	Type     string  `json:"type"`
	SubnetID int     `json:"subnet_id"`
	Amount   float64 `json:"amount"`
	Hash     string  `json:"hash"`
}

func (rt *Router) handleListStaking(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "account storage not configured")
		return
	}

	address := chi.URLParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	positions, err := rt.db.ListStakingPositions(r.Context(), address)
	if err != nil {
		logging.Error().Err(err).Msg("staking list failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if positions == nil {
		positions = []models.StakingPosition{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (rt *Router) handleCreateStaking(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "account storage not configured")
		return
	}

	var req createStakingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Address == "" || req.SubnetID < 0 || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "user_address, subnet_id, and a positive amount are required")
		return
	}

	// The wallet row is created on first sight so positions always
	// reference a known address.
	if _, err := rt.db.GetOrCreateWalletUser(r.Context(), req.Address); err != nil {
		logging.Error().Err(err).Msg("wallet user upsert failed")
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}

	position, err := rt.db.CreateStakingPosition(r.Context(), req.Address, req.SubnetID, req.Amount, req.APY)
	if err != nil {
		logging.Error().Err(err).Msg("staking create failed")
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, position)
}

func (rt *Router) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "account storage not configured")
		return
	}

	address := chi.URLParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	txs, err := rt.db.ListTransactions(r.Context(), address, limit)
	if err != nil {
		logging.Error().Err(err).Msg("transaction list failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (rt *Router) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "account storage not configured")
		return
	}

	var req recordTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Address == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "user_address and a positive amount are required")
		return
	}
	switch req.Type {
	case "stake", "unstake", "harvest":
	default:
		writeError(w, http.StatusBadRequest, "type must be stake, unstake, or harvest")
		return
	}

	if _, err := rt.db.GetOrCreateWalletUser(r.Context(), req.Address); err != nil {
		logging.Error().Err(err).Msg("wallet user upsert failed")
		writeError(w, http.StatusInternalServerError, "record failed")
		return
	}

	tx, err := rt.db.RecordTransaction(r.Context(), models.Transaction{
		Address:  req.Address,
		Type:     req.Type,
		SubnetID: req.SubnetID,
		Amount:   req.Amount,
		Hash:     req.Hash,
		Status:   "pending",
	})
	if err != nil {
		logging.Error().Err(err).Msg("transaction record failed")
		writeError(w, http.StatusInternalServerError, "record failed")
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
