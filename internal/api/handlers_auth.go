// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/deainexus/pulse/internal/auth"
	"github.com/deainexus/pulse/internal/database"
	"github.com/deainexus/pulse/internal/logging"
)

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (rt *Router) handleSignup(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "account storage not configured")
		return
	}

	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unusable password")
		return
	}

	user, err := rt.db.CreateUser(r.Context(), req.Email, req.Username, hash)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		logging.Error().Err(err).Msg("signup failed")
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	token, err := rt.jwt.GenerateToken(user.ID, user.Email, user.Username)
	if err != nil {
		logging.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	logging.Info().Int64("user_id", user.ID).Msg("account created")
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, ExpiresIn: int64(rt.jwt.TokenTTL().Seconds())})
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		writeError(w, http.StatusServiceUnavailable, "account storage not configured")
		return
	}

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := rt.db.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// Same response for unknown email and wrong password, no account
		// enumeration via error text.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := rt.db.TouchLastLogin(r.Context(), user.ID); err != nil {
		logging.Warn().Err(err).Int64("user_id", user.ID).Msg("last login update failed")
	}

	token, err := rt.jwt.GenerateToken(user.ID, user.Email, user.Username)
	if err != nil {
		logging.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresIn: int64(rt.jwt.TokenTTL().Seconds())})
}

// handleRefresh issues a fresh token for an already-authenticated caller.
func (rt *Router) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	token, err := rt.jwt.GenerateToken(claims.UserID, claims.Email, claims.Username)
	if err != nil {
		logging.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresIn: int64(rt.jwt.TokenTTL().Seconds())})
}

func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	if rt.db == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       claims.UserID,
			"email":    claims.Email,
			"username": claims.Username,
		})
		return
	}

	user, err := rt.db.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
