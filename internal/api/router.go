// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Package api provides HTTP routing using Chi router. The route layer is a
// thin request/response mapping: every read endpoint goes through the
// cache-aside path, every failure is translated from the typed errors the
// lower layers return.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deainexus/pulse/internal/auth"
	"github.com/deainexus/pulse/internal/cache"
	"github.com/deainexus/pulse/internal/config"
	"github.com/deainexus/pulse/internal/models"
	"github.com/deainexus/pulse/internal/ws"

	"github.com/goccy/go-json"
)

// PriceSource provides TAO market data. Satisfied by *upstream.CoinGecko.
type PriceSource interface {
	TAOPrice(ctx context.Context) (models.PriceData, error)
	HistoricalPrices(ctx context.Context, days int) (map[string][][2]float64, error)
}

// NetworkSource provides subnet and validator data. Satisfied by
// *upstream.Taostats.
type NetworkSource interface {
	Subnets(ctx context.Context) ([]models.Subnet, error)
	Subnet(ctx context.Context, netuid int) (json.RawMessage, error)
	Validators(ctx context.Context) ([]models.Validator, error)
	SubnetValidators(ctx context.Context, netuid int) ([]models.Validator, error)
	SubnetNeurons(ctx context.Context, netuid int) (json.RawMessage, error)
	SubnetAPY(ctx context.Context, netuid int) (json.RawMessage, error)
	WeightCopy(ctx context.Context) (json.RawMessage, error)
	Nominator(ctx context.Context, hotkey string) (json.RawMessage, error)
	Search(ctx context.Context, query string) (json.RawMessage, error)
	NetworkStats(ctx context.Context) (models.NetworkStats, error)
}

// AccountStore is the persistent account and staking storage. Satisfied by
// *database.Store. Nil when the database is not configured; account routes
// then answer 503.
type AccountStore interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, email, username, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
	GetOrCreateWalletUser(ctx context.Context, address string) (*models.WalletUser, error)
	ListStakingPositions(ctx context.Context, address string) ([]models.StakingPosition, error)
	CreateStakingPosition(ctx context.Context, address string, subnetID int, amount, apy float64) (*models.StakingPosition, error)
	RecordTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	ListTransactions(ctx context.Context, address string, limit int) ([]models.Transaction, error)
	SubnetHistory(ctx context.Context, subnetID, limit int) ([]models.SubnetSnapshot, error)
}

// Router wires the HTTP surface to the cache, the live hub, and the
// upstream clients.
type Router struct {
	cfg     *config.Config
	store   *cache.Store
	hub     *ws.Hub
	price   PriceSource
	network NetworkSource
	jwt     *auth.JWTManager
	db      AccountStore
}

// NewRouter builds the route layer. jwt and db may be nil when auth or the
// database are not configured.
func NewRouter(cfg *config.Config, store *cache.Store, hub *ws.Hub, price PriceSource, network NetworkSource, jwt *auth.JWTManager, db AccountStore) *Router {
	return &Router{
		cfg:     cfg,
		store:   store,
		hub:     hub,
		price:   price,
		network: network,
		jwt:     jwt,
		db:      db,
	}
}

// Setup configures all HTTP routes.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and observability are unthrottled so monitors never get shed.
	r.Get("/health", rt.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Live channel endpoint. The rate limiter does not apply: one upgrade
	// per client lifetime.
	r.Get("/ws/live", rt.handleLiveSocket)

	// Market data endpoints, all read-through cached.
	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.Security.RateLimitReqs, rt.cfg.Security.RateLimitWindow))
		r.Use(requestMetrics)

		r.Get("/price", rt.handlePrice)
		r.Get("/price/history", rt.handlePriceHistory)
		r.Get("/subnets", rt.handleSubnets)
		r.Get("/subnet/{netuid}", rt.handleSubnet)
		r.Get("/subnet/{netuid}/validators", rt.handleSubnetValidators)
		r.Get("/subnet/{netuid}/neurons", rt.handleSubnetNeurons)
		r.Get("/subnet/{netuid}/history", rt.handleSubnetHistory)
		r.Get("/validators", rt.handleValidators)
		r.Get("/stats", rt.handleNetworkStats)
		r.Get("/apy/{netuid}", rt.handleSubnetAPY)
		r.Get("/weight-copy", rt.handleWeightCopy)
		r.Get("/nominator/{hotkey}", rt.handleNominator)
		r.Get("/search/{query}", rt.handleSearch)
	})

	// Account endpoints, available only when JWT auth is configured.
	if rt.jwt != nil {
		r.Route("/api/auth", func(r chi.Router) {
			// Tighter limit on credential endpoints.
			r.Use(httprate.LimitByIP(10, rt.cfg.Security.RateLimitWindow))
			r.Use(requestMetrics)

			r.Post("/signup", rt.handleSignup)
			r.Post("/login", rt.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(rt.jwt.RequireAuth)
				r.Post("/refresh", rt.handleRefresh)
				r.Get("/me", rt.handleMe)
			})
		})

		r.Route("/api/portfolio", func(r chi.Router) {
			r.Use(httprate.LimitByIP(rt.cfg.Security.RateLimitReqs, rt.cfg.Security.RateLimitWindow))
			r.Use(requestMetrics)
			r.Use(rt.jwt.RequireAuth)

			r.Get("/staking/{address}", rt.handleListStaking)
			r.Post("/staking", rt.handleCreateStaking)
			r.Get("/transactions/{address}", rt.handleListTransactions)
			r.Post("/transactions", rt.handleRecordTransaction)
		})
	}

	return r
}
