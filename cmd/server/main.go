// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

// Command server runs the Pulse distribution service: background refresh
// loops fetch TAO market and network data, write it through the Redis
// cache, and broadcast it to live websocket subscribers, while the HTTP API
// serves the same data cache-aside.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deainexus/pulse/internal/api"
	"github.com/deainexus/pulse/internal/auth"
	"github.com/deainexus/pulse/internal/cache"
	"github.com/deainexus/pulse/internal/config"
	"github.com/deainexus/pulse/internal/database"
	"github.com/deainexus/pulse/internal/logging"
	"github.com/deainexus/pulse/internal/refresh"
	"github.com/deainexus/pulse/internal/supervisor"
	"github.com/deainexus/pulse/internal/upstream"
	"github.com/deainexus/pulse/internal/ws"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("starting pulse")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache: degrades to fail-open pass-through when Redis is unreachable,
	// so a cache outage never blocks startup.
	store := cache.New(ctx, cache.Options{
		URL:       cfg.Cache.URL,
		KeyPrefix: cfg.Cache.KeyPrefix,
		OpTimeout: cfg.Cache.OpTimeout,
	})
	defer func() { _ = store.Close() }()

	coingecko := upstream.NewCoinGecko(upstream.Options{
		BaseURL:       cfg.Upstream.CoinGeckoURL,
		Timeout:       cfg.Upstream.Timeout,
		RatePerSecond: cfg.Upstream.RatePerSecond,
	})
	taostats := upstream.NewTaostats(upstream.Options{
		BaseURL:       cfg.Upstream.TaostatsURL,
		Timeout:       cfg.Upstream.Timeout,
		RatePerSecond: cfg.Upstream.RatePerSecond,
	}, cfg.Upstream.TaostatsKey)

	// Channel registry. Failure to build the static channel set is the one
	// fatal initialization error in the distribution subsystem.
	hub, err := ws.NewHub("price", "subnets", "validators")
	if err != nil {
		return fmt.Errorf("init hub: %w", err)
	}

	loops, err := buildRefreshLoops(cfg, store, hub, coingecko, taostats)
	if err != nil {
		return fmt.Errorf("init refresh loops: %w", err)
	}

	// Optional account storage.
	var db *database.Store
	if cfg.Database.URL != "" {
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		db = database.NewStore(pool)
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	} else {
		logging.Info().Msg("database not configured, account endpoints disabled")
	}

	// Optional JWT auth.
	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled() {
		jwtManager, err = auth.NewJWTManager(cfg.Security)
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
	} else {
		logging.Info().Msg("jwt secret not configured, auth endpoints disabled")
	}

	var accounts api.AccountStore
	if db != nil {
		accounts = db
	}
	router := api.NewRouter(cfg, store, hub, coingecko, taostats, jwtManager, accounts)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		// No blanket write timeout: websocket sessions outlive any sane
		// value and manage their own deadlines.
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(supervisor.NewHubService(hub))
	for _, loop := range loops {
		tree.AddMessagingService(loop)
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.Timeout))

	logging.Info().Int("refresh_loops", len(loops)).Msg("supervision tree starting")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervision tree: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
		}
	}

	logging.Info().Msg("shutdown complete")
	return nil
}

// buildRefreshLoops creates one loop per live channel with its configured
// cadence. Cache TTLs are twice the cadence so the read path keeps hitting
// between refreshes and briefly through an upstream outage.
func buildRefreshLoops(cfg *config.Config, store *cache.Store, hub *ws.Hub, coingecko *upstream.CoinGecko, taostats *upstream.Taostats) ([]*refresh.Loop, error) {
	specs := []refresh.Options{
		{
			Channel:  "price",
			Interval: cfg.Refresh.PriceInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return coingecko.TAOPrice(ctx)
			},
		},
		{
			Channel:  "subnets",
			Interval: cfg.Refresh.SubnetsInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return taostats.Subnets(ctx)
			},
		},
		{
			Channel:  "validators",
			Interval: cfg.Refresh.ValidatorsInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return taostats.Validators(ctx)
			},
		},
	}

	loops := make([]*refresh.Loop, 0, len(specs))
	for _, spec := range specs {
		spec.Store = store
		spec.Hub = hub
		spec.MaxBackoff = cfg.Refresh.MaxBackoff
		loop, err := refresh.NewLoop(spec)
		if err != nil {
			return nil, err
		}
		loops = append(loops, loop)
	}
	return loops, nil
}
