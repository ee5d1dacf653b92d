// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Command farol runs the work item synchronization pipeline and serves
// the consolidated dashboard over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/farolhq/farol/internal/api"
	"github.com/farolhq/farol/internal/azdo"
	"github.com/farolhq/farol/internal/cache"
	"github.com/farolhq/farol/internal/config"
	"github.com/farolhq/farol/internal/dashboard"
	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger applies.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("org_url", cfg.AzureDevOps.OrgURL).
		Str("project", cfg.AzureDevOps.Project).
		Str("work_item_type", cfg.Sync.WorkItemType).
		Dur("cache_ttl", cfg.Sync.CacheTTL).
		Msg("Starting Farol")

	client := azdo.New(&cfg.AzureDevOps, &cfg.Sync)
	payloadCache := cache.New(cfg.Sync.CacheTTL)
	svc := dashboard.NewService(client, payloadCache, &cfg.Sync)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandler(svc), &cfg.Server),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.Timeout))

	if cfg.Sync.RefreshInterval > 0 {
		tree.AddSyncService(dashboard.NewRefresher(svc, cfg.Sync.RefreshInterval))
		logging.Info().
			Dur("interval", cfg.Sync.RefreshInterval).
			Msg("Background dashboard refresh enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", server.Addr).Msg("Farol is serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor stopped with error")
			os.Exit(1)
		}
	}

	logging.Info().Msg("Farol stopped")
}
