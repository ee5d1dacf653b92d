// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package dashboard

import (
	"context"
	"time"

	"github.com/farolhq/farol/internal/logging"
)

// Refresher is a supervised background service that recomputes the
// unfiltered consolidated payload on a fixed interval, so dashboard users
// rarely hit a cold cache. It only warms the default view; filtered views
// are computed on demand.
type Refresher struct {
	svc      *Service
	interval time.Duration
}

// NewRefresher creates the cache-warming service. The interval should be
// shorter than the cache TTL or the warm cache will still expire between
// runs.
func NewRefresher(svc *Service, interval time.Duration) *Refresher {
	return &Refresher{svc: svc, interval: interval}
}

// Serve implements suture.Service. It refreshes immediately on start and
// then on every tick until the context is cancelled.
func (r *Refresher) Serve(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if _, err := r.svc.Consolidated(ctx, Options{ForceRefresh: true}); err != nil {
		logging.Error().Err(err).Msg("Background dashboard refresh failed")
	}
}

func (r *Refresher) String() string { return "dashboard-refresh" }
