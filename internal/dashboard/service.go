// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

/*
Package dashboard orchestrates the synchronization pipeline and assembles
the consolidated payload: WIQL query, batch hydration with relations,
field normalization, farol classification, deadline partitioning, and
per-client aggregation, all behind a short-TTL cache.

One logical run is strictly sequential: one request in flight at a time,
paced by the hydrator. Concurrent callers share results through the cache;
concurrent misses for the same key may both compute and both write (last
writer wins), which is accepted because recomputation is idempotent and
side-effect free.
*/
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/farolhq/farol/internal/azdo"
	"github.com/farolhq/farol/internal/cache"
	"github.com/farolhq/farol/internal/classify"
	"github.com/farolhq/farol/internal/config"
	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/metrics"
	"github.com/farolhq/farol/internal/models"
	"github.com/farolhq/farol/internal/normalize"
)

// ErrNotFound marks a work item the upstream service does not know.
var ErrNotFound = errors.New("work item not found")

// Syncer is the slice of the Azure DevOps client the dashboard needs.
type Syncer interface {
	ExecuteQuery(ctx context.Context, query string) ([]models.RecordReference, error)
	Hydrate(ctx context.Context, refs []models.RecordReference, opts azdo.HydrateOptions) (*azdo.HydrateResult, error)
	ResolveAndHydrate(ctx context.Context, rec *models.RawRecord) (*azdo.RelationGraph, error)
}

// Filter narrows the consolidated payload to matching records. Empty
// fields match everything. Filters are applied to the already-hydrated
// lists; they never trigger additional remote calls.
type Filter struct {
	Client      string
	State       string
	Responsible string
}

func (f Filter) active() bool {
	return f.Client != "" || f.State != "" || f.Responsible != ""
}

func (f Filter) matches(rec *models.NormalizedRecord) bool {
	return matchField(f.Client, rec.Client) &&
		matchField(f.State, rec.State) &&
		matchField(f.Responsible, rec.Responsible)
}

func matchField(want, got string) bool {
	return want == "" || strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
}

// Options controls one consolidation request.
type Options struct {
	// ForceRefresh bypasses the cache and recomputes.
	ForceRefresh bool
	Filter       Filter
	// WindowDays overrides the configured near-deadline window when
	// greater than zero.
	WindowDays int
}

// Service runs the pipeline and serves consolidated payloads.
type Service struct {
	client      Syncer
	cache       *cache.Cache
	cfg         *config.SyncConfig
	norm        *normalize.Normalizer
	loc         *time.Location
	snapshotKey string

	now func() time.Time
}

// NewService wires the pipeline stages together.
func NewService(client Syncer, c *cache.Cache, cfg *config.SyncConfig) *Service {
	loc := cfg.DisplayLocation()
	return &Service{
		client:      client,
		cache:       c,
		cfg:         cfg,
		norm:        normalize.New(loc),
		loc:         loc,
		snapshotKey: cache.GenerateKey("dashboard", map[string]any{"work_item_type": cfg.WorkItemType}),
		now:         time.Now,
	}
}

// snapshot is one sync run's hydrated data. Every view, filtered or not,
// derives from the same snapshot until the cache entry expires.
type snapshot struct {
	records    []models.NormalizedRecord
	queryTotal int
	runID      string
	fetchedAt  time.Time
}

// BuildWIQL returns the query selecting every tracked work item of the
// given type that has not been removed, newest change first.
func BuildWIQL(workItemType string) string {
	escaped := strings.ReplaceAll(workItemType, "'", "''")
	return fmt.Sprintf(
		"SELECT [System.Id] FROM WorkItems "+
			"WHERE [System.TeamProject] = @project "+
			"AND [System.WorkItemType] = '%s' "+
			"AND [System.State] <> 'Removed' "+
			"ORDER BY [System.ChangedDate] DESC", escaped)
}

// Consolidated returns the consolidated payload for the given options,
// deriving it from the cached snapshot when a fresh one exists. Filters
// and window overrides are applied in memory; only a cold or forced
// snapshot talks to the remote service. The returned payload is built per
// call, but its records share field maps with other views and must be
// treated as read-only.
func (s *Service) Consolidated(ctx context.Context, opts Options) (*models.ConsolidatedPayload, error) {
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = s.cfg.NearDeadlineDays
	}

	snap, age, hit, err := s.currentSnapshot(ctx, opts.ForceRefresh)
	if err != nil {
		return nil, err
	}

	payload := s.buildPayload(snap, opts.Filter, windowDays)
	payload.Cache = models.CacheInfo{Hit: hit, AgeSeconds: int(age.Seconds())}
	return payload, nil
}

// currentSnapshot returns the hydrated snapshot, computing one when the
// cache is cold or a refresh is forced.
func (s *Service) currentSnapshot(ctx context.Context, force bool) (*snapshot, time.Duration, bool, error) {
	if force {
		snap, err := s.computeSnapshot(ctx)
		if err != nil {
			return nil, 0, false, err
		}
		s.cache.Set(s.snapshotKey, snap)
		metrics.CacheMisses.Inc()
		return snap, 0, false, nil
	}

	value, age, hit, err := s.cache.GetOrCompute(s.snapshotKey, s.cfg.CacheTTL, func() (any, error) {
		return s.computeSnapshot(ctx)
	})
	if err != nil {
		return nil, 0, false, err
	}
	if hit {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}

	snap, ok := value.(*snapshot)
	if !ok {
		return nil, 0, false, fmt.Errorf("unexpected cache entry type %T", value)
	}
	return snap, age, hit, nil
}

// computeSnapshot runs the remote half of the pipeline: query, hydrate,
// normalize. Partitioning and aggregation happen per view in buildPayload.
func (s *Service) computeSnapshot(ctx context.Context) (*snapshot, error) {
	started := s.now()

	refs, err := s.client.ExecuteQuery(ctx, BuildWIQL(s.cfg.WorkItemType))
	if err != nil {
		metrics.RecordSyncRun(s.now().Sub(started), err)
		return nil, err
	}

	result, err := s.client.Hydrate(ctx, refs, azdo.HydrateOptions{Mode: azdo.ExpandRelations})
	if err != nil {
		metrics.RecordSyncRun(s.now().Sub(started), err)
		return nil, err
	}

	records := make([]models.NormalizedRecord, 0, len(result.Records))
	for i := range result.Records {
		records = append(records, s.norm.Record(&result.Records[i]))
	}

	snap := &snapshot{
		records:    records,
		queryTotal: len(refs),
		runID:      uuid.NewString(),
		fetchedAt:  s.now(),
	}

	metrics.RecordSyncRun(s.now().Sub(started), nil)
	logging.Info().
		Str("run_id", snap.runID).
		Int("matched", len(refs)).
		Int("hydrated", len(records)).
		Dur("took", s.now().Sub(started)).
		Msg("Synchronization run completed")

	return snap, nil
}

// buildPayload derives one view from a snapshot: filter in memory, then
// partition and aggregate. Never touches the remote service.
func (s *Service) buildPayload(snap *snapshot, filter Filter, windowDays int) *models.ConsolidatedPayload {
	records := snap.records
	if filter.active() {
		filtered := make([]models.NormalizedRecord, 0, len(records))
		for i := range records {
			if filter.matches(&records[i]) {
				filtered = append(filtered, records[i])
			}
		}
		records = filtered
	}

	payload := s.consolidate(records, windowDays)
	payload.RunID = snap.runID
	payload.GeneratedAt = snap.fetchedAt
	if !filter.active() {
		payload.Totals.Total = snap.queryTotal
		s.checkTotals(payload)
	}
	return payload
}

// consolidate partitions and aggregates normalized records into the final
// payload shape.
func (s *Service) consolidate(records []models.NormalizedRecord, windowDays int) *models.ConsolidatedPayload {
	now := s.now()

	payload := &models.ConsolidatedPayload{
		FeaturesByStatus: make(map[string]int),
	}

	clients := make(map[string]*models.ClientSummary)

	for _, rec := range records {
		payload.FeaturesByStatus[rec.State]++

		name := rec.Client
		if name == "" {
			name = "Sem cliente"
		}
		summary, ok := clients[name]
		if !ok {
			summary = &models.ClientSummary{Name: name}
			clients[name] = summary
		}
		summary.Total++

		if classify.IsClosedState(rec.State) {
			payload.Lists.Closed = append(payload.Lists.Closed, rec)
			switch classify.SLA(rec.Priority, resolutionMinutes(rec)) {
			case classify.SLAWithin:
				payload.SLA.Within++
			case classify.SLAOut:
				payload.SLA.Out++
			default:
				payload.SLA.Excluded++
			}
			continue
		}

		summary.Active++
		payload.Lists.Open = append(payload.Lists.Open, rec)
		if classify.Overdue(rec.TargetDate, now, s.loc) {
			payload.Totals.Overdue++
		}
		if classify.NearDeadline(rec.TargetDate, now, s.loc, windowDays) {
			payload.Lists.NearDeadline = append(payload.Lists.NearDeadline, rec)
		}
	}

	payload.Totals.Total = len(records)
	payload.Totals.Open = len(payload.Lists.Open)
	payload.Totals.NearDeadline = len(payload.Lists.NearDeadline)

	names := make([]string, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	sort.Strings(names)
	payload.ClientsSummary = make([]models.ClientSummary, 0, len(names))
	for _, name := range names {
		payload.ClientsSummary = append(payload.ClientsSummary, *clients[name])
	}

	return payload
}

// resolutionMinutes is the activated-to-resolved span of a closed record,
// or 0 when either timestamp is missing (the SLA classifier excludes it).
func resolutionMinutes(rec models.NormalizedRecord) float64 {
	if rec.ActivatedDate == nil || rec.ResolvedDate == nil {
		return 0
	}
	return rec.ResolvedDate.Sub(*rec.ActivatedDate).Minutes()
}

// checkTotals verifies the unfiltered reconciliation invariant. A
// violation points at a hydration or pagination bug and is logged, never
// silently corrected.
func (s *Service) checkTotals(p *models.ConsolidatedPayload) {
	if p.Totals.Total < p.Totals.Open+len(p.Lists.Closed) {
		logging.Warn().
			Str("run_id", p.RunID).
			Int("total", p.Totals.Total).
			Int("open", p.Totals.Open).
			Int("closed", len(p.Lists.Closed)).
			Msg("Consolidated totals do not reconcile")
	}
}

// Relations returns the hydrated relation graph of one work item.
func (s *Service) Relations(ctx context.Context, id int) (*azdo.RelationGraph, error) {
	result, err := s.client.Hydrate(ctx, []models.RecordReference{{ID: id}}, azdo.HydrateOptions{Mode: azdo.ExpandRelations})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("work item %d: %w", id, ErrNotFound)
	}
	return s.client.ResolveAndHydrate(ctx, &result.Records[0])
}
