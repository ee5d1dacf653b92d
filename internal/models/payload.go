// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package models

import "time"

// Totals summarizes the consolidated record counts. Under no active filter
// Total >= Open + len(Lists.Closed) must hold; a violation indicates a
// hydration or pagination bug and is logged by the dashboard service rather
// than silently corrected.
type Totals struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Overdue      int `json:"overdue"`
	NearDeadline int `json:"nearDeadline"`
}

// Lists carries the partitioned record lists of the consolidated payload.
type Lists struct {
	Open         []NormalizedRecord `json:"open"`
	Closed       []NormalizedRecord `json:"closed"`
	NearDeadline []NormalizedRecord `json:"nearDeadline"`
}

// ClientSummary aggregates record counts per client for the dashboard's
// client breakdown chart.
type ClientSummary struct {
	Name   string `json:"name"`
	Total  int    `json:"total"`
	Active int    `json:"active"`
}

// SLASummary buckets closed records by resolution time (activated to
// resolved) against their priority's threshold. Records missing either
// timestamp or carrying an unknown priority count as excluded.
type SLASummary struct {
	Within   int `json:"within"`
	Out      int `json:"out"`
	Excluded int `json:"excluded"`
}

// CacheInfo reports whether the payload was served from cache and how old
// the cached copy is.
type CacheInfo struct {
	Hit        bool `json:"hit"`
	AgeSeconds int  `json:"ageSeconds"`
}

// ConsolidatedPayload is the single artifact produced by a synchronization
// run and consumed by dashboard clients. It is either computed fresh or
// served from the short-TTL cache.
type ConsolidatedPayload struct {
	Totals           Totals          `json:"totals"`
	Lists            Lists           `json:"lists"`
	FeaturesByStatus map[string]int  `json:"featuresByStatus"`
	ClientsSummary   []ClientSummary `json:"clientsSummary"`
	SLA              SLASummary      `json:"sla"`
	Cache            CacheInfo       `json:"cache"`
	RunID            string          `json:"runId"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}
