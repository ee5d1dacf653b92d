// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package classify derives dashboard health signals from work item data:
// the farol (traffic light) status from free-text status fields, the
// overdue / near-deadline partitioning of target dates, and SLA bucketing
// of resolution times. Every function here is total: any input maps to a
// defined result, never a panic.
package classify

import (
	"strings"
	"time"

	"github.com/farolhq/farol/internal/models"
)

// farolKeywords maps case-insensitive substrings to a status. Critical
// markers are checked first so "problema crítico" never matches the
// plain "problema" entries.
var farolKeywords = []struct {
	substrings []string
	status     models.FarolStatus
}{
	{[]string{"problema crítico", "problema critico", "crítico", "critico", "vermelho", "red"}, models.FarolProblemaCritico},
	{[]string{"com problema", "amarelo", "yellow"}, models.FarolComProblema},
	{[]string{"sem problema", "verde", "green"}, models.FarolSemProblema},
}

// Farol classifies a free-text health field into a farol status. Empty or
// unrecognized values yield Indefinido. Idempotent: classifying a value
// that already spells a status keyword returns the same status. Hyphens
// fold to spaces so the wire spellings ("sem-problema") classify the same
// as the human ones.
func Farol(raw string) models.FarolStatus {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = strings.ReplaceAll(text, "-", " ")
	if text == "" {
		return models.FarolIndefinido
	}
	for _, entry := range farolKeywords {
		for _, sub := range entry.substrings {
			if strings.Contains(text, sub) {
				return entry.status
			}
		}
	}
	return models.FarolIndefinido
}

// dateOnly truncates an instant to its calendar date. Date-only values
// are stored as midnight UTC and keep their UTC date; instants with a
// time component take the date in the display location.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	utc := t.UTC()
	if utc.Hour() == 0 && utc.Minute() == 0 && utc.Second() == 0 {
		return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Overdue reports whether a target date lies strictly before today.
// Records without a target date are never overdue.
func Overdue(target *time.Time, now time.Time, loc *time.Location) bool {
	if target == nil {
		return false
	}
	return dateOnly(*target, loc).Before(dateOnly(now, loc))
}

// NearDeadline reports whether a target date falls within the forward
// window from today, today included. Records without a target date are
// excluded.
func NearDeadline(target *time.Time, now time.Time, loc *time.Location, windowDays int) bool {
	if target == nil || windowDays <= 0 {
		return false
	}
	day := dateOnly(*target, loc)
	today := dateOnly(now, loc)
	limit := today.AddDate(0, 0, windowDays)
	return !day.Before(today) && !day.After(limit)
}

// closedStates are the work item states counted as closed for totals.
var closedStates = map[string]bool{
	"closed":    true,
	"done":      true,
	"removed":   true,
	"fechado":   true,
	"concluído": true,
	"concluido": true,
}

// IsClosedState reports whether a work item state counts as closed.
func IsClosedState(state string) bool {
	return closedStates[strings.ToLower(strings.TrimSpace(state))]
}

// SLABucket is the outcome of SLA classification for one record.
type SLABucket int

const (
	// SLAExcluded marks records with no usable resolution time or an
	// unknown priority.
	SLAExcluded SLABucket = iota
	// SLAWithin marks resolutions at or under the priority's threshold.
	SLAWithin
	// SLAOut marks resolutions over the threshold.
	SLAOut
)

// slaThresholdMinutes gives the per-priority resolution ceiling.
var slaThresholdMinutes = map[int]float64{
	1: 4320,
	2: 4320,
	3: 1440,
	4: 360,
	5: 360,
}

// SLA buckets a resolution time against the priority's threshold. The
// boundary is inclusive on the within side. Missing, zero or negative
// resolution times and unknown priorities are excluded.
func SLA(priority int, resolutionMinutes float64) SLABucket {
	threshold, ok := slaThresholdMinutes[priority]
	if !ok || resolutionMinutes <= 0 {
		return SLAExcluded
	}
	if resolutionMinutes <= threshold {
		return SLAWithin
	}
	return SLAOut
}
