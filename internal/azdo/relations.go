// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

/*
relations.go - Classification of work item relation links

Relations arrive as typed links ("System.LinkTypes.Hierarchy-Reverse" and
friends) whose targets are URLs, not IDs. Classification is by substring
on the lowercased relation type, which tolerates the vendor renaming link
type namespaces between API versions. Target IDs are parsed from the last
path segment of the URL; unparseable targets are skipped rather than
failing the record.
*/
package azdo

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/models"
)

// ResolveRelations classifies a record's relation links into parents,
// children, attachments and generic related links. ID slices come back
// deduplicated and ascending.
func ResolveRelations(rec *models.RawRecord) models.RelationSet {
	set := models.RelationSet{}
	parents := map[int]bool{}
	children := map[int]bool{}

	for _, link := range rec.Relations {
		rel := strings.ToLower(link.Rel)
		switch {
		// Hierarchy checks must precede the generic linktypes check:
		// "system.linktypes.hierarchy-reverse" contains both substrings.
		case strings.Contains(rel, "hierarchy") && strings.Contains(rel, "reverse"):
			if id, ok := ParseTargetID(link.URL); ok {
				parents[id] = true
			} else {
				logging.Debug().Int("work_item", rec.ID).Str("url", link.URL).Msg("Skipping parent link with unparseable target")
			}
		case strings.Contains(rel, "hierarchy") && strings.Contains(rel, "forward"):
			if id, ok := ParseTargetID(link.URL); ok {
				children[id] = true
			} else {
				logging.Debug().Int("work_item", rec.ID).Str("url", link.URL).Msg("Skipping child link with unparseable target")
			}
		case strings.Contains(rel, "attachedfile"):
			set.Attachments = append(set.Attachments, link)
		case strings.Contains(rel, "linktypes"):
			set.Links = append(set.Links, link)
		}
	}

	set.ParentIDs = sortedKeys(parents)
	set.ChildIDs = sortedKeys(children)
	return set
}

// ParseTargetID extracts the work item ID from a relation target URL. It
// takes the last path segment, ignoring any query string or fragment:
// "https://host/_apis/wit/workItems/123?api-version=7.0" yields 123.
func ParseTargetID(rawURL string) (int, bool) {
	s := rawURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RelationGraph is the hydrated view of one record's relations, ready for
// display.
type RelationGraph struct {
	Parents     []models.WorkItemSummary `json:"parents"`
	Children    []models.WorkItemSummary `json:"children"`
	Links       []models.RelationLink    `json:"links"`
	Attachments []models.RelationLink    `json:"attachments"`
}

// ResolveAndHydrate classifies a record's relations and fetches display
// summaries for the parent and child work items in a single narrow batch.
func (c *Client) ResolveAndHydrate(ctx context.Context, rec *models.RawRecord) (*RelationGraph, error) {
	set := ResolveRelations(rec)

	all := make([]int, 0, len(set.ParentIDs)+len(set.ChildIDs))
	all = append(all, set.ParentIDs...)
	all = append(all, set.ChildIDs...)

	summaries, err := c.HydrateSummaries(ctx, all)
	if err != nil {
		return nil, err
	}

	graph := &RelationGraph{
		Parents:     make([]models.WorkItemSummary, 0, len(set.ParentIDs)),
		Children:    make([]models.WorkItemSummary, 0, len(set.ChildIDs)),
		Links:       set.Links,
		Attachments: set.Attachments,
	}
	for _, id := range set.ParentIDs {
		if s, ok := summaries[id]; ok {
			graph.Parents = append(graph.Parents, s)
		}
	}
	for _, id := range set.ChildIDs {
		if s, ok := summaries[id]; ok {
			graph.Children = append(graph.Children, s)
		}
	}
	return graph, nil
}

// HydrateSummaries fetches display summaries for the given IDs using the
// narrow field projection.
func (c *Client) HydrateSummaries(ctx context.Context, ids []int) (map[int]models.WorkItemSummary, error) {
	out := make(map[int]models.WorkItemSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	result, err := c.HydrateIDs(ctx, ids, HydrateOptions{Mode: SelectFields, Fields: SummaryFields})
	if err != nil {
		return nil, err
	}

	for _, rec := range result.Records {
		out[rec.ID] = models.WorkItemSummary{
			ID:    rec.ID,
			Title: rec.StringField("System.Title"),
			Type:  rec.StringField("System.WorkItemType"),
			State: rec.StringField("System.State"),
		}
	}
	return out, nil
}

func sortedKeys(m map[int]bool) []int {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
