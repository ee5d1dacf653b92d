// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package models defines the data structures exchanged between the sync
// pipeline stages: raw Azure DevOps work items, their relation links, the
// normalized dashboard view, and the consolidated payload served to clients.
package models

import "time"

// RecordReference is the only artifact that crosses the WIQL query boundary.
// It carries just the work item ID and is consumed immediately by the
// batch hydrator.
type RecordReference struct {
	ID int `json:"id"`
}

// RelationLink is a typed reference from one work item to another, as
// returned by the Azure DevOps relations expansion. Rel is a namespaced
// relation-kind string (for example "System.LinkTypes.Hierarchy-Reverse");
// the target work item ID must be parsed out of URL's trailing path segment.
type RelationLink struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RawRecord is a work item exactly as hydrated from Azure DevOps. Fields is
// an untyped map keyed by dotted namespaced identifiers ("System.Title",
// "Custom.Farol", ...). RawRecord is never mutated after creation; downstream
// stages derive new values from it.
type RawRecord struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev,omitempty"`
	Fields    map[string]any `json:"fields"`
	Relations []RelationLink `json:"relations,omitempty"`
}

// StringField returns the named raw field as a string, or "" when absent or
// not a string. Convenience for the handful of well-known System.* fields.
func (r *RawRecord) StringField(key string) string {
	if v, ok := r.Fields[key].(string); ok {
		return v
	}
	return ""
}

// RelationSet is the hierarchy extracted from a work item's relation links.
// ID slices are sorted ascending. Links and Attachments carry the non-
// hierarchy relations, classified by relation-kind substring.
type RelationSet struct {
	ParentIDs   []int          `json:"parentIds"`
	ChildIDs    []int          `json:"childIds"`
	Links       []RelationLink `json:"links,omitempty"`
	Attachments []RelationLink `json:"attachments,omitempty"`
}

// WorkItemSummary is the small fixed projection used when hydrating resolved
// parents and children. Summary hydration always uses field-selector mode so
// relation graphs are never pulled recursively.
type WorkItemSummary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	State string `json:"state"`
}

// FarolStatus is the three/four-state health indicator derived from the
// free-text farol field.
type FarolStatus string

// Farol status values.
const (
	FarolSemProblema     FarolStatus = "sem-problema"
	FarolComProblema     FarolStatus = "com-problema"
	FarolProblemaCritico FarolStatus = "problema-critico"
	FarolIndefinido      FarolStatus = "indefinido"
)

// FieldCategory is the display bucket a normalized field is assigned to.
// Every raw field that is not an internal/technical marker lands in exactly
// one category (or is dropped as a known duplicate).
type FieldCategory string

// Field display categories.
const (
	CategoryCustom         FieldCategory = "custom"
	CategoryPlatformCommon FieldCategory = "platform-common"
	CategoryScheduling     FieldCategory = "scheduling"
	CategoryOrganizational FieldCategory = "organizational"
	CategoryAudit          FieldCategory = "audit"
	CategoryIdentification FieldCategory = "identification"
	CategoryBoard          FieldCategory = "board"
)

// NormalizedField is one raw field after normalization: display label plus
// human-oriented value. Key keeps the original namespaced identifier for
// traceability.
type NormalizedField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// NormalizedRecord is the derived, immutable dashboard view of a RawRecord.
type NormalizedRecord struct {
	ID            int                                 `json:"id"`
	Title         string                              `json:"title"`
	State         string                              `json:"state"`
	Client        string                              `json:"client"`
	PMO           string                              `json:"pmo"`
	Responsible   string                              `json:"responsible"`
	Farol         FarolStatus                         `json:"farolStatus"`
	Priority      int                                 `json:"priority,omitempty"`
	TargetDate    *time.Time                          `json:"targetDate,omitempty"`
	ActivatedDate *time.Time                          `json:"activatedDate,omitempty"`
	ResolvedDate  *time.Time                          `json:"resolvedDate,omitempty"`
	BoardColumn   string                              `json:"boardColumn,omitempty"`
	Fields        map[FieldCategory][]NormalizedField `json:"fieldsByCategory"`
}
