// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

/*
value.go - Tagged value variants for raw work item fields

Raw fields arrive as a single untyped map. Rather than re-deriving "what
kind of value is this" from key substrings at every call site, each field
is classified once into a closed set of variants (checklist, enum,
identity, date, rich text, plain text) by a static per-key table with a
shape-based fallback for keys the table does not know. The normalizer
then renders each variant deterministically.
*/
package normalize

import (
	"regexp"
	"strings"
)

// Kind is the value variant of a raw field.
type Kind int

const (
	// KindPlainText covers scalars with no special handling.
	KindPlainText Kind = iota
	// KindChecklist is an encoded binary answer ("2 - Sim").
	KindChecklist
	// KindEnum is an encoded enumeration ("1 - Alta").
	KindEnum
	// KindIdentity is an identity object ({displayName, uniqueName}).
	KindIdentity
	// KindDate is an ISO-8601 date or datetime string.
	KindDate
	// KindRichText is HTML-bearing long-form text.
	KindRichText
)

// encodedValue matches the "<n> - <label>" encoding used by both checklist
// and enum fields.
var encodedValue = regexp.MustCompile(`^\d+\s*-\s*`)

// kindByKey is the static classification table for well-known field keys.
// Keys absent from the table fall back to shape-based classification.
var kindByKey = map[string]Kind{
	"System.Title":        KindPlainText,
	"System.State":        KindPlainText,
	"System.WorkItemType": KindPlainText,
	"System.Reason":       KindPlainText,
	"System.Tags":         KindPlainText,
	"System.TeamProject":  KindPlainText,
	"System.AreaPath":     KindPlainText,
	"System.BoardColumn":  KindPlainText,

	"System.AssignedTo":                 KindIdentity,
	"System.CreatedBy":                  KindIdentity,
	"System.ChangedBy":                  KindIdentity,
	"Microsoft.VSTS.Common.ActivatedBy": KindIdentity,
	"Microsoft.VSTS.Common.ClosedBy":    KindIdentity,
	"Microsoft.VSTS.Common.ResolvedBy":  KindIdentity,

	"System.CreatedDate":                    KindDate,
	"System.ChangedDate":                    KindDate,
	"Microsoft.VSTS.Common.ActivatedDate":   KindDate,
	"Microsoft.VSTS.Common.ClosedDate":      KindDate,
	"Microsoft.VSTS.Common.ResolvedDate":    KindDate,
	"Microsoft.VSTS.Common.StateChangeDate": KindDate,
	"Microsoft.VSTS.Scheduling.StartDate":   KindDate,
	"Microsoft.VSTS.Scheduling.FinishDate":  KindDate,
	"Microsoft.VSTS.Scheduling.TargetDate":  KindDate,
	"Microsoft.VSTS.Scheduling.DueDate":     KindDate,

	"System.Description":                       KindRichText,
	"System.History":                           KindRichText,
	"Microsoft.VSTS.Common.AcceptanceCriteria": KindRichText,
	"Microsoft.VSTS.TCM.ReproSteps":            KindRichText,

	"Microsoft.VSTS.Common.Priority": KindPlainText,
}

// checklistAnswers maps encoded checklist labels to their canonical form.
var checklistAnswers = map[string]string{
	"sim":   "Sim",
	"nao":   "Não",
	"não":   "Não",
	"yes":   "Sim",
	"no":    "Não",
	"true":  "Sim",
	"false": "Não",
}

// classifyField determines the value variant for one raw field. The static
// table wins; unknown keys are classified by the shape of key and value.
func classifyField(key string, value any) Kind {
	if kind, ok := kindByKey[key]; ok {
		return kind
	}

	if _, isMap := value.(map[string]any); isMap {
		return KindIdentity
	}

	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "date") || strings.Contains(lower, "data"):
		return KindDate
	case strings.Contains(lower, "description") || strings.Contains(lower, "descricao") ||
		strings.Contains(lower, "criteria") || strings.Contains(lower, "observac"):
		return KindRichText
	}

	if s, ok := value.(string); ok && encodedValue.MatchString(s) {
		label := strings.TrimSpace(encodedValue.ReplaceAllString(s, ""))
		if _, isChecklist := checklistAnswers[strings.ToLower(label)]; isChecklist {
			return KindChecklist
		}
		return KindEnum
	}

	return KindPlainText
}
