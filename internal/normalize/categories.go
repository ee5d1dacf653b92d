// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package normalize

import (
	"strings"

	"github.com/farolhq/farol/internal/models"
)

// excludedKeys are internal/technical markers never shown on a dashboard.
var excludedKeys = map[string]bool{
	"System.Rev":                      true,
	"System.Watermark":                true,
	"System.AuthorizedAs":             true,
	"System.AuthorizedDate":           true,
	"System.RevisedDate":              true,
	"System.AreaId":                   true,
	"System.IterationId":              true,
	"System.NodeName":                 true,
	"System.PersonId":                 true,
	"System.CommentCount":             true,
	"System.Parent":                   true,
	"Microsoft.VSTS.Common.StackRank": true,
}

// auditKeySubstrings flag lifecycle/audit fields regardless of namespace.
var auditKeySubstrings = []string{
	"createdby", "createddate",
	"changedby", "changeddate",
	"activatedby", "activateddate",
	"closedby", "closeddate",
	"resolvedby", "resolveddate",
	"statechangedate",
}

// excluded reports whether a raw field key is an internal marker.
func excluded(key string) bool {
	return excludedKeys[key]
}

// isDuplicate reports whether a raw field is a technical duplicate of
// another already-categorized field. Board extension fields (WEF_<guid>)
// mirror System.BoardColumn; area/iteration level fields mirror the full
// path fields.
func isDuplicate(key string) bool {
	switch {
	case strings.HasPrefix(key, "WEF_"):
		return true
	case strings.HasPrefix(key, "System.AreaLevel"),
		strings.HasPrefix(key, "System.IterationLevel"):
		return true
	case strings.HasPrefix(key, "System.ExtensionMarker"):
		return true
	}
	return false
}

// categoryFor assigns a raw field key to exactly one display category.
func categoryFor(key string) models.FieldCategory {
	lower := strings.ToLower(key)
	for _, sub := range auditKeySubstrings {
		if strings.Contains(lower, sub) {
			return models.CategoryAudit
		}
	}

	switch {
	case strings.HasPrefix(key, "Custom."):
		return models.CategoryCustom
	case strings.HasPrefix(key, "Microsoft.VSTS.Scheduling."):
		return models.CategoryScheduling
	case strings.HasPrefix(key, "Microsoft.VSTS."):
		return models.CategoryPlatformCommon
	case key == "System.AreaPath", key == "System.IterationPath", key == "System.TeamProject":
		return models.CategoryOrganizational
	case key == "System.BoardColumn", key == "System.BoardColumnDone", key == "System.BoardLane":
		return models.CategoryBoard
	}
	return models.CategoryIdentification
}

// labelByKey converts internal field keys to dashboard display labels.
// Keys without an entry fall back to their leaf segment.
var labelByKey = map[string]string{
	"System.Title":         "Título",
	"System.State":         "Estado",
	"System.WorkItemType":  "Tipo",
	"System.Reason":        "Motivo",
	"System.Tags":          "Tags",
	"System.Description":   "Descrição",
	"System.AssignedTo":    "Responsável",
	"System.CreatedBy":     "Criado por",
	"System.CreatedDate":   "Criado em",
	"System.ChangedBy":     "Alterado por",
	"System.ChangedDate":   "Alterado em",
	"System.AreaPath":      "Área",
	"System.IterationPath": "Iteração",
	"System.TeamProject":   "Projeto",
	"System.BoardColumn":   "Coluna do quadro",

	"Microsoft.VSTS.Common.Priority":           "Prioridade",
	"Microsoft.VSTS.Common.StateChangeDate":    "Estado alterado em",
	"Microsoft.VSTS.Common.ClosedDate":         "Fechado em",
	"Microsoft.VSTS.Common.ClosedBy":           "Fechado por",
	"Microsoft.VSTS.Common.AcceptanceCriteria": "Critérios de aceite",
	"Microsoft.VSTS.Scheduling.StartDate":      "Data de início",
	"Microsoft.VSTS.Scheduling.FinishDate":     "Data de término",
	"Microsoft.VSTS.Scheduling.TargetDate":     "Data alvo",
	"Microsoft.VSTS.Scheduling.DueDate":        "Data limite",

	"Custom.Cliente":     "Cliente",
	"Custom.PMO":         "PMO",
	"Custom.Farol":       "Farol",
	"Custom.Responsavel": "Responsável técnico",
}

// labelFor resolves the display label for a raw field key.
func labelFor(key string) string {
	if label, ok := labelByKey[key]; ok {
		return label
	}
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}
