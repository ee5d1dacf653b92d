// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package azdo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/models"
)

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

// ExecuteQuery runs a WIQL query against the configured project and returns
// the matched record references in server order. The result carries IDs
// only; fields come from a later hydration pass.
//
// A 429 here is not retried: queries are cheap and the caller can re-run
// the whole sync.
func (c *Client) ExecuteQuery(ctx context.Context, query string) ([]models.RecordReference, error) {
	body, err := json.Marshal(wiqlRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal wiql request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/_apis/wit/wiql?api-version=%s",
		c.orgURL, url.PathEscape(c.project), url.QueryEscape(c.apiVersion))

	opContext := truncate(query, maxContextLen)
	raw, err := c.do(ctx, http.MethodPost, reqURL, body, "wiql", opContext)
	if err != nil {
		var rl *errRateLimited
		if errors.As(err, &rl) {
			return nil, &ServiceError{
				Status:  http.StatusTooManyRequests,
				Op:      "wiql",
				Context: opContext,
				Detail:  "rate limited",
			}
		}
		return nil, err
	}

	var parsed wiqlResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ServiceError{Op: "wiql", Context: opContext, Detail: "decode response: " + err.Error()}
	}

	refs := make([]models.RecordReference, 0, len(parsed.WorkItems))
	for _, wi := range parsed.WorkItems {
		refs = append(refs, models.RecordReference{ID: wi.ID})
	}

	logging.Debug().
		Int("matched", len(refs)).
		Msg("WIQL query executed")

	return refs, nil
}
