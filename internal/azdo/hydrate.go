// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

/*
hydrate.go - Batch hydration of work item references

The WIQL endpoint returns IDs only; this file turns those IDs into full
records via the batch work items endpoint. Three constraints shape it:

  - The endpoint accepts at most 200 IDs per call, so the ID list is
    split into fixed-size chunks.
  - Consecutive chunk requests are paced by a fixed delay to stay under
    the service's resource limits.
  - A chunk answered with HTTP 429 is retried exactly once after a fixed
    backoff (or the server's Retry-After, when longer). A second 429
    aborts the run.

IDs the service silently omits from a chunk response are collected and
reported alongside the partial result rather than failing the run.
*/
package azdo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/metrics"
	"github.com/farolhq/farol/internal/models"
)

// HydrateMode selects between the two mutually exclusive shapes of a
// batch request: a full expansion with relations, or a narrow field
// projection. The two cannot be combined in a single call.
type HydrateMode int

const (
	// ExpandRelations requests every field plus the relations array.
	ExpandRelations HydrateMode = iota
	// SelectFields requests only a named set of fields, no relations.
	SelectFields
)

// SummaryFields is the field projection used when hydrating related items
// for display: just enough to render a link.
var SummaryFields = []string{
	"System.Id",
	"System.Title",
	"System.WorkItemType",
	"System.State",
}

// HydrateOptions controls a hydration pass.
type HydrateOptions struct {
	Mode HydrateMode
	// Fields is the projection for SelectFields mode. Ignored under
	// ExpandRelations.
	Fields []string
}

// HydrateResult is the outcome of a hydration pass. Records preserves the
// order of the requested IDs. Missing lists requested IDs absent from the
// service's responses, ascending.
type HydrateResult struct {
	Records []models.RawRecord
	Missing []int
}

type batchResponse struct {
	Count int                `json:"count"`
	Value []models.RawRecord `json:"value"`
}

// Hydrate fetches full records for the given references, chunked to the
// configured batch ceiling and paced between chunks. Order of the input
// references is preserved in the result.
func (c *Client) Hydrate(ctx context.Context, refs []models.RecordReference, opts HydrateOptions) (*HydrateResult, error) {
	ids := make([]int, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return c.HydrateIDs(ctx, ids, opts)
}

// HydrateIDs is Hydrate for callers that already hold plain IDs, such as
// the relation resolver.
func (c *Client) HydrateIDs(ctx context.Context, ids []int, opts HydrateOptions) (*HydrateResult, error) {
	if len(ids) == 0 {
		return &HydrateResult{Records: []models.RawRecord{}}, nil
	}

	chunks := chunkIDs(ids, c.maxBatch)
	byID := make(map[int]models.RawRecord, len(ids))

	for _, chunk := range chunks {
		// The limiter enforces the fixed delay between consecutive
		// chunks. The first Wait drains the full bucket immediately, so
		// no delay precedes the first chunk or follows the last.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		records, err := c.fetchChunk(ctx, chunk, opts)
		if err != nil {
			return nil, err
		}
		metrics.BatchesIssued.Inc()
		metrics.BatchSize.Observe(float64(len(chunk)))
		for _, rec := range records {
			byID[rec.ID] = rec
		}
	}

	result := &HydrateResult{Records: make([]models.RawRecord, 0, len(ids))}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if rec, ok := byID[id]; ok {
			result.Records = append(result.Records, rec)
		} else {
			result.Missing = append(result.Missing, id)
		}
	}

	if len(result.Missing) > 0 {
		sort.Ints(result.Missing)
		metrics.HydrationMissing.Add(float64(len(result.Missing)))
		logging.Warn().
			Ints("missing_ids", result.Missing).
			Int("requested", len(ids)).
			Int("hydrated", len(result.Records)).
			Msg("Some work items were not returned by the batch endpoint")
	}

	return result, nil
}

// fetchChunk requests one chunk, retrying exactly once on HTTP 429.
func (c *Client) fetchChunk(ctx context.Context, chunk []int, opts HydrateOptions) ([]models.RawRecord, error) {
	chunkRange := fmt.Sprintf("ids %d..%d", chunk[0], chunk[len(chunk)-1])

	records, err := c.fetchChunkOnce(ctx, chunk, opts, chunkRange)
	var rl *errRateLimited
	if !errors.As(err, &rl) {
		return records, err
	}

	backoff := c.rateLimitBackoff
	if rl.retryAfter > backoff {
		backoff = rl.retryAfter
	}
	metrics.RateLimitRetries.Inc()
	logging.Warn().
		Str("chunk", chunkRange).
		Dur("backoff", backoff).
		Msg("Rate limited by Azure DevOps, retrying chunk once")

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	records, err = c.fetchChunkOnce(ctx, chunk, opts, chunkRange)
	if errors.As(err, &rl) {
		return nil, &RateLimitError{ChunkRange: chunkRange, Attempts: 2}
	}
	return records, err
}

func (c *Client) fetchChunkOnce(ctx context.Context, chunk []int, opts HydrateOptions, chunkRange string) ([]models.RawRecord, error) {
	raw, err := c.do(ctx, http.MethodGet, c.batchURL(chunk, opts), nil, "workitems", chunkRange)
	if err != nil {
		return nil, err
	}

	var parsed batchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ServiceError{Op: "workitems", Context: chunkRange, Detail: "decode response: " + err.Error()}
	}
	return parsed.Value, nil
}

// batchURL builds the batch endpoint URL for one chunk. ExpandRelations and
// SelectFields are mutually exclusive by construction: the mode picks which
// query parameter is emitted.
func (c *Client) batchURL(chunk []int, opts HydrateOptions) string {
	idStrs := make([]string, len(chunk))
	for i, id := range chunk {
		idStrs[i] = strconv.Itoa(id)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(idStrs, ","))
	params.Set("api-version", c.apiVersion)
	switch opts.Mode {
	case SelectFields:
		fields := opts.Fields
		if len(fields) == 0 {
			fields = SummaryFields
		}
		params.Set("fields", strings.Join(fields, ","))
	default:
		params.Set("$expand", "all")
	}

	return fmt.Sprintf("%s/%s/_apis/wit/workitems?%s",
		c.orgURL, url.PathEscape(c.project), params.Encode())
}

// chunkIDs splits ids into consecutive chunks of at most size elements.
func chunkIDs(ids []int, size int) [][]int {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
