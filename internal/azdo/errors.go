// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package azdo

import (
	"fmt"
	"time"
)

// AuthError indicates the credential was rejected by Azure DevOps: an HTTP
// 401, or the 302 redirect to the sign-in page the service answers with
// when a PAT has expired. Never retried; surfaced immediately to the
// top-level caller.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("azure devops rejected credentials (status %d)", e.Status)
}

// RateLimitError indicates a chunk was still rate limited (HTTP 429) after
// the single fixed-backoff retry.
type RateLimitError struct {
	// ChunkRange identifies the offending chunk by its ID range.
	ChunkRange string
	// Attempts is the total number of attempts made for the chunk.
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("azure devops rate limit persisted after %d attempts (%s)", e.Attempts, e.ChunkRange)
}

// ServiceError covers every other remote failure: non-2xx statuses,
// malformed response bodies, and transport errors. Op names the failing
// call and Context carries enough detail to identify the failing query or
// chunk.
type ServiceError struct {
	Status  int    // 0 for transport/decode failures
	Op      string // "wiql", "workitems"
	Context string // truncated query text or chunk ID range
	Detail  string
}

func (e *ServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("azure devops %s failed with status %d (%s): %s", e.Op, e.Status, e.Context, e.Detail)
	}
	return fmt.Sprintf("azure devops %s failed (%s): %s", e.Op, e.Context, e.Detail)
}

// errRateLimited is the internal marker for a single HTTP 429 response.
// The hydrator's per-chunk retry wrapper consumes it; it never escapes the
// package (a persisting 429 becomes RateLimitError, and the query executor
// converts it to ServiceError since queries are never retried).
type errRateLimited struct {
	retryAfter time.Duration // from the Retry-After header, 0 if absent
}

func (e *errRateLimited) Error() string {
	return "azure devops rate limited (HTTP 429)"
}

// errClass maps an error to the metrics label for farol_api_errors_total.
func errClass(err error) string {
	switch err.(type) {
	case *AuthError:
		return "auth"
	case *errRateLimited, *RateLimitError:
		return "rate_limit"
	default:
		return "service"
	}
}
