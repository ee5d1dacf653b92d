// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

/*
client.go - Core Azure DevOps REST client

HTTP communication layer shared by the query executor, the batch hydrator,
and the relation resolver.

Client features:
  - PAT authentication (basic auth with empty user, the Azure DevOps scheme)
  - Circuit breaker protection around every remote call
  - Inter-batch pacing via a token-bucket limiter
  - Typed error taxonomy (AuthError, RateLimitError, ServiceError)
  - Context support for cancellation and timeouts

Rate limiting itself (the single retry of a 429'd chunk) lives in
hydrate.go; this file only surfaces 429 as an internal marker error.
*/
package azdo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/farolhq/farol/internal/config"
	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/metrics"
)

// maxErrorBodySize caps how much of an error response body is kept for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// maxContextLen caps the query text carried inside a ServiceError.
const maxContextLen = 120

// Client is the Azure DevOps REST client used by all pipeline stages.
// Safe for concurrent use; each request creates its own http.Request.
type Client struct {
	orgURL     string
	project    string
	pat        string
	apiVersion string

	maxBatch         int
	rateLimitBackoff time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// New creates an Azure DevOps client from configuration. The sync settings
// supply the pacing delay between hydration chunks and the fixed 429
// backoff.
func New(azCfg *config.AzureDevOpsConfig, syncCfg *config.SyncConfig) *Client {
	c := &Client{
		orgURL:           azCfg.OrgURL,
		project:          azCfg.Project,
		pat:              azCfg.PAT,
		apiVersion:       azCfg.APIVersion,
		maxBatch:         azCfg.MaxBatch,
		rateLimitBackoff: syncCfg.RateLimitBackoff,
		httpClient: &http.Client{
			Timeout: azCfg.Timeout,
			// Azure DevOps answers expired PATs with a redirect to the
			// sign-in page. Surface the 302 instead of following it so
			// it can be classified as an auth failure.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Every(maxDuration(syncCfg.BatchDelay, time.Nanosecond)), 1),
	}

	if azCfg.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "azure-devops",
			Timeout: azCfg.BreakerOpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(azCfg.BreakerFailures)
			},
			// Auth rejections and 429s have their own handling; only
			// service-level failures should trip the breaker.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				var authErr *AuthError
				var rl *errRateLimited
				return errors.As(err, &authErr) || errors.As(err, &rl)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					metrics.BreakerOpen.Set(1)
				} else {
					metrics.BreakerOpen.Set(0)
				}
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// do executes one HTTP call and maps the response onto the error taxonomy.
// op and opContext feed error messages and metrics; they must identify the
// failing query or chunk.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte, op, opContext string) ([]byte, error) {
	call := func() ([]byte, error) {
		return c.doOnce(ctx, method, reqURL, body, op, opContext)
	}

	var raw []byte
	var err error
	if c.breaker != nil {
		raw, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &ServiceError{Op: op, Context: opContext, Detail: "circuit breaker open, call not attempted"}
		}
	} else {
		raw, err = call()
	}

	if err != nil {
		metrics.APIErrors.WithLabelValues(errClass(err)).Inc()
		return nil, err
	}
	return raw, nil
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string, body []byte, op, opContext string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, &ServiceError{Op: op, Context: opContext, Detail: "create request: " + err.Error()}
	}
	// PAT auth: basic auth with an empty user name.
	req.SetBasicAuth("", c.pat)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ServiceError{Op: op, Context: opContext, Detail: "request: " + err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &ServiceError{Op: op, Context: opContext, Detail: "read body: " + readErr.Error()}
		}
		return raw, nil

	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode >= 300 && resp.StatusCode < 400:
		// 302 to the sign-in page is a credential rejection in disguise.
		return nil, &AuthError{Status: resp.StatusCode}

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errRateLimited{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}

	default:
		return nil, &ServiceError{
			Status:  resp.StatusCode,
			Op:      op,
			Context: opContext,
			Detail:  string(readBodyForError(resp.Body)),
		}
	}
}

// parseRetryAfter parses a Retry-After header given in seconds. Returns 0
// on absence or malformed values so the fixed backoff applies.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// readBodyForError reads at most maxErrorBodySize bytes of a response body
// for diagnostics, tolerating read failures.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// truncate shortens s to at most n runes for error context.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
