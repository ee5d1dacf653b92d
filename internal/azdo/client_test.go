// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package azdo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farolhq/farol/internal/config"
)

// newTestClient builds a client against a test server with fast pacing so
// multi-chunk tests do not sleep.
func newTestClient(t *testing.T, serverURL string, maxBatch int) *Client {
	t.Helper()
	azCfg := &config.AzureDevOpsConfig{
		OrgURL:     serverURL,
		Project:    "Portfolio",
		PAT:        "test-pat",
		APIVersion: "7.0",
		MaxBatch:   maxBatch,
		Timeout:    5 * time.Second,
	}
	syncCfg := &config.SyncConfig{
		BatchDelay:       time.Millisecond,
		RateLimitBackoff: 5 * time.Millisecond,
	}
	return New(azCfg, syncCfg)
}

func TestDoSendsPATAsBasicAuth(t *testing.T) {
	t.Parallel()

	var gotUser, gotPass string
	var gotOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 200)
	if _, err := client.do(context.Background(), http.MethodGet, srv.URL, nil, "workitems", "test"); err != nil {
		t.Fatalf("do() error = %v", err)
	}

	if !gotOK {
		t.Fatal("request carried no basic auth header")
	}
	if gotUser != "" || gotPass != "test-pat" {
		t.Errorf("basic auth = (%q, %q), want empty user and the PAT", gotUser, gotPass)
	}
}

func TestDoStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(t *testing.T, err error)
	}{
		{
			name:   "401 becomes auth error",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %v, want *AuthError", err)
				}
				if authErr.Status != http.StatusUnauthorized {
					t.Errorf("AuthError.Status = %d, want 401", authErr.Status)
				}
			},
		},
		{
			name:    "302 to sign-in page becomes auth error",
			status:  http.StatusFound,
			headers: map[string]string{"Location": "https://spsprodweu.vssps.visualstudio.com/_signin"},
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %v, want *AuthError", err)
				}
			},
		},
		{
			name:    "429 becomes rate limit marker with Retry-After",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				var rl *errRateLimited
				if !errors.As(err, &rl) {
					t.Fatalf("error = %v, want *errRateLimited", err)
				}
				if rl.retryAfter != 7*time.Second {
					t.Errorf("retryAfter = %v, want 7s", rl.retryAfter)
				}
			},
		},
		{
			name:   "500 becomes service error with status",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var svcErr *ServiceError
				if !errors.As(err, &svcErr) {
					t.Fatalf("error = %v, want *ServiceError", err)
				}
				if svcErr.Status != http.StatusInternalServerError {
					t.Errorf("ServiceError.Status = %d, want 500", svcErr.Status)
				}
				if svcErr.Op != "workitems" {
					t.Errorf("ServiceError.Op = %q, want workitems", svcErr.Op)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, 200)
			_, err := client.do(context.Background(), http.MethodGet, srv.URL, nil, "workitems", "test")
			if err == nil {
				t.Fatal("do() returned nil error")
			}
			tt.check(t, err)
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	azCfg := &config.AzureDevOpsConfig{
		OrgURL:          srv.URL,
		Project:         "Portfolio",
		PAT:             "test-pat",
		APIVersion:      "7.0",
		MaxBatch:        200,
		Timeout:         5 * time.Second,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
	}
	syncCfg := &config.SyncConfig{BatchDelay: time.Millisecond, RateLimitBackoff: time.Millisecond}
	client := New(azCfg, syncCfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.do(ctx, http.MethodGet, srv.URL, nil, "workitems", "test"); err == nil {
			t.Fatalf("call %d returned nil error", i)
		}
	}

	// Third call must be rejected by the open breaker without reaching
	// the server.
	_, err := client.do(ctx, http.MethodGet, srv.URL, nil, "workitems", "test")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 (breaker should short-circuit)", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"10", 10 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 120); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := ""
	for i := 0; i < 50; i++ {
		long += "abc"
	}
	got := truncate(long, 120)
	if len([]rune(got)) != 123 { // 120 + "..."
		t.Errorf("truncate kept %d runes, want 123", len([]rune(got)))
	}
}
