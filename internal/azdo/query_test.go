// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package azdo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExecuteQuery(t *testing.T) {
	t.Parallel()

	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"queryType":"flat","workItems":[{"id":7},{"id":12},{"id":3}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 200)
	refs, err := client.ExecuteQuery(context.Background(), "SELECT [System.Id] FROM WorkItems")
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	if !strings.Contains(gotPath, "/Portfolio/_apis/wit/wiql") {
		t.Errorf("request path = %q, want the project wiql endpoint", gotPath)
	}
	if !strings.Contains(gotPath, "api-version=7.0") {
		t.Errorf("request path = %q, missing api-version", gotPath)
	}
	if !strings.Contains(gotBody, `"SELECT [System.Id] FROM WorkItems"`) {
		t.Errorf("request body = %q, missing query text", gotBody)
	}

	// Server order must be preserved.
	wantIDs := []int{7, 12, 3}
	if len(refs) != len(wantIDs) {
		t.Fatalf("got %d refs, want %d", len(refs), len(wantIDs))
	}
	for i, want := range wantIDs {
		if refs[i].ID != want {
			t.Errorf("refs[%d].ID = %d, want %d", i, refs[i].ID, want)
		}
	}
}

func TestExecuteQueryEmptyResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"workItems":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 200)
	refs, err := client.ExecuteQuery(context.Background(), "SELECT [System.Id] FROM WorkItems WHERE [System.Id] = 0")
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("got %d refs, want 0", len(refs))
	}
}

func TestExecuteQueryRateLimitNotRetried(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 200)
	_, err := client.ExecuteQuery(context.Background(), "SELECT [System.Id] FROM WorkItems")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if svcErr.Status != http.StatusTooManyRequests {
		t.Errorf("ServiceError.Status = %d, want 429", svcErr.Status)
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1 (queries are never retried)", calls)
	}
}

func TestExecuteQueryTruncatesContextInErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	long := "SELECT [System.Id] FROM WorkItems WHERE " + strings.Repeat("[System.Tags] CONTAINS 'x' AND ", 20) + "1=1"
	client := newTestClient(t, srv.URL, 200)
	_, err := client.ExecuteQuery(context.Background(), long)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if len([]rune(svcErr.Context)) > maxContextLen+3 {
		t.Errorf("error context is %d runes, want at most %d", len([]rune(svcErr.Context)), maxContextLen+3)
	}
}
