// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package api exposes the consolidated dashboard over HTTP. The route
// layer stays thin: handlers parse parameters, call into the dashboard
// service, and translate the error taxonomy into status codes. All
// behavior lives in internal/dashboard.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/farolhq/farol/internal/azdo"
	"github.com/farolhq/farol/internal/dashboard"
	"github.com/farolhq/farol/internal/logging"
	"github.com/farolhq/farol/internal/models"
)

// DashboardService is the slice of the dashboard the handlers need.
type DashboardService interface {
	Consolidated(ctx context.Context, opts dashboard.Options) (*models.ConsolidatedPayload, error)
	Relations(ctx context.Context, id int) (*azdo.RelationGraph, error)
}

// Handler contains the dependencies for all API endpoints.
type Handler struct {
	svc       DashboardService
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(svc DashboardService) *Handler {
	return &Handler{svc: svc, startTime: time.Now()}
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes data and writes it with the given status. Encode
// errors are logged but not recoverable since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps pipeline errors onto HTTP status codes: credential
// rejection and open-circuit/service failures are upstream problems
// (502), rate limiting maps to 503 with the client advised to retry.
func writeError(w http.ResponseWriter, err error) {
	var authErr *azdo.AuthError
	var rlErr *azdo.RateLimitError
	var svcErr *azdo.ServiceError

	switch {
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream credential rejected"})
	case errors.As(err, &rlErr):
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "upstream rate limited, try again shortly"})
	case errors.As(err, &svcErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream service failure"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request timed out"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// Dashboard serves GET /api/v1/dashboard.
//
// Query parameters:
//
//	refresh      - "true" bypasses the cache
//	client       - filter by client name
//	state        - filter by work item state
//	responsible  - filter by responsible person
//	window_days  - near-deadline window override
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := dashboard.Options{
		ForceRefresh: strings.EqualFold(q.Get("refresh"), "true"),
		Filter: dashboard.Filter{
			Client:      q.Get("client"),
			State:       q.Get("state"),
			Responsible: q.Get("responsible"),
		},
	}
	if raw := q.Get("window_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 || days > 365 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "window_days must be an integer between 0 and 365"})
			return
		}
		opts.WindowDays = days
	}

	payload, err := h.svc.Consolidated(r.Context(), opts)
	if err != nil {
		logging.Error().Err(err).Msg("Dashboard consolidation failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// WorkItemRelations serves GET /api/v1/workitems/{id}/relations.
func (h *Handler) WorkItemRelations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "work item id must be a positive integer"})
		return
	}

	graph, err := h.svc.Relations(r.Context(), id)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		logging.Error().Err(err).Int("work_item", id).Msg("Relation resolution failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// healthResponse is the body of the health endpoint.
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// Health serves GET /api/v1/health. It reports process liveness only; it
// deliberately does not call Azure DevOps, so monitoring probes never
// consume the upstream rate budget.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}
