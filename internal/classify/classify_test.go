// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package classify

import (
	"testing"
	"time"

	"github.com/farolhq/farol/internal/models"
)

func TestFarol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  models.FarolStatus
	}{
		{"Sem problema", models.FarolSemProblema},
		{"sem problema - tudo certo", models.FarolSemProblema},
		{"GREEN", models.FarolSemProblema},
		{"verde", models.FarolSemProblema},
		{"Com problema", models.FarolComProblema},
		{"  YELLOW ", models.FarolComProblema},
		{"amarelo", models.FarolComProblema},
		{"Problema crítico", models.FarolProblemaCritico},
		{"problema critico", models.FarolProblemaCritico},
		{"RED", models.FarolProblemaCritico},
		{"vermelho", models.FarolProblemaCritico},
		// Critical must win even though the text also says "problema".
		{"com problema crítico no ambiente", models.FarolProblemaCritico},
		// Wire spellings classify back to themselves.
		{"sem-problema", models.FarolSemProblema},
		{"com-problema", models.FarolComProblema},
		{"problema-critico", models.FarolProblemaCritico},
		{"", models.FarolIndefinido},
		{"   ", models.FarolIndefinido},
		{"aguardando definição", models.FarolIndefinido},
	}

	for _, tt := range tests {
		if got := Farol(tt.input); got != tt.want {
			t.Errorf("Farol(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFarolIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"Sem problema", "yellow", "verde", "problema crítico", "RED", "???", ""}
	for _, input := range inputs {
		first := Farol(input)
		if second := Farol(string(first)); second != first {
			t.Errorf("Farol(Farol(%q)) = %q, want %q", input, second, first)
		}
	}
}

func TestOverdueAndNearDeadline(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC-3", -3*60*60)
	// "Now" is 2026-03-10 15:00 in the display zone.
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name         string
		target       *time.Time
		wantOverdue  bool
		wantNearline bool
	}{
		{"no target date", nil, false, false},
		{"yesterday is overdue only", date(2026, 3, 9), true, false},
		{"today is near-deadline, not overdue", date(2026, 3, 10), false, true},
		{"window edge is near-deadline", date(2026, 3, 17), false, true},
		{"past the window is neither", date(2026, 3, 18), false, false},
		{"far future is neither", date(2026, 6, 1), false, false},
		{"far past is overdue", date(2025, 12, 31), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Overdue(tt.target, now, loc); got != tt.wantOverdue {
				t.Errorf("Overdue() = %v, want %v", got, tt.wantOverdue)
			}
			if got := NearDeadline(tt.target, now, loc, 7); got != tt.wantNearline {
				t.Errorf("NearDeadline() = %v, want %v", got, tt.wantNearline)
			}
		})
	}
}

func TestOverdueComparesDatesNotTimes(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC-3", -3*60*60)
	now := time.Date(2026, 3, 10, 23, 50, 0, 0, loc)
	// Target later today with an explicit time component earlier than
	// "now": same calendar date, so not overdue.
	target := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	if Overdue(&target, now, loc) {
		t.Error("a target on today's date must not be overdue")
	}
}

func TestSLA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		priority   int
		resolution float64
		want       SLABucket
	}{
		{"priority 2 at threshold is within", 2, 4320, SLAWithin},
		{"priority 2 one over is out", 2, 4321, SLAOut},
		{"priority 3 at threshold is within", 3, 1440, SLAWithin},
		{"priority 1 shares the 72h ceiling", 1, 4000, SLAWithin},
		{"priority 4 small resolution is within", 4, 360, SLAWithin},
		{"priority 5 over 6h is out", 5, 361, SLAOut},
		{"zero resolution excluded", 2, 0, SLAExcluded},
		{"negative resolution excluded", 3, -10, SLAExcluded},
		{"unknown priority excluded", 9, 100, SLAExcluded},
		{"priority zero excluded", 0, 100, SLAExcluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SLA(tt.priority, tt.resolution); got != tt.want {
				t.Errorf("SLA(%d, %v) = %v, want %v", tt.priority, tt.resolution, got, tt.want)
			}
		})
	}
}

func TestIsClosedState(t *testing.T) {
	t.Parallel()

	closed := []string{"Closed", "done", "Removed", "Fechado", "Concluído", " concluido "}
	open := []string{"New", "Active", "In Progress", "Em andamento", ""}

	for _, state := range closed {
		if !IsClosedState(state) {
			t.Errorf("IsClosedState(%q) = false, want true", state)
		}
	}
	for _, state := range open {
		if IsClosedState(state) {
			t.Errorf("IsClosedState(%q) = true, want false", state)
		}
	}
}
