// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// =============================================================================
// Fixtures
// =============================================================================

func snap(chars []string, rels []network.Relationship, conflicts []network.Conflict) network.Snapshot {
	cs := make([]network.Character, len(chars))
	for i, id := range chars {
		cs[i] = network.Character{ID: id, Name: strings.ToUpper(id)}
	}
	return network.NewSnapshot("fixture", time.Time{}, cs, rels, conflicts)
}

func rel(id, a, b string, strength float64) network.Relationship {
	return network.Relationship{
		ID: id, Source: a, Target: b, Strength: strength,
		Type: network.RelationshipFriendship, Nature: network.NatureNeutral,
		Direction: network.DirectionBidirectional,
	}
}

func conflict(id string, strength float64, phase network.Phase, chars ...string) network.Conflict {
	return network.Conflict{
		ID: id, Name: id, Strength: strength, Phase: phase,
		Subject: network.SubjectOther, Scope: network.ScopePersonal,
		InvolvedCharacters: chars,
	}
}

// =============================================================================
// Metric Tests
// =============================================================================

func TestDensity(t *testing.T) {
	tests := []struct {
		name string
		s    network.Snapshot
		want float64
	}{
		{"empty", snap(nil, nil, nil), 0},
		{"single character", snap([]string{"a"}, nil, nil), 0},
		{"path of three", snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 5), rel("r2", "b", "c", 5)}, nil), 0.67},
		{"complete triangle", snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 5), rel("r2", "b", "c", 5), rel("r3", "a", "c", 5)}, nil), 1},
		{"multi-edges clamp", snap([]string{"a", "b"}, []network.Relationship{rel("r1", "a", "b", 5), rel("r2", "a", "b", 5)}, nil), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Density(tt.s); got != tt.want {
				t.Errorf("Density() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComplexity(t *testing.T) {
	three := snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 5), rel("r2", "b", "c", 5)}, nil)
	if got := Complexity(three); got != 0.27 {
		t.Errorf("Complexity(path of three) = %v, want 0.27", got)
	}

	chars := make([]string, 4)
	var rels []network.Relationship
	for i := range chars {
		chars[i] = string(rune('a' + i))
	}
	for i := 0; i < 20; i++ {
		rels = append(rels, rel("r", chars[i%4], chars[(i+1)%4], 5))
	}
	if got := Complexity(snap(chars, rels, nil)); got != 1 {
		t.Errorf("Complexity(dense) = %v, want capped 1", got)
	}
	if got := Complexity(snap(nil, nil, nil)); got != 0 {
		t.Errorf("Complexity(empty) = %v, want 0", got)
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name string
		s    network.Snapshot
		want float64
	}{
		{"no characters", snap(nil, nil, nil), 1},
		{"no conflicts", snap([]string{"a", "b"}, nil, nil), 1},
		{"uniform", snap([]string{"a", "b"}, nil, []network.Conflict{conflict("k1", 5, network.PhasePeak, "a", "b")}), 1},
		{"moderate", snap([]string{"a", "b"}, nil, []network.Conflict{
			conflict("k1", 5, network.PhasePeak, "a", "b"),
			conflict("k2", 5, network.PhasePeak, "a"),
		}), 0.67},
		{"dominated", snap([]string{"a", "b", "c", "d"}, nil, []network.Conflict{
			conflict("k1", 5, network.PhasePeak, "a"),
			conflict("k2", 5, network.PhasePeak, "a"),
			conflict("k3", 5, network.PhasePeak, "a"),
		}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Balance(tt.s); got != tt.want {
				t.Errorf("Balance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDynamicRange(t *testing.T) {
	s := snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 2), rel("r2", "b", "c", 9)}, nil)
	if got := DynamicRange(s); got != 0.7 {
		t.Errorf("DynamicRange() = %v, want 0.7", got)
	}
	if got := DynamicRange(snap([]string{"a"}, nil, nil)); got != 0 {
		t.Errorf("DynamicRange(no relationships) = %v, want 0", got)
	}
}

func TestMetrics_RangesHoldForRandomNetworks(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(8)
		chars := make([]string, n)
		for i := range chars {
			chars[i] = string(rune('a' + i))
		}
		var rels []network.Relationship
		var conflicts []network.Conflict
		if n >= 2 {
			for i := 0; i < rng.Intn(3*n); i++ {
				a, b := rng.Intn(n), rng.Intn(n)
				if a == b {
					continue
				}
				rels = append(rels, rel("r", chars[a], chars[b], float64(rng.Intn(11))))
			}
		}
		if n >= 1 {
			for i := 0; i < rng.Intn(2*n); i++ {
				conflicts = append(conflicts, conflict("k", float64(rng.Intn(11)), network.PhaseEmerging, chars[rng.Intn(n)]))
			}
		}
		s := snap(chars, rels, conflicts)

		if d := Density(s); d < 0 || d > 1 || math.IsNaN(d) {
			t.Fatalf("iteration %d: Density = %v out of [0,1]", iter, d)
		}
		if b := Balance(s); b < 0 || b > 1 || math.IsNaN(b) {
			t.Fatalf("iteration %d: Balance = %v out of [0,1]", iter, b)
		}
		if c := Complexity(s); c < 0 || c > 1 {
			t.Fatalf("iteration %d: Complexity = %v out of [0,1]", iter, c)
		}
		if n < 2 && Density(s) != 0 {
			t.Fatalf("iteration %d: Density must be 0 below two characters", iter)
		}
	}
}

func TestComputeMetrics(t *testing.T) {
	s := snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 4), rel("r2", "b", "c", 7)}, []network.Conflict{conflict("k1", 5, network.PhasePeak, "a")})
	m := ComputeMetrics(s)
	if m.Characters != 3 || m.Relationships != 2 || m.Conflicts != 1 {
		t.Errorf("counts = %d/%d/%d", m.Characters, m.Relationships, m.Conflicts)
	}
	if m.AverageStrength != 5.5 {
		t.Errorf("AverageStrength = %v, want 5.5", m.AverageStrength)
	}
}

// =============================================================================
// Conflict and Pivot Tests
// =============================================================================

func TestAnalyzeConflicts(t *testing.T) {
	s := snap([]string{"a", "b"}, nil, []network.Conflict{
		conflict("k1", 4, network.PhaseEmerging, "a"),
		conflict("k2", 8, network.PhasePeak, "a", "b"),
		conflict("k3", 8, network.PhaseResolving, "b"),
	})
	s.Conflicts[1].Subject = network.SubjectPower

	a := AnalyzeConflicts(s, nil)
	if a.MainConflict == nil || a.MainConflict.ID != "k2" {
		t.Fatalf("MainConflict = %+v, want k2 (first of the strongest)", a.MainConflict)
	}
	if len(a.SubConflicts) != 2 {
		t.Errorf("SubConflicts = %d, want 2", len(a.SubConflicts))
	}
	if a.TypeHistogram[network.SubjectPower] != 1 || a.TypeHistogram[network.SubjectOther] != 2 {
		t.Errorf("TypeHistogram = %v", a.TypeHistogram)
	}
	want := []float64{0.4, 0.8, 0.8}
	for i, v := range want {
		if a.IntensityProgression[i] != v {
			t.Errorf("IntensityProgression[%d] = %v, want %v", i, a.IntensityProgression[i], v)
		}
	}
	if got := a.MainConflict.Characters; len(got) != 2 || got[0] != "A" {
		t.Errorf("main conflict characters = %v", got)
	}
}

func TestAnalyzeConflicts_Empty(t *testing.T) {
	a := AnalyzeConflicts(snap([]string{"a"}, nil, nil), nil)
	if a.MainConflict != nil || a.SubConflicts == nil || a.Transitions == nil {
		t.Errorf("empty analysis = %+v", a)
	}
}

func TestPivotPoints(t *testing.T) {
	s := snap([]string{"a", "b", "c"},
		[]network.Relationship{rel("r1", "a", "b", 7), rel("r2", "b", "c", 10)},
		[]network.Conflict{
			conflict("k1", 8, network.PhasePeak, "a"),
			conflict("k2", 9.5, network.PhasePeak, "b", "c"),
		})

	pivots := PivotPoints(s)
	if len(pivots) != 3 {
		t.Fatalf("len(pivots) = %d, want 3 (strength 7 is not a pivot)", len(pivots))
	}
	wantIDs := []string{"r2", "k2", "k1"}
	for i, id := range wantIDs {
		if pivots[i].ID != id {
			t.Errorf("pivots[%d] = %s, want %s", i, pivots[i].ID, id)
		}
	}
	if pivots[0].Kind != PivotRelationship || pivots[0].Impact != 1 {
		t.Errorf("top pivot = %+v", pivots[0])
	}
	if got := pivots[1].Characters; len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("pivot characters = %v, want [B C]", got)
	}
}
