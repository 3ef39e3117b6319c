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
	"context"
	"errors"
	"math"
	"testing"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

func TestAnalyzeEvolution(t *testing.T) {
	s0 := snap([]string{"a", "b", "c"}, nil, nil)
	s1 := snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 5)}, nil)
	s2 := snap([]string{"a", "b", "c", "d", "e"},
		[]network.Relationship{rel("r1", "a", "b", 5), rel("r2", "b", "c", 5), rel("r3", "c", "d", 5), rel("r4", "d", "e", 5)},
		[]network.Conflict{conflict("k1", 5, network.PhasePeak, "a"), conflict("k2", 5, network.PhasePeak, "e"), conflict("k3", 5, network.PhasePeak, "c")})
	s0.Sequence, s1.Sequence, s2.Sequence = 0, 1, 2

	e := AnalyzeEvolution([]network.Snapshot{s0, s1, s2})
	if len(e.Points) != 3 {
		t.Fatalf("len(points) = %d", len(e.Points))
	}
	if e.Points[2].Complexity != 12 {
		t.Errorf("final complexity = %d, want 12", e.Points[2].Complexity)
	}
	if len(e.Transitions) != 1 || e.Transitions[0].FromSequence != 1 || e.Transitions[0].Change != 8 {
		t.Errorf("transitions = %+v, want one jump of 8 from sequence 1", e.Transitions)
	}
	if e.GrowthRate != 3 {
		t.Errorf("GrowthRate = %v, want 3", e.GrowthRate)
	}
	if e.Stability != 0.06 {
		t.Errorf("Stability = %v, want 0.06", e.Stability)
	}
	if len(e.DensityProgression) != 3 || e.DensityProgression[1] != 0.33 {
		t.Errorf("DensityProgression = %v", e.DensityProgression)
	}
}

func TestAnalyzeEvolution_Empty(t *testing.T) {
	e := AnalyzeEvolution(nil)
	if e.Stability != 1 || e.GrowthRate != 0 || e.Points == nil {
		t.Errorf("empty evolution = %+v", e)
	}
}

func TestComputeEfficiency(t *testing.T) {
	small := snap([]string{"a", "b", "c"}, []network.Relationship{rel("r1", "a", "b", 5), rel("r2", "b", "c", 5)},
		[]network.Conflict{conflict("k1", 9, network.PhasePeak, "a")})
	e := ComputeEfficiency(small)
	if e.Overall != 100 || e.Rating != "Excellent" {
		t.Errorf("small network efficiency = %+v", e)
	}
	if e.Cohesion != 1 {
		t.Errorf("Cohesion = %v, want 1", e.Cohesion)
	}

	chars := make([]string, 10)
	for i := range chars {
		chars[i] = string(rune('a' + i))
	}
	var rels []network.Relationship
	for i := 0; i < 20; i++ {
		rels = append(rels, rel("r", chars[i%10], chars[(i+3)%10], 5))
	}
	var conflicts []network.Conflict
	for i := 0; i < 12; i++ {
		conflicts = append(conflicts, conflict("k", 5, network.PhasePeak, chars[i%10]))
	}
	big := ComputeEfficiency(snap(chars, rels, conflicts))
	if big.CharacterEfficiency != 85 || big.RelationshipEfficiency != 85 || big.ConflictEfficiency != 84 {
		t.Errorf("big network dimensions = %+v", big)
	}
	if big.Overall != 84.6 {
		t.Errorf("Overall = %v, want 84.6", big.Overall)
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"all zero", []float64{0, 0, 0}, 0},
		{"equal", []float64{2, 2, 2}, 0},
		{"concentrated", []float64{0, 0, 3}, 2.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Gini(tt.values); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Gini() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEfficiencyRating(t *testing.T) {
	for score, want := range map[float64]string{80: "Excellent", 60: "Good", 40: "Fair", 20: "Poor", 19: "Critical"} {
		if got := EfficiencyRating(score); got != want {
			t.Errorf("EfficiencyRating(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestAssessUncertainty(t *testing.T) {
	sparse := snap([]string{"a", "b"}, []network.Relationship{rel("r1", "a", "b", 2)},
		[]network.Conflict{conflict("k1", 6, network.PhasePeak, "a")})
	sig := AssessUncertainty(sparse)
	if sig.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want 0.3", sig.Confidence)
	}
	epistemic, aleatoric := 0, 0
	for _, u := range sig.Uncertainties {
		switch u.Type {
		case confidence.Epistemic:
			epistemic++
		case confidence.Aleatoric:
			aleatoric++
		}
	}
	if epistemic != 3 || aleatoric != 1 {
		t.Errorf("epistemic=%d aleatoric=%d, want 3 and 1", epistemic, aleatoric)
	}

	rich := snap([]string{"a", "b", "c"},
		[]network.Relationship{rel("r1", "a", "b", 6), rel("r2", "b", "c", 6), rel("r3", "a", "c", 6)},
		[]network.Conflict{conflict("k1", 6, network.PhasePeak, "a"), conflict("k2", 7, network.PhasePeak, "b")})
	if got := AssessUncertainty(rich); got.Confidence != 0.8 || len(got.Uncertainties) != 0 {
		t.Errorf("rich network signal = %+v, want 0.8 and no notes", got)
	}

	empty := AssessUncertainty(snap(nil, nil, nil))
	if empty.Confidence < 0.1 {
		t.Errorf("Confidence = %v, want clamped to at least 0.1", empty.Confidence)
	}
}

// A three-character network with two relationships and one strength-9
// conflict yields exactly one pivot and at least medium criticality.
func TestAnalyze_SmallNetworkScenario(t *testing.T) {
	n := network.New("scenario")
	for _, c := range []network.Character{{ID: "hero", Name: "Hero"}, {ID: "mentor", Name: "Mentor"}, {ID: "villain", Name: "Villain"}} {
		if _, err := n.AddCharacter(c); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range []network.Relationship{
		{ID: "r1", Source: "hero", Target: "mentor", Strength: 6, Type: network.RelationshipMentorship, Nature: network.NaturePositive},
		{ID: "r2", Source: "hero", Target: "villain", Strength: 5, Type: network.RelationshipAntagonistic, Nature: network.NatureNegative},
	} {
		if _, err := n.AddRelationship(r); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := n.AddConflict(network.Conflict{ID: "k1", Name: "showdown", InvolvedCharacters: []string{"hero", "villain"}, Strength: 9, Subject: network.SubjectPower}); err != nil {
		t.Fatal(err)
	}
	n.CreateSnapshot("built")

	report, err := Analyze(context.Background(), n.View(), n.Snapshots(), nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(report.Pivots) != 1 || report.Pivots[0].ID != "k1" {
		t.Errorf("pivots = %+v, want exactly the conflict", report.Pivots)
	}
	if report.Diagnostics.CriticalityLevel.Rank() < CriticalityMedium.Rank() {
		t.Errorf("criticality = %s, want at least medium", report.Diagnostics.CriticalityLevel)
	}
	if report.Metrics.Density != 0.67 {
		t.Errorf("density = %v, want 0.67", report.Metrics.Density)
	}
	if len(report.Arcs) != 3 {
		t.Errorf("arcs = %d, want 3", len(report.Arcs))
	}
	if report.Conflicts.MainConflict == nil || report.Conflicts.MainConflict.ID != "k1" {
		t.Errorf("main conflict = %+v", report.Conflicts.MainConflict)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	n := buildTwoActNetwork(t)
	r1, err := Analyze(context.Background(), n.View(), n.Snapshots(), nil)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Analyze(context.Background(), n.View(), n.Snapshots(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Diagnostics.OverallHealthScore != r2.Diagnostics.OverallHealthScore || r1.Metrics != r2.Metrics {
		t.Error("repeated analysis differs")
	}
}

func TestAnalyze_ContextErrors(t *testing.T) {
	//nolint:staticcheck // exercising the nil guard
	if _, err := Analyze(nil, network.Snapshot{}, nil, nil); !errors.Is(err, ErrNilContext) {
		t.Errorf("nil ctx error = %v, want ErrNilContext", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Analyze(ctx, network.Snapshot{}, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled ctx error = %v, want context.Canceled", err)
	}
}
