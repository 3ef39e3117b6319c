// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package confidence

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func TestAggregate_Mean(t *testing.T) {
	got := Aggregate([]Signal{
		{Stage: 1, Confidence: 0.9},
		{Stage: 2, Confidence: 0.7},
		{Stage: 3, Confidence: 0.5},
	})
	if math.Abs(got.OverallConfidence-0.7) > 1e-9 {
		t.Errorf("OverallConfidence = %v, want 0.7", got.OverallConfidence)
	}
	if got.SignalCount != 3 {
		t.Errorf("SignalCount = %d, want 3", got.SignalCount)
	}
}

func TestAggregate_NoSignals(t *testing.T) {
	got := Aggregate(nil)
	if got.OverallConfidence != DefaultConfidence {
		t.Errorf("OverallConfidence = %v, want %v", got.OverallConfidence, DefaultConfidence)
	}
	if got.Uncertainties == nil {
		t.Error("Uncertainties should be empty, not nil")
	}
}

func TestAggregate_DeduplicatesUncertainties(t *testing.T) {
	sparse := Uncertainty{Type: Epistemic, Aspect: "characters", Note: "fewer than 3 characters"}
	vague := Uncertainty{Type: Aleatoric, Aspect: "relationship", Note: "weak tie"}

	got := Aggregate([]Signal{
		{Stage: 3, Confidence: 0.6, Uncertainties: []Uncertainty{sparse, vague}},
		{Stage: 5, Confidence: 0.8, Uncertainties: []Uncertainty{sparse}},
	})
	if len(got.Uncertainties) != 2 {
		t.Fatalf("uncertainties = %v, want 2 unique", got.Uncertainties)
	}
	if got.Uncertainties[0] != sparse {
		t.Errorf("first-seen order lost: %v", got.Uncertainties)
	}
	if got.Epistemic != 1 || got.Aleatoric != 1 {
		t.Errorf("counts epistemic=%d aleatoric=%d", got.Epistemic, got.Aleatoric)
	}
}

func TestAggregate_ClampsConfidence(t *testing.T) {
	got := Aggregate([]Signal{{Confidence: 1.8}, {Confidence: -0.4}})
	if got.OverallConfidence != 0.5 {
		t.Errorf("OverallConfidence = %v, want 0.5", got.OverallConfidence)
	}
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	var g Aggregator
	var wg sync.WaitGroup
	for i := 1; i <= 6; i++ {
		wg.Add(1)
		go func(stage int) {
			defer wg.Done()
			g.Add(Signal{Stage: stage, Confidence: 0.5})
		}(i)
	}
	wg.Wait()

	signals := g.Signals()
	if len(signals) != 6 {
		t.Fatalf("len = %d, want 6", len(signals))
	}
	for i, s := range signals {
		if s.Stage != i+1 {
			t.Errorf("signals[%d].Stage = %d, want ordered by stage", i, s.Stage)
		}
	}
	if got := g.Assess().OverallConfidence; got != 0.5 {
		t.Errorf("Assess() = %v, want 0.5", got)
	}
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("DefaultWeights().Validate() = %v", err)
	}
	if len(DefaultWeights()) != len(Categories) {
		t.Error("every category needs a weight")
	}
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
		ok   bool
	}{
		{"default", DefaultWeights(), true},
		{"short", Weights{CategoryFoundation: 0.5}, false},
		{"negative", Weights{CategoryFoundation: 1.2, CategoryConceptual: -0.2}, false},
		{"single", Weights{CategoryDiagnostics: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidWeights) {
				t.Errorf("Validate() = %v, want ErrInvalidWeights", err)
			}
		})
	}
}

func TestBuildScoreMatrix(t *testing.T) {
	scores := map[Category]float64{
		CategoryFoundation:      80,
		CategoryConceptual:      70,
		CategoryConflictNetwork: 90,
		CategoryEfficiency:      60,
		CategoryDynamicSymbolic: 75,
		CategoryDiagnostics:     85,
	}
	m, err := BuildScoreMatrix(scores, DefaultWeights())
	if err != nil {
		t.Fatalf("BuildScoreMatrix() error = %v", err)
	}
	// 12 + 10.5 + 18 + 12 + 11.25 + 12.75
	if m.Overall != 76.5 {
		t.Errorf("Overall = %v, want 76.5", m.Overall)
	}
	if m.Rating != "Good" {
		t.Errorf("Rating = %q, want Good", m.Rating)
	}
	if len(m.Missing) != 0 {
		t.Errorf("Missing = %v", m.Missing)
	}
}

func TestBuildScoreMatrix_MissingAndClamped(t *testing.T) {
	m, err := BuildScoreMatrix(map[Category]float64{
		CategoryFoundation:  150,
		CategoryDiagnostics: 100,
	}, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	if m.Scores[CategoryFoundation] != 100 {
		t.Errorf("foundation score = %v, want clamped 100", m.Scores[CategoryFoundation])
	}
	if m.Overall != 30 {
		t.Errorf("Overall = %v, want 30", m.Overall)
	}
	if len(m.Missing) != 4 {
		t.Errorf("Missing = %v, want 4 categories", m.Missing)
	}
}

func TestBuildScoreMatrix_InvalidWeights(t *testing.T) {
	_, err := BuildScoreMatrix(nil, Weights{CategoryFoundation: 0.3})
	if !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("error = %v, want ErrInvalidWeights", err)
	}
}

func TestRating(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "Masterpiece"},
		{90, "Masterpiece"},
		{85, "Excellent"},
		{65, "Good"},
		{50, "Fair"},
		{49.99, "Needs Work"},
	}
	for _, tt := range tests {
		if got := Rating(tt.score); got != tt.want {
			t.Errorf("Rating(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
