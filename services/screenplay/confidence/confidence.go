// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package confidence combines per-stage confidence signals and category
// scores into a final assessment.
//
// Each inferring stage emits a Signal: a confidence in [0,1] and a list of
// Uncertainty entries. Epistemic entries flag sparse input and can be
// reduced by gathering more signal. Aleatoric entries flag ambiguity in the
// material itself.
package confidence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// DefaultConfidence is reported when no stage produced a signal.
const DefaultConfidence = 0.7

// ErrInvalidWeights indicates category weights that do not sum to 1.
var ErrInvalidWeights = errors.New("category weights must be non-negative and sum to 1.0")

// UncertaintyType distinguishes reducible from irreducible uncertainty.
type UncertaintyType string

const (
	Epistemic UncertaintyType = "epistemic"
	Aleatoric UncertaintyType = "aleatoric"
)

// Uncertainty is one flagged source of doubt.
type Uncertainty struct {
	Type   UncertaintyType `json:"type"`
	Aspect string          `json:"aspect"`
	Note   string          `json:"note"`
}

// Signal is the confidence output of one stage.
type Signal struct {
	Stage         int           `json:"stage"`
	Confidence    float64       `json:"confidence"`
	Uncertainties []Uncertainty `json:"uncertainties,omitempty"`
}

// Assessment is the aggregated confidence of a run.
type Assessment struct {
	OverallConfidence float64       `json:"overall_confidence"`
	Uncertainties     []Uncertainty `json:"uncertainties"`
	SignalCount       int           `json:"signal_count"`
	Epistemic         int           `json:"epistemic"`
	Aleatoric         int           `json:"aleatoric"`
}

// Aggregate computes the mean confidence of the signals and deduplicates
// their uncertainty entries, keeping first-seen order.
//
// Inputs:
//
//	signals - Per-stage signals. Confidences are clamped to [0,1].
//
// Outputs:
//
//	Assessment - Mean confidence rounded to 3 decimals, or
//	             DefaultConfidence when signals is empty.
func Aggregate(signals []Signal) Assessment {
	a := Assessment{
		OverallConfidence: DefaultConfidence,
		Uncertainties:     []Uncertainty{},
		SignalCount:       len(signals),
	}
	if len(signals) == 0 {
		return a
	}

	sum := 0.0
	seen := make(map[Uncertainty]bool)
	for _, s := range signals {
		sum += clamp(s.Confidence, 0, 1)
		for _, u := range s.Uncertainties {
			if seen[u] {
				continue
			}
			seen[u] = true
			a.Uncertainties = append(a.Uncertainties, u)
			switch u.Type {
			case Epistemic:
				a.Epistemic++
			case Aleatoric:
				a.Aleatoric++
			}
		}
	}
	a.OverallConfidence = round(sum/float64(len(signals)), 3)
	return a
}

// Aggregator collects signals as stages finish.
//
// Thread Safety: Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	signals []Signal
}

// Add records a signal.
func (g *Aggregator) Add(s Signal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.Uncertainties = append([]Uncertainty(nil), s.Uncertainties...)
	g.signals = append(g.signals, s)
}

// Signals returns the recorded signals ordered by stage.
func (g *Aggregator) Signals() []Signal {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Signal, len(g.signals))
	copy(out, g.signals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// Assess aggregates the recorded signals.
func (g *Aggregator) Assess() Assessment {
	return Aggregate(g.Signals())
}

// Category is a dimension of the final score matrix.
type Category string

const (
	CategoryFoundation      Category = "foundation"
	CategoryConceptual      Category = "conceptual"
	CategoryConflictNetwork Category = "conflict_network"
	CategoryEfficiency      Category = "efficiency"
	CategoryDynamicSymbolic Category = "dynamic_symbolic"
	CategoryDiagnostics     Category = "diagnostics"
)

// Categories lists the score matrix categories in report order.
var Categories = []Category{
	CategoryFoundation,
	CategoryConceptual,
	CategoryConflictNetwork,
	CategoryEfficiency,
	CategoryDynamicSymbolic,
	CategoryDiagnostics,
}

// Weights maps each category to its share of the overall score.
type Weights map[Category]float64

// DefaultWeights returns the fixed category weights.
func DefaultWeights() Weights {
	return Weights{
		CategoryFoundation:      0.15,
		CategoryConceptual:      0.15,
		CategoryConflictNetwork: 0.20,
		CategoryEfficiency:      0.20,
		CategoryDynamicSymbolic: 0.15,
		CategoryDiagnostics:     0.15,
	}
}

// Validate checks that weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	sum := 0.0
	for c, v := range w {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeights, c, v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: sum=%.4f", ErrInvalidWeights, sum)
	}
	return nil
}

// ScoreMatrix is the weighted combination of category scores.
type ScoreMatrix struct {
	Scores  map[Category]float64 `json:"scores"`
	Weights Weights              `json:"weights"`
	Overall float64              `json:"overall"`
	Rating  string               `json:"rating"`

	// Missing lists weighted categories that had no score; they count as 0.
	Missing []Category `json:"missing,omitempty"`
}

// BuildScoreMatrix combines category scores (0-100) into an overall score.
//
// Inputs:
//
//	scores - Category scores. Values are clamped to [0,100].
//	weights - Category weights. Must pass Validate.
//
// Outputs:
//
//	ScoreMatrix - Overall score rounded to 2 decimals with its rating.
//	error - ErrInvalidWeights if weights are invalid.
func BuildScoreMatrix(scores map[Category]float64, weights Weights) (ScoreMatrix, error) {
	if err := weights.Validate(); err != nil {
		return ScoreMatrix{}, err
	}

	m := ScoreMatrix{
		Scores:  make(map[Category]float64, len(scores)),
		Weights: make(Weights, len(weights)),
	}
	for c, w := range weights {
		m.Weights[c] = w
	}

	keys := make([]Category, 0, len(weights))
	for c := range weights {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	// Summing in a fixed order keeps the overall score reproducible.
	total := 0.0
	for _, c := range keys {
		s, ok := scores[c]
		if !ok {
			m.Missing = append(m.Missing, c)
			continue
		}
		s = clamp(s, 0, 100)
		m.Scores[c] = s
		total += s * weights[c]
	}

	m.Overall = round(total, 2)
	m.Rating = Rating(m.Overall)
	return m, nil
}

// Rating maps an overall score to its label.
func Rating(overall float64) string {
	switch {
	case overall >= 90:
		return "Masterpiece"
	case overall >= 80:
		return "Excellent"
	case overall >= 65:
		return "Good"
	case overall >= 50:
		return "Fair"
	default:
		return "Needs Work"
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
