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
	"time"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// EvolutionTransitionThreshold is the complexity change between
// consecutive snapshots that marks a structural transition.
const EvolutionTransitionThreshold = 5

// EvolutionPoint is the size of the network at one snapshot.
type EvolutionPoint struct {
	Sequence      int       `json:"sequence"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
	Characters    int       `json:"characters"`
	Relationships int       `json:"relationships"`
	Conflicts     int       `json:"conflicts"`

	// Complexity is characters + relationships + conflicts.
	Complexity int     `json:"complexity"`
	Density    float64 `json:"density"`
}

// EvolutionTransition is a jump in complexity between two snapshots.
type EvolutionTransition struct {
	FromSequence int `json:"from_sequence"`
	ToSequence   int `json:"to_sequence"`
	Change       int `json:"change"`
}

// Evolution describes how the network grew across its history.
type Evolution struct {
	Points             []EvolutionPoint      `json:"points"`
	Transitions        []EvolutionTransition `json:"transitions"`
	DensityProgression []float64             `json:"density_progression"`

	// GrowthRate is (last - first complexity) / number of snapshots.
	GrowthRate float64 `json:"growth_rate"`

	// Stability is 1 / (1 + variance of complexity).
	Stability float64 `json:"stability"`
}

// AnalyzeEvolution measures growth and stability over the history.
// An empty history yields zero growth and full stability.
func AnalyzeEvolution(history []network.Snapshot) Evolution {
	e := Evolution{
		Points:             make([]EvolutionPoint, 0, len(history)),
		Transitions:        []EvolutionTransition{},
		DensityProgression: make([]float64, 0, len(history)),
		Stability:          1,
	}
	if len(history) == 0 {
		return e
	}

	values := make([]float64, 0, len(history))
	for _, s := range history {
		p := EvolutionPoint{
			Sequence:      s.Sequence,
			Description:   s.Description,
			Timestamp:     s.Timestamp,
			Characters:    len(s.Characters),
			Relationships: len(s.Relationships),
			Conflicts:     len(s.Conflicts),
			Density:       Density(s),
		}
		p.Complexity = p.Characters + p.Relationships + p.Conflicts
		e.Points = append(e.Points, p)
		e.DensityProgression = append(e.DensityProgression, p.Density)
		values = append(values, float64(p.Complexity))
	}

	for i := 1; i < len(e.Points); i++ {
		change := e.Points[i].Complexity - e.Points[i-1].Complexity
		if abs(change) > EvolutionTransitionThreshold {
			e.Transitions = append(e.Transitions, EvolutionTransition{
				FromSequence: e.Points[i-1].Sequence,
				ToSequence:   e.Points[i].Sequence,
				Change:       change,
			})
		}
	}

	first, last := e.Points[0].Complexity, e.Points[len(e.Points)-1].Complexity
	e.GrowthRate = round2(float64(last-first) / float64(len(e.Points)))

	_, std := meanStd(values)
	e.Stability = round2(1 / (1 + std*std))
	return e
}
