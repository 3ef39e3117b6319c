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

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// ComplexityNormalizer is the average degree treated as maximal complexity.
const ComplexityNormalizer = 5.0

// Metrics are the headline structural numbers of a network.
type Metrics struct {
	Characters      int     `json:"characters"`
	Relationships   int     `json:"relationships"`
	Conflicts       int     `json:"conflicts"`
	Density         float64 `json:"density"`
	Complexity      float64 `json:"complexity"`
	Balance         float64 `json:"balance"`
	DynamicRange    float64 `json:"dynamic_range"`
	AverageStrength float64 `json:"average_strength"`
}

// ComputeMetrics returns all headline metrics for the snapshot.
func ComputeMetrics(s network.Snapshot) Metrics {
	avg := 0.0
	if len(s.Relationships) > 0 {
		sum := 0.0
		for _, r := range s.Relationships {
			sum += r.Strength
		}
		avg = round2(sum / float64(len(s.Relationships)))
	}
	return Metrics{
		Characters:      len(s.Characters),
		Relationships:   len(s.Relationships),
		Conflicts:       len(s.Conflicts),
		Density:         Density(s),
		Complexity:      Complexity(s),
		Balance:         Balance(s),
		DynamicRange:    DynamicRange(s),
		AverageStrength: avg,
	}
}

// Density is |relationships| / (n(n-1)/2), clamped to [0,1].
// It is 0 when there are fewer than two characters.
func Density(s network.Snapshot) float64 {
	n := len(s.Characters)
	if n < 2 {
		return 0
	}
	possible := float64(n*(n-1)) / 2
	return round2(clamp(float64(len(s.Relationships))/possible, 0, 1))
}

// Complexity is the average relationship degree per character divided by
// ComplexityNormalizer, capped at 1.
func Complexity(s network.Snapshot) float64 {
	if len(s.Characters) == 0 {
		return 0
	}
	avgDegree := float64(2*len(s.Relationships)) / float64(len(s.Characters))
	return round2(math.Min(1, avgDegree/ComplexityNormalizer))
}

// Balance is 1 minus the coefficient of variation of conflict load per
// character, with the coefficient clamped to [0,1].
//
// A distribution with zero mean (no conflicts, or no characters) has no
// imbalance and scores 1.
func Balance(s network.Snapshot) float64 {
	loads := ConflictLoad(s)
	if len(loads) == 0 {
		return 1
	}
	values := make([]float64, 0, len(loads))
	for _, c := range s.Characters {
		values = append(values, float64(loads[c.ID]))
	}
	mean, std := meanStd(values)
	if mean == 0 {
		return 1
	}
	return round2(1 - clamp(std/mean, 0, 1))
}

// DynamicRange is the spread of relationship strengths scaled to [0,1].
func DynamicRange(s network.Snapshot) float64 {
	if len(s.Relationships) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range s.Relationships {
		lo = math.Min(lo, r.Strength)
		hi = math.Max(hi, r.Strength)
	}
	return round2((hi - lo) / network.MaxStrength)
}

// ConflictLoad counts the conflicts each character is involved in. Every
// character of the snapshot has an entry.
func ConflictLoad(s network.Snapshot) map[string]int {
	load := make(map[string]int, len(s.Characters))
	for _, c := range s.Characters {
		load[c.ID] = 0
	}
	for _, k := range s.Conflicts {
		for _, id := range k.InvolvedCharacters {
			if _, ok := load[id]; ok {
				load[id]++
			}
		}
	}
	return load
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
