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
	"sort"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// Cast-size targets behind the efficiency scores.
const (
	idealCastSize              = 7
	relationshipsPerCharacter  = 1.5
	conflictsPerCharacter      = 0.8
	characterPenaltyPerExtra   = 5
	relationshipPenaltyPerEdge = 3
	conflictPenaltyPerExtra    = 4
)

// Efficiency measures how economically the network is built.
type Efficiency struct {
	CharacterEfficiency    float64 `json:"character_efficiency"`
	RelationshipEfficiency float64 `json:"relationship_efficiency"`
	ConflictEfficiency     float64 `json:"conflict_efficiency"`
	Overall                float64 `json:"overall"`
	Rating                 string  `json:"rating"`

	// Gini is the inequality of relationship degree across characters.
	Gini float64 `json:"gini"`

	// Cohesion is the share of characters in the largest component.
	Cohesion float64 `json:"cohesion"`

	// NarrativeDensity is (relationships + conflicts) per character.
	NarrativeDensity float64 `json:"narrative_density"`
}

// ComputeEfficiency scores the snapshot's economy of cast and conflict.
//
// Description:
//
//	Each dimension starts at 100 and loses points for every element
//	beyond its target: characters beyond idealCastSize, relationships
//	beyond 1.5 per character, conflicts beyond 0.8 per character. Scores
//	are clamped to [0,100]. Overall weights them 0.3/0.3/0.4.
func ComputeEfficiency(s network.Snapshot) Efficiency {
	n := float64(len(s.Characters))
	rels := float64(len(s.Relationships))
	conflicts := float64(len(s.Conflicts))

	e := Efficiency{
		CharacterEfficiency:    round2(clamp(100-math.Max(0, n-idealCastSize)*characterPenaltyPerExtra, 0, 100)),
		RelationshipEfficiency: round2(clamp(100-math.Max(0, rels-n*relationshipsPerCharacter)*relationshipPenaltyPerEdge, 0, 100)),
		ConflictEfficiency:     round2(clamp(100-math.Max(0, conflicts-n*conflictsPerCharacter)*conflictPenaltyPerExtra, 0, 100)),
	}
	e.Overall = round2(0.3*e.CharacterEfficiency + 0.3*e.RelationshipEfficiency + 0.4*e.ConflictEfficiency)
	e.Rating = EfficiencyRating(e.Overall)

	degrees := make([]float64, 0, len(s.Characters))
	for _, c := range s.Characters {
		degrees = append(degrees, float64(len(s.RelationshipsOf(c.ID))))
	}
	e.Gini = round2(Gini(degrees))

	if n > 0 {
		st := Structure(s)
		if len(st.ComponentSizes) > 0 {
			e.Cohesion = round2(float64(st.ComponentSizes[0]) / n)
		}
		e.NarrativeDensity = round2((rels + conflicts) / n)
	}
	return e
}

// EfficiencyRating maps an efficiency score to its label.
func EfficiencyRating(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	case score >= 20:
		return "Poor"
	default:
		return "Critical"
	}
}

// Gini returns the Gini coefficient of non-negative values, 0 when the
// values are empty or all zero.
func Gini(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	sum, weighted := 0.0, 0.0
	for i, v := range sorted {
		sum += v
		weighted += (2*float64(i+1) - n - 1) * v
	}
	if sum == 0 {
		return 0
	}
	return weighted / (n * sum)
}
