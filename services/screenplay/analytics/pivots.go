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
	"sort"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// PivotThreshold is the strength above which an edge is a pivot point.
const PivotThreshold = 7.0

// PivotKind says which kind of edge a pivot point is.
type PivotKind string

const (
	PivotConflict     PivotKind = "conflict"
	PivotRelationship PivotKind = "relationship"
)

// PivotPoint is a high-strength relationship or conflict.
type PivotPoint struct {
	Kind        PivotKind `json:"kind"`
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Strength    float64   `json:"strength"`
	Impact      float64   `json:"impact"`
	Characters  []string  `json:"characters"`
}

// PivotPoints returns every conflict and relationship with strength above
// PivotThreshold, sorted by impact descending. Ties keep conflicts before
// relationships, each in discovery order.
func PivotPoints(s network.Snapshot) []PivotPoint {
	pivots := []PivotPoint{}

	for _, k := range s.Conflicts {
		if k.Strength <= PivotThreshold {
			continue
		}
		desc := k.Description
		if desc == "" {
			desc = k.Name
		}
		pivots = append(pivots, PivotPoint{
			Kind:        PivotConflict,
			ID:          k.ID,
			Description: desc,
			Strength:    k.Strength,
			Impact:      round2(k.Strength / network.MaxStrength),
			Characters:  s.CharacterNames(k.InvolvedCharacters),
		})
	}

	for _, r := range s.Relationships {
		if r.Strength <= PivotThreshold {
			continue
		}
		desc := r.Description
		if desc == "" {
			desc = string(r.Type) + " relationship"
		}
		pivots = append(pivots, PivotPoint{
			Kind:        PivotRelationship,
			ID:          r.ID,
			Description: desc,
			Strength:    r.Strength,
			Impact:      round2(r.Strength / network.MaxStrength),
			Characters:  s.CharacterNames([]string{r.Source, r.Target}),
		})
	}

	sort.SliceStable(pivots, func(i, j int) bool {
		return pivots[i].Impact > pivots[j].Impact
	})
	return pivots
}
