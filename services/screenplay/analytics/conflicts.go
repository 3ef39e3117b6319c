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
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// ConflictSummary is a reader-facing view of one conflict.
type ConflictSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Subject    network.Subject `json:"subject"`
	Phase      network.Phase   `json:"phase"`
	Strength   float64         `json:"strength"`
	Characters []string        `json:"characters"`
}

// ConflictAnalysis describes the conflict layer of a network.
type ConflictAnalysis struct {
	// MainConflict is the strongest conflict, nil when there are none.
	MainConflict *ConflictSummary `json:"main_conflict,omitempty"`

	// SubConflicts are the remaining conflicts in discovery order.
	SubConflicts []ConflictSummary `json:"sub_conflicts"`

	// TypeHistogram counts conflicts per subject.
	TypeHistogram map[network.Subject]int `json:"type_histogram"`

	// PhaseDistribution counts conflicts per current phase.
	PhaseDistribution map[network.Phase]int `json:"phase_distribution"`

	// IntensityProgression is strength/10 per conflict in discovery order.
	IntensityProgression []float64 `json:"intensity_progression"`

	// Transitions are non-adjacent phase jumps seen across the history.
	Transitions []TransitionPoint `json:"transitions"`
}

// TransitionPoint is a jump between non-adjacent phases of one conflict
// between two consecutive snapshots that both contain it.
type TransitionPoint struct {
	ConflictID   string        `json:"conflict_id"`
	ConflictName string        `json:"conflict_name"`
	From         network.Phase `json:"from"`
	To           network.Phase `json:"to"`
	Sequence     int           `json:"sequence"`
	Description  string        `json:"description"`
}

// AnalyzeConflicts summarizes the conflicts of the snapshot.
//
// Inputs:
//
//	s - Snapshot to analyse.
//	history - Snapshot history used for transition detection. May be empty.
//
// Outputs:
//
//	ConflictAnalysis - Never nil maps or slices.
func AnalyzeConflicts(s network.Snapshot, history []network.Snapshot) ConflictAnalysis {
	a := ConflictAnalysis{
		SubConflicts:         []ConflictSummary{},
		TypeHistogram:        make(map[network.Subject]int),
		PhaseDistribution:    make(map[network.Phase]int),
		IntensityProgression: make([]float64, 0, len(s.Conflicts)),
		Transitions:          TransitionPoints(history),
	}
	if len(s.Conflicts) == 0 {
		return a
	}

	main := 0
	for i, k := range s.Conflicts {
		if k.Strength > s.Conflicts[main].Strength {
			main = i
		}
		a.TypeHistogram[k.Subject]++
		a.PhaseDistribution[k.Phase]++
		a.IntensityProgression = append(a.IntensityProgression, round2(k.Strength/network.MaxStrength))
	}

	for i, k := range s.Conflicts {
		summary := summarizeConflict(s, k)
		if i == main {
			a.MainConflict = &summary
			continue
		}
		a.SubConflicts = append(a.SubConflicts, summary)
	}
	return a
}

// TransitionPoints scans consecutive snapshots for conflicts whose phase
// moved by more than one step in either direction.
func TransitionPoints(history []network.Snapshot) []TransitionPoint {
	points := []TransitionPoint{}
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		for _, k := range cur.Conflicts {
			before, ok := prev.ConflictByID(k.ID)
			if !ok {
				continue
			}
			if abs(k.Phase.Ordinal()-before.Phase.Ordinal()) > 1 {
				points = append(points, TransitionPoint{
					ConflictID:   k.ID,
					ConflictName: k.Name,
					From:         before.Phase,
					To:           k.Phase,
					Sequence:     cur.Sequence,
					Description:  cur.Description,
				})
			}
		}
	}
	return points
}

// progressed reports whether the conflict moved forward at least once
// between consecutive snapshots of the history.
func progressed(conflictID string, history []network.Snapshot) bool {
	last := -1
	for _, snap := range history {
		k, ok := snap.ConflictByID(conflictID)
		if !ok {
			continue
		}
		o := k.Phase.Ordinal()
		if last >= 0 && o > last {
			return true
		}
		last = o
	}
	return false
}

func summarizeConflict(s network.Snapshot, k network.Conflict) ConflictSummary {
	return ConflictSummary{
		ID:         k.ID,
		Name:       k.Name,
		Subject:    k.Subject,
		Phase:      k.Phase,
		Strength:   k.Strength,
		Characters: s.CharacterNames(k.InvolvedCharacters),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
