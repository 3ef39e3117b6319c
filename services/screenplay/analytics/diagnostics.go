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
	"fmt"
	"math"
	"sort"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// Diagnostic thresholds.
const (
	// WeakConnectionThreshold is the strength below which a relationship is weak.
	WeakConnectionThreshold = 4.0

	// AbandonedStrengthThreshold is the strength below which a conflict is
	// considered abandoned regardless of phase.
	AbandonedStrengthThreshold = 3.0

	// overloadFactor and overloadMargin define "far above the mean": at
	// least twice the mean and at least two conflicts more than it.
	overloadFactor = 2.0
	overloadMargin = 2.0
)

// Health score penalties per issue.
const (
	penaltyStructural = 15
	penaltyIsolated   = 10
	penaltyAbandoned  = 8
	penaltyOverloaded = 12
	penaltyWeak       = 5
	penaltyRedundant  = 7
)

// Criticality summarizes how urgently a network needs treatment.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// Rank orders criticality levels from low (0) to critical (3).
func (c Criticality) Rank() int {
	switch c {
	case CriticalityLow:
		return 0
	case CriticalityMedium:
		return 1
	case CriticalityHigh:
		return 2
	default:
		return 3
	}
}

// CriticalityFor maps a health score to its criticality level.
func CriticalityFor(score float64) Criticality {
	switch {
	case score >= 90:
		return CriticalityLow
	case score >= 70:
		return CriticalityMedium
	case score >= 45:
		return CriticalityHigh
	default:
		return CriticalityCritical
	}
}

// CharacterRef names a character.
type CharacterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StructuralIssue is a connectivity problem of the relationship graph.
type StructuralIssue struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Characters  []string `json:"characters"`
}

// AbandonedConflict is a conflict that never develops.
type AbandonedConflict struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Phase    network.Phase `json:"phase"`
	Strength float64       `json:"strength"`
	Reason   string        `json:"reason"`
}

// OverloadedCharacter carries far more conflicts than average.
type OverloadedCharacter struct {
	CharacterRef
	ConflictCount int     `json:"conflict_count"`
	Mean          float64 `json:"mean"`
}

// WeakConnection is a relationship below WeakConnectionThreshold.
type WeakConnection struct {
	RelationshipID string   `json:"relationship_id"`
	Characters     []string `json:"characters"`
	Strength       float64  `json:"strength"`
}

// Redundancy groups near-duplicate relationships or conflicts.
type Redundancy struct {
	Kind   string   `json:"kind"`
	IDs    []string `json:"ids"`
	Reason string   `json:"reason"`
}

// DiagnosticCounts summarizes the number of findings per category.
type DiagnosticCounts struct {
	Structural int `json:"structural"`
	Isolated   int `json:"isolated"`
	Abandoned  int `json:"abandoned"`
	Overloaded int `json:"overloaded"`
	Weak       int `json:"weak"`
	Redundant  int `json:"redundant"`
	Total      int `json:"total"`
}

// Diagnostics is the health report of a network.
type Diagnostics struct {
	StructuralIssues     []StructuralIssue     `json:"structural_issues"`
	IsolatedCharacters   []CharacterRef        `json:"isolated_characters"`
	AbandonedConflicts   []AbandonedConflict   `json:"abandoned_conflicts"`
	OverloadedCharacters []OverloadedCharacter `json:"overloaded_characters"`
	WeakConnections      []WeakConnection      `json:"weak_connections"`
	Redundancies         []Redundancy          `json:"redundancies"`
	Structure            StructureResult       `json:"structure"`
	Counts               DiagnosticCounts      `json:"counts"`
	OverallHealthScore   float64               `json:"overall_health_score"`
	CriticalityLevel     Criticality           `json:"criticality_level"`
}

// Diagnose inspects the snapshot for structural and narrative problems.
//
// Description:
//
//	Structural issues come from the relationship graph: one issue when it
//	has more than one component, and one per articulation character.
//	Isolated characters have no relationships and no conflicts. A conflict
//	is abandoned when its strength is below AbandonedStrengthThreshold, or
//	when it is unresolved and never moved forward across the history.
//	The health score starts at 100 and loses a fixed penalty per finding.
//
// Inputs:
//
//	s - Snapshot to diagnose.
//	history - Snapshot history used to judge conflict progression. When
//	          empty, s alone is used.
//
// Outputs:
//
//	Diagnostics - Never nil slices.
func Diagnose(s network.Snapshot, history []network.Snapshot) Diagnostics {
	if len(history) == 0 {
		history = []network.Snapshot{s}
	}

	d := Diagnostics{
		StructuralIssues:     []StructuralIssue{},
		IsolatedCharacters:   []CharacterRef{},
		AbandonedConflicts:   []AbandonedConflict{},
		OverloadedCharacters: []OverloadedCharacter{},
		WeakConnections:      []WeakConnection{},
		Redundancies:         []Redundancy{},
	}

	d.Structure = Structure(s)
	if d.Structure.Components > 1 {
		d.StructuralIssues = append(d.StructuralIssues, StructuralIssue{
			Kind:        "disconnected_components",
			Description: fmt.Sprintf("relationship graph splits into %d components", d.Structure.Components),
			Characters:  []string{},
		})
	}
	for _, id := range d.Structure.ArticulationPoints {
		d.StructuralIssues = append(d.StructuralIssues, StructuralIssue{
			Kind:        "critical_character",
			Description: fmt.Sprintf("%s is the only link between parts of the cast", s.CharacterName(id)),
			Characters:  []string{s.CharacterName(id)},
		})
	}

	load := ConflictLoad(s)
	for _, c := range s.Characters {
		if load[c.ID] == 0 && len(s.RelationshipsOf(c.ID)) == 0 {
			d.IsolatedCharacters = append(d.IsolatedCharacters, CharacterRef{ID: c.ID, Name: c.Name})
		}
	}

	for _, k := range s.Conflicts {
		reason := ""
		switch {
		case k.Strength < AbandonedStrengthThreshold:
			reason = "low_strength"
		case !k.Phase.Settled() && !progressed(k.ID, history):
			reason = "no_progression"
		}
		if reason != "" {
			d.AbandonedConflicts = append(d.AbandonedConflicts, AbandonedConflict{
				ID: k.ID, Name: k.Name, Phase: k.Phase, Strength: k.Strength, Reason: reason,
			})
		}
	}

	d.OverloadedCharacters = overloaded(s, load)

	for _, r := range s.Relationships {
		if r.Strength < WeakConnectionThreshold {
			d.WeakConnections = append(d.WeakConnections, WeakConnection{
				RelationshipID: r.ID,
				Characters:     s.CharacterNames([]string{r.Source, r.Target}),
				Strength:       r.Strength,
			})
		}
	}

	d.Redundancies = redundancies(s)

	d.Counts = DiagnosticCounts{
		Structural: len(d.StructuralIssues),
		Isolated:   len(d.IsolatedCharacters),
		Abandoned:  len(d.AbandonedConflicts),
		Overloaded: len(d.OverloadedCharacters),
		Weak:       len(d.WeakConnections),
		Redundant:  len(d.Redundancies),
	}
	d.Counts.Total = d.Counts.Structural + d.Counts.Isolated + d.Counts.Abandoned +
		d.Counts.Overloaded + d.Counts.Weak + d.Counts.Redundant

	score := 100.0 -
		penaltyStructural*float64(d.Counts.Structural) -
		penaltyIsolated*float64(d.Counts.Isolated) -
		penaltyAbandoned*float64(d.Counts.Abandoned) -
		penaltyOverloaded*float64(d.Counts.Overloaded) -
		penaltyWeak*float64(d.Counts.Weak) -
		penaltyRedundant*float64(d.Counts.Redundant)
	d.OverallHealthScore = math.Max(0, score)
	d.CriticalityLevel = CriticalityFor(d.OverallHealthScore)
	return d
}

func overloaded(s network.Snapshot, load map[string]int) []OverloadedCharacter {
	out := []OverloadedCharacter{}
	if len(s.Characters) == 0 {
		return out
	}
	total := 0
	for _, n := range load {
		total += n
	}
	mean := float64(total) / float64(len(s.Characters))
	for _, c := range s.Characters {
		n := float64(load[c.ID])
		if n >= overloadFactor*mean && n-mean >= overloadMargin {
			out = append(out, OverloadedCharacter{
				CharacterRef:  CharacterRef{ID: c.ID, Name: c.Name},
				ConflictCount: load[c.ID],
				Mean:          round2(mean),
			})
		}
	}
	return out
}

// redundancies finds relationships of the same type between the same pair
// and conflicts sharing subject and scope with overlapping characters.
func redundancies(s network.Snapshot) []Redundancy {
	out := []Redundancy{}

	type pairKey struct {
		a, b string
		t    network.RelationshipType
	}
	groups := make(map[pairKey][]string)
	var order []pairKey
	for _, r := range s.Relationships {
		a, b := r.Source, r.Target
		if a > b {
			a, b = b, a
		}
		k := pairKey{a: a, b: b, t: r.Type}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r.ID)
	}
	for _, k := range order {
		if ids := groups[k]; len(ids) > 1 {
			out = append(out, Redundancy{
				Kind:   "duplicate_relationship",
				IDs:    ids,
				Reason: fmt.Sprintf("%d %s relationships between %s and %s", len(ids), k.t, s.CharacterName(k.a), s.CharacterName(k.b)),
			})
		}
	}

	for i := 0; i < len(s.Conflicts); i++ {
		for j := i + 1; j < len(s.Conflicts); j++ {
			a, b := s.Conflicts[i], s.Conflicts[j]
			if a.Subject != b.Subject || a.Scope != b.Scope {
				continue
			}
			shared := overlap(a.InvolvedCharacters, b.InvolvedCharacters)
			if len(shared) == 0 {
				continue
			}
			out = append(out, Redundancy{
				Kind:   "similar_conflicts",
				IDs:    []string{a.ID, b.ID},
				Reason: fmt.Sprintf("both are %s %s conflicts involving %v", a.Scope, a.Subject, s.CharacterNames(shared)),
			})
		}
	}
	return out
}

func overlap(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	var out []string
	for _, id := range b {
		if set[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
