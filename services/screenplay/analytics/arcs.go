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

// ArcType is the inferred shape of a character's journey.
type ArcType string

const (
	ArcPositive         ArcType = "positive"
	ArcNegative         ArcType = "negative"
	ArcFlat             ArcType = "flat"
	ArcTransformational ArcType = "transformational"
	ArcFall             ArcType = "fall"
)

// Arc classification thresholds on conflict load change.
const (
	majorLoadChange = 10.0
	minorLoadChange = 5.0
)

// CharacterArc is the inferred arc of one character.
type CharacterArc struct {
	CharacterID string  `json:"character_id"`
	Name        string  `json:"name"`
	Type        ArcType `json:"type"`

	// LoadChange is the summed strength of the character's conflicts in the
	// last snapshot containing them minus the first.
	LoadChange float64 `json:"load_change"`

	// NatureBalance is positive minus negative relationships at the end.
	NatureBalance int `json:"nature_balance"`

	// Connections counts conflicts plus relationships touching the character.
	Connections int     `json:"connections"`
	Confidence  float64 `json:"confidence"`

	Transitions []TransitionPoint `json:"transitions"`
}

// CharacterArcs infers an arc for every character of the current snapshot.
//
// Description:
//
//	For each character the first and last snapshots containing them are
//	compared. A character seen in a single snapshot is compared against
//	an empty baseline. With no history the current snapshot alone is
//	used.
//
// Inputs:
//
//	current - Snapshot listing the characters to report on.
//	history - Ordered snapshot history. May be empty.
//
// Outputs:
//
//	[]CharacterArc - One arc per character, in discovery order.
func CharacterArcs(current network.Snapshot, history []network.Snapshot) []CharacterArc {
	if len(history) == 0 {
		history = []network.Snapshot{current}
	}
	transitions := TransitionPoints(history)

	arcs := make([]CharacterArc, 0, len(current.Characters))
	for _, c := range current.Characters {
		var first, last *network.Snapshot
		appearances := 0
		for i := range history {
			if !history[i].HasCharacter(c.ID) {
				continue
			}
			if first == nil {
				first = &history[i]
			}
			last = &history[i]
			appearances++
		}
		if last == nil {
			// Added after the last recorded snapshot.
			first, last = &current, &current
			appearances = 1
		}

		endLoad := conflictStrength(*last, c.ID)
		startLoad := 0.0
		if appearances > 1 {
			startLoad = conflictStrength(*first, c.ID)
		}
		loadChange := round2(endLoad - startLoad)

		balance := 0
		rels := last.RelationshipsOf(c.ID)
		for _, r := range rels {
			switch r.Nature {
			case network.NaturePositive:
				balance++
			case network.NatureNegative:
				balance--
			}
		}
		conflicts := last.ConflictsOf(c.ID)
		connections := len(rels) + len(conflicts)

		arc := CharacterArc{
			CharacterID:   c.ID,
			Name:          c.Name,
			Type:          classifyArc(loadChange, balance),
			LoadChange:    loadChange,
			NatureBalance: balance,
			Connections:   connections,
			Confidence:    arcConfidence(connections),
			Transitions:   []TransitionPoint{},
		}
		for _, tp := range transitions {
			for _, k := range conflicts {
				if k.ID == tp.ConflictID {
					arc.Transitions = append(arc.Transitions, tp)
				}
			}
		}
		arcs = append(arcs, arc)
	}
	return arcs
}

// classifyArc maps the load change and nature balance to an arc type.
//
// A sharp rise in conflict load is a fall when relationships sour,
// transformational when they improve, and negative otherwise. A moderate
// rise is positive only with net positive relationships. A clear drop in
// load is a positive release.
func classifyArc(loadChange float64, balance int) ArcType {
	switch {
	case loadChange > majorLoadChange:
		switch {
		case balance < 0:
			return ArcFall
		case balance > 0:
			return ArcTransformational
		default:
			return ArcNegative
		}
	case loadChange > minorLoadChange:
		if balance > 0 {
			return ArcPositive
		}
		return ArcNegative
	case loadChange < -minorLoadChange:
		return ArcPositive
	default:
		return ArcFlat
	}
}

func arcConfidence(connections int) float64 {
	switch {
	case connections == 0:
		return 0.2
	case connections < 3:
		return 0.5
	case connections < 6:
		return 0.7
	default:
		return 0.9
	}
}

func conflictStrength(s network.Snapshot, characterID string) float64 {
	sum := 0.0
	for _, k := range s.ConflictsOf(characterID) {
		sum += k.Strength
	}
	return sum
}
