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

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// Network confidence bounds and penalties.
const (
	baseNetworkConfidence = 0.8
	minNetworkConfidence  = 0.1
	maxNetworkConfidence  = 0.95
	ambiguousStrength     = 4.0
)

// AssessUncertainty rates how much the network can be trusted.
//
// Description:
//
//	Starts at 0.8 and subtracts for sparse input: 0.2 for fewer than three
//	characters, 0.15 for fewer relationships than characters, 0.15 for
//	fewer than two conflicts. Each sparse finding is an epistemic entry.
//	Relationships and conflicts weaker than 4 are aleatoric entries and do
//	not change the confidence. The result is clamped to [0.1, 0.95].
//
// Outputs:
//
//	confidence.Signal - Signal with Stage left at 0 for the caller to set.
func AssessUncertainty(s network.Snapshot) confidence.Signal {
	conf := baseNetworkConfidence
	var notes []confidence.Uncertainty

	if len(s.Characters) < 3 {
		conf -= 0.2
		notes = append(notes, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "characters",
			Note:   fmt.Sprintf("only %d characters identified", len(s.Characters)),
		})
	}
	if len(s.Relationships) < len(s.Characters) {
		conf -= 0.15
		notes = append(notes, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "relationships",
			Note:   fmt.Sprintf("%d relationships for %d characters", len(s.Relationships), len(s.Characters)),
		})
	}
	if len(s.Conflicts) < 2 {
		conf -= 0.15
		notes = append(notes, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "conflicts",
			Note:   fmt.Sprintf("only %d conflicts identified", len(s.Conflicts)),
		})
	}

	for _, r := range s.Relationships {
		if r.Strength < ambiguousStrength {
			notes = append(notes, confidence.Uncertainty{
				Type:   confidence.Aleatoric,
				Aspect: "relationship",
				Note:   fmt.Sprintf("ambiguous %s relationship between %s and %s", r.Type, s.CharacterName(r.Source), s.CharacterName(r.Target)),
			})
		}
	}
	for _, k := range s.Conflicts {
		if k.Strength < ambiguousStrength {
			notes = append(notes, confidence.Uncertainty{
				Type:   confidence.Aleatoric,
				Aspect: "conflict",
				Note:   fmt.Sprintf("conflict %q is faintly drawn", k.Name),
			})
		}
	}

	return confidence.Signal{
		Confidence:    round2(clamp(conf, minNetworkConfidence, maxNetworkConfidence)),
		Uncertainties: notes,
	}
}
