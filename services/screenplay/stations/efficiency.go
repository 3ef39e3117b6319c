// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stations

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/analytics"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

const (
	efficiencyConfidence = 0.9
	weakDimension        = 70.0
	concentratedGini     = 0.5
)

type efficiencyStage struct {
	pipeline.BaseStage
}

func newEfficiency(_ *env) *efficiencyStage {
	return &efficiencyStage{
		BaseStage: pipeline.BaseStage{
			StageNumber: StageEfficiency,
			StageName:   EfficiencyKey.Name(),
			Requires:    []int{StageNetwork},
		},
	}
}

// Execute scores the economy of the network. It needs no collaborator.
func (s *efficiencyStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	na, err := pipeline.Get(in.Outputs, NetworkKey)
	if err != nil {
		return nil, err
	}

	snap := na.Network
	eff := analytics.ComputeEfficiency(snap)
	out := &EfficiencyReport{
		Efficiency:   eff,
		ConflictLoad: analytics.ConflictLoad(snap),
		Notes:        []string{},
		Signal:       confidence.Signal{Stage: StageEfficiency, Confidence: efficiencyConfidence},
	}

	if eff.CharacterEfficiency < weakDimension {
		out.Notes = append(out.Notes, fmt.Sprintf("cast of %d is larger than the story supports", len(snap.Characters)))
	}
	if eff.RelationshipEfficiency < weakDimension {
		out.Notes = append(out.Notes, fmt.Sprintf("%d relationships crowd the cast", len(snap.Relationships)))
	}
	if eff.ConflictEfficiency < weakDimension {
		out.Notes = append(out.Notes, fmt.Sprintf("%d conflicts compete for attention", len(snap.Conflicts)))
	}
	if eff.Gini > concentratedGini {
		out.Notes = append(out.Notes, fmt.Sprintf("connections concentrate on few characters (gini %.2f)", eff.Gini))
	}
	if eff.Cohesion < 1 && len(snap.Characters) > 0 {
		out.Notes = append(out.Notes, fmt.Sprintf("only %.0f%% of the cast is connected to the main group", eff.Cohesion*100))
	}
	if len(snap.Characters) < 3 {
		out.Signal.Uncertainties = append(out.Signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Aleatoric,
			Aspect: "efficiency",
			Note:   "small casts score high by construction",
		})
	}
	return out, nil
}
