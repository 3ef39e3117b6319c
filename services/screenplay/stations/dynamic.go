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
	"math"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/analytics"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

const (
	dynamicConfidence = 0.75
	symbolicWeight    = 0.7
	stabilityWeight   = 0.3
)

type dynamicStage struct {
	pipeline.BaseStage
	env *env
}

func newDynamic(e *env) *dynamicStage {
	return &dynamicStage{
		BaseStage: pipeline.BaseStage{
			StageNumber: StageDynamic,
			StageName:   DynamicKey.Name(),
			Requires:    []int{StageNetwork, StageEfficiency},
		},
		env: e,
	}
}

// Execute combines network evolution with a symbolic and stylistic reading.
func (s *dynamicStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	na, err := pipeline.Get(in.Outputs, NetworkKey)
	if err != nil {
		return nil, err
	}
	eff, err := pipeline.Get(in.Outputs, EfficiencyKey)
	if err != nil {
		return nil, err
	}

	var themes []string
	if c, ok := pipeline.Lookup(in.Outputs, ConceptualKey); ok {
		themes = c.Themes
	} else if t, ok := pipeline.Lookup(in.Outputs, TextAnalysisKey); ok {
		themes = t.Themes
	}

	evo := analytics.AnalyzeEvolution(na.History)
	excerpt, _, _, err := s.env.excerpt(in.Text)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(symbolicPrompt, TaskSymbolic,
		list(themes), evo.GrowthRate, evo.Stability, eff.NarrativeDensity, excerpt)
	reading, err := ask[SymbolicReading](ctx, s.env, analystSystem, prompt)
	if err != nil {
		return nil, err
	}

	out := &DynamicAnalysis{
		Evolution: evo,
		Reading:   reading,
		Score:     DynamicScore(reading, evo.Stability),
		Signal: confidence.Signal{
			Stage:      StageDynamic,
			Confidence: dynamicConfidence,
			Uncertainties: []confidence.Uncertainty{{
				Type:   confidence.Aleatoric,
				Aspect: "symbolism",
				Note:   "symbolic readings are interpretive",
			}},
		},
	}
	if len(na.History) < 2 {
		out.Signal.Uncertainties = append(out.Signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "evolution",
			Note:   "no phase changes recorded; evolution is flat",
		})
	}
	return out, nil
}

// DynamicScore blends the symbolic reading (depth and consistency, each
// 0-10) with network stability into a 0-100 score.
func DynamicScore(r SymbolicReading, stability float64) float64 {
	symbolic := (r.SymbolicDepth + r.StyleConsistency) / 2 * 10
	score := symbolicWeight*symbolic + stabilityWeight*stability*100
	return math.Round(math.Max(0, math.Min(100, score))*100) / 100
}
