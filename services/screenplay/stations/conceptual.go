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
	"strings"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

// defaultConceptualConfidence stands in when the answer omits one.
const defaultConceptualConfidence = 0.7

type conceptualStage struct {
	pipeline.BaseStage
	env *env
}

func newConceptual(e *env) *conceptualStage {
	return &conceptualStage{
		BaseStage: pipeline.BaseStage{
			StageNumber: StageConceptual,
			StageName:   ConceptualKey.Name(),
			Requires:    []int{StageText},
		},
		env: e,
	}
}

// Execute asks for premise, themes and core conflict.
func (s *conceptualStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	text, err := pipeline.Get(in.Outputs, TextAnalysisKey)
	if err != nil {
		return nil, err
	}
	excerpt, _, _, err := s.env.excerpt(in.Text)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(conceptualPrompt, TaskConceptual,
		orNone(text.Logline), orNone(text.Genre), list(sketchNames(text.Characters)), excerpt)
	out, err := ask[Conceptual](ctx, s.env, analystSystem, prompt)
	if err != nil {
		return nil, err
	}

	out.Premise = strings.TrimSpace(out.Premise)
	out.CoreConflict = strings.TrimSpace(out.CoreConflict)
	out.Signal = confidence.Signal{Stage: StageConceptual, Confidence: out.Confidence}
	if out.Confidence == 0 {
		out.Confidence = defaultConceptualConfidence
		out.Signal.Confidence = defaultConceptualConfidence
		out.Signal.Uncertainties = append(out.Signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "concept",
			Note:   "no self-reported confidence",
		})
	}
	if text.Heuristic {
		out.Signal.Uncertainties = append(out.Signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "foundation",
			Note:   "concept built without a summary from station 1",
		})
	}
	return &out, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
