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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

// ErrEmptyScreenplay is returned by station 1 for blank input. It is an
// invalid-output error, so the executor does not retry it.
var ErrEmptyScreenplay = fmt.Errorf("%w: empty screenplay", pipeline.ErrInvalidOutput)

const (
	textConfidence      = 0.85
	excerptConfidence   = 0.75
	heuristicConfidence = 0.5
	maxCueCharacters    = 20
)

type textAnswer struct {
	Logline    string            `json:"logline" validate:"required"`
	Genre      string            `json:"genre"`
	Characters []CharacterSketch `json:"characters" validate:"required,min=1,dive"`
	Themes     []string          `json:"themes"`
}

type textAnalysisStage struct {
	pipeline.BaseStage
	env *env
}

func newTextAnalysis(e *env) *textAnalysisStage {
	return &textAnalysisStage{
		BaseStage: pipeline.BaseStage{StageNumber: StageText, StageName: TextAnalysisKey.Name()},
		env:       e,
	}
}

// Execute summarizes the screenplay. When the collaborator's answer is
// unusable, characters are taken from cue lines instead.
func (s *textAnalysisStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyScreenplay
	}
	excerpt, chunks, truncated, err := s.env.excerpt(in.Text)
	if err != nil {
		return nil, err
	}

	out := &TextAnalysis{
		Chunks: chunks,
		Words:  len(strings.Fields(in.Text)),
		Signal: confidence.Signal{Stage: StageText, Confidence: textConfidence},
	}
	if truncated {
		out.Signal.Confidence = excerptConfidence
		out.Signal.Uncertainties = append(out.Signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "coverage",
			Note:   fmt.Sprintf("summary read an excerpt of %d chunks", chunks),
		})
	}

	prompt := fmt.Sprintf(textAnalysisPrompt, TaskTextAnalysis, in.ProjectLabel, excerpt)
	ans, err := ask[textAnswer](ctx, s.env, analystSystem, prompt)
	switch {
	case err == nil:
		out.Logline = strings.TrimSpace(ans.Logline)
		out.Genre = strings.TrimSpace(ans.Genre)
		out.Characters = ans.Characters
		out.Themes = ans.Themes
		return out, nil
	case !errors.Is(err, pipeline.ErrInvalidOutput):
		return nil, err
	}

	logger := telemetry.LoggerWithTrace(ctx, s.env.logger)
	logger.Warn("text analysis answer unusable, using cue lines",
		slog.String("error", err.Error()),
	)

	names := CueCharacters(in.Text, 2)
	if len(names) == 0 {
		names = CueCharacters(in.Text, 1)
	}
	if len(names) > maxCueCharacters {
		names = names[:maxCueCharacters]
	}
	out.Heuristic = true
	out.Characters = make([]CharacterSketch, 0, len(names))
	for _, n := range names {
		out.Characters = append(out.Characters, CharacterSketch{Name: titleCase(n)})
	}
	out.Themes = []string{}
	out.Signal.Confidence = heuristicConfidence
	out.Signal.Uncertainties = append(out.Signal.Uncertainties, confidence.Uncertainty{
		Type:   confidence.Epistemic,
		Aspect: "foundation",
		Note:   "characters extracted from cue lines; no logline or themes",
	})
	return out, nil
}

// titleCase turns a cue such as "MARY ANN" into "Mary Ann".
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func sketchNames(cs []CharacterSketch) []string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Name)
	}
	return names
}
