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
	"log/slog"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

const (
	strengthThreshold = 75.0
	weaknessThreshold = 50.0
)

type summaryAnswer struct {
	Summary string `json:"summary" validate:"required"`
}

type finalizationStage struct {
	pipeline.BaseStage
	env *env
}

func newFinalization(e *env) *finalizationStage {
	return &finalizationStage{
		BaseStage: pipeline.BaseStage{
			StageNumber: StageFinal,
			StageName:   FinalKey.Name(),
			Requires:    []int{StageNetwork, StageDiagnostics},
		},
		env: e,
	}
}

// Execute aggregates confidence and builds the score matrix. Outputs of
// stations 1, 2, 4 and 5 are used when present.
func (s *finalizationStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	na, err := pipeline.Get(in.Outputs, NetworkKey)
	if err != nil {
		return nil, err
	}
	diag, err := pipeline.Get(in.Outputs, DiagnosticsKey)
	if err != nil {
		return nil, err
	}

	scores, signals := CollectScores(in.Outputs)
	matrix, err := confidence.BuildScoreMatrix(scores, confidence.DefaultWeights())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrFatal, err)
	}

	out := &FinalReport{
		Title:       na.Title,
		Confidence:  confidence.Aggregate(signals),
		ScoreMatrix: matrix,
		Strengths:   []string{},
		Weaknesses:  []string{},
		StagesUsed:  in.Outputs.Stages(),
	}
	for _, c := range confidence.Categories {
		v, ok := matrix.Scores[c]
		switch {
		case !ok:
			out.Weaknesses = append(out.Weaknesses, fmt.Sprintf("%s: not assessed", c))
		case v >= strengthThreshold:
			out.Strengths = append(out.Strengths, fmt.Sprintf("%s: %.1f", c, v))
		case v < weaknessThreshold:
			out.Weaknesses = append(out.Weaknesses, fmt.Sprintf("%s: %.1f", c, v))
		}
	}

	prompt := fmt.Sprintf(summaryPrompt, TaskSummary,
		out.Title, matrix.Overall, matrix.Rating, list(out.Strengths), list(out.Weaknesses))
	ans, err := ask[summaryAnswer](ctx, s.env, analystSystem, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		telemetry.LoggerWithTrace(ctx, s.env.logger).Warn("executive summary unavailable, using built summary",
			slog.String("error", err.Error()),
		)
		out.ExecutiveSummary = builtSummary(out, diag)
	} else {
		out.ExecutiveSummary = strings.TrimSpace(ans.Summary)
	}
	return out, nil
}

// CollectScores maps the available station outputs onto score matrix
// categories and gathers their confidence signals in station order.
//
// Description:
//
//	foundation         station 1 confidence x 100
//	conceptual         station 2 confidence x 100
//	conflict_network   100 x (0.4 balance + 0.3 complexity + 0.3 dynamic range)
//	efficiency         station 4 overall
//	dynamic_symbolic   station 5 score
//	diagnostics        station 6 health score
//
// A category whose station did not complete is left out.
func CollectScores(o *pipeline.Outputs) (map[confidence.Category]float64, []confidence.Signal) {
	scores := make(map[confidence.Category]float64)
	var signals []confidence.Signal

	if t, ok := pipeline.Lookup(o, TextAnalysisKey); ok {
		scores[confidence.CategoryFoundation] = round2(t.Signal.Confidence * 100)
		signals = append(signals, t.Signal)
	}
	if c, ok := pipeline.Lookup(o, ConceptualKey); ok {
		scores[confidence.CategoryConceptual] = round2(c.Signal.Confidence * 100)
		signals = append(signals, c.Signal)
	}
	if na, ok := pipeline.Lookup(o, NetworkKey); ok && na.Report != nil {
		m := na.Report.Metrics
		scores[confidence.CategoryConflictNetwork] = round2(100 * (0.4*m.Balance + 0.3*m.Complexity + 0.3*m.DynamicRange))
		signals = append(signals, na.Signal)
	}
	if e, ok := pipeline.Lookup(o, EfficiencyKey); ok {
		scores[confidence.CategoryEfficiency] = e.Overall
		signals = append(signals, e.Signal)
	}
	if d, ok := pipeline.Lookup(o, DynamicKey); ok {
		scores[confidence.CategoryDynamicSymbolic] = d.Score
		signals = append(signals, d.Signal)
	}
	if d, ok := pipeline.Lookup(o, DiagnosticsKey); ok {
		scores[confidence.CategoryDiagnostics] = d.Diagnostics.OverallHealthScore
		signals = append(signals, d.Signal)
	}
	return scores, signals
}

func builtSummary(f *FinalReport, d *DiagnosticsReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scores %.2f overall (%s) at %.0f%% confidence.",
		f.Title, f.ScoreMatrix.Overall, f.ScoreMatrix.Rating, f.Confidence.OverallConfidence*100)
	if len(f.Strengths) > 0 {
		fmt.Fprintf(&b, " Strongest: %s.", strings.Join(f.Strengths, ", "))
	}
	if len(f.Weaknesses) > 0 {
		fmt.Fprintf(&b, " Weakest: %s.", strings.Join(f.Weaknesses, ", "))
	}
	if d.Treatment.Summary != "" {
		b.WriteString(" ")
		b.WriteString(d.Treatment.Summary)
	}
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
