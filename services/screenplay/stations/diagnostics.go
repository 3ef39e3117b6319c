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

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/analytics"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

const (
	diagnosticsConfidence = 0.8
	fallbackConfidence    = 0.6
)

type diagnosticsStage struct {
	pipeline.BaseStage
	env *env
}

func newDiagnostics(e *env) *diagnosticsStage {
	return &diagnosticsStage{
		BaseStage: pipeline.BaseStage{
			StageNumber: StageDiagnostics,
			StageName:   DiagnosticsKey.Name(),
			Requires:    []int{StageNetwork, StageDynamic},
		},
		env: e,
	}
}

// Execute diagnoses the network and drafts a revision treatment.
func (s *diagnosticsStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	na, err := pipeline.Get(in.Outputs, NetworkKey)
	if err != nil {
		return nil, err
	}
	dyn, err := pipeline.Get(in.Outputs, DynamicKey)
	if err != nil {
		return nil, err
	}

	diag := analytics.Diagnose(na.Network, na.History)
	rules := RuleRecommendations(diag)

	findings := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		findings = append(findings, fmt.Sprintf("[%s/%s] %s", r.Category, r.Priority, r.Suggestion))
	}
	findings = append(findings, fmt.Sprintf("symbolic/stylistic score %.1f", dyn.Score))

	signal := confidence.Signal{Stage: StageDiagnostics, Confidence: diagnosticsConfidence}
	prompt := fmt.Sprintf(treatmentPrompt, TaskTreatment,
		diag.OverallHealthScore, diag.CriticalityLevel, bullets(findings))
	drafted, err := ask[Treatment](ctx, s.env, analystSystem, prompt)
	switch {
	case err == nil:
		drafted.Recommendations = append(rules, drafted.Recommendations...)
	case errors.Is(err, pipeline.ErrInvalidOutput):
		telemetry.LoggerWithTrace(ctx, s.env.logger).Warn("treatment answer unusable, using rule-based treatment",
			slog.String("error", err.Error()),
		)
		drafted = Treatment{
			Summary:         fallbackSummary(diag),
			Recommendations: rules,
		}
		signal.Confidence = fallbackConfidence
		signal.Uncertainties = append(signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "treatment",
			Note:   "treatment built from structural rules only",
		})
	default:
		return nil, err
	}

	treatment, compliance := ApplyConstitution(drafted, s.env.opts.Constitution)
	return &DiagnosticsReport{
		Diagnostics: diag,
		Treatment:   treatment,
		Compliance:  compliance,
		Signal:      signal,
	}, nil
}

// RuleRecommendations derives one recommendation per diagnostic finding.
func RuleRecommendations(d analytics.Diagnostics) []Recommendation {
	recs := []Recommendation{}
	add := func(category, priority, format string, args ...any) {
		recs = append(recs, Recommendation{Category: category, Priority: priority, Suggestion: fmt.Sprintf(format, args...)})
	}

	for _, i := range d.StructuralIssues {
		add("structure", "high", "%s: %s", i.Kind, i.Description)
	}
	for _, c := range d.IsolatedCharacters {
		add("character", "medium", "tie %s into a relationship or conflict", c.Name)
	}
	for _, k := range d.AbandonedConflicts {
		add("conflict", "high", "carry %q past the %s phase (%s)", k.Name, k.Phase, k.Reason)
	}
	for _, o := range d.OverloadedCharacters {
		add("character", "medium", "share the load of %s, who carries %d conflicts", o.Name, o.ConflictCount)
	}
	for _, w := range d.WeakConnections {
		add("relationship", "low", "deepen the bond between %s (strength %.1f)", strings.Join(w.Characters, " and "), w.Strength)
	}
	for _, r := range d.Redundancies {
		add("economy", "low", "merge %s: %s", strings.Join(r.IDs, ", "), r.Reason)
	}
	return recs
}

func fallbackSummary(d analytics.Diagnostics) string {
	if d.Counts.Total == 0 {
		return fmt.Sprintf("The conflict network is sound (health %.1f). Revisions can focus on scene-level craft.", d.OverallHealthScore)
	}
	return fmt.Sprintf("The conflict network shows %d findings (health %.1f, %s criticality). Address high priority items first.",
		d.Counts.Total, d.OverallHealthScore, d.CriticalityLevel)
}
