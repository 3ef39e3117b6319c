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
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/analytics"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

// Typed keys for reading station outputs.
var (
	TextAnalysisKey = pipeline.NewKey[*TextAnalysis](StageText, "Text Analysis")
	ConceptualKey   = pipeline.NewKey[*Conceptual](StageConceptual, "Conceptual Analysis")
	NetworkKey      = pipeline.NewKey[*NetworkAnalysis](StageNetwork, "Network Builder")
	EfficiencyKey   = pipeline.NewKey[*EfficiencyReport](StageEfficiency, "Efficiency Metrics")
	DynamicKey      = pipeline.NewKey[*DynamicAnalysis](StageDynamic, "Dynamic/Symbolic Analysis")
	DiagnosticsKey  = pipeline.NewKey[*DiagnosticsReport](StageDiagnostics, "Diagnostics & Treatment")
	FinalKey        = pipeline.NewKey[*FinalReport](StageFinal, "Finalization")
)

// CharacterSketch is a character as first seen in the text.
type CharacterSketch struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role,omitempty"`
}

// TextAnalysis is the output of station 1.
type TextAnalysis struct {
	Logline    string            `json:"logline"`
	Genre      string            `json:"genre"`
	Characters []CharacterSketch `json:"characters"`
	Themes     []string          `json:"themes"`
	Chunks     int               `json:"chunks"`
	Words      int               `json:"words"`

	// Heuristic is set when characters came from cue lines instead of
	// the collaborator.
	Heuristic bool              `json:"heuristic"`
	Signal    confidence.Signal `json:"signal"`
}

// Conceptual is the output of station 2.
type Conceptual struct {
	Premise      string            `json:"premise" validate:"required"`
	Themes       []string          `json:"themes" validate:"required,min=1,dive,required"`
	CoreConflict string            `json:"core_conflict" validate:"required"`
	Tone         string            `json:"tone,omitempty"`
	Confidence   float64           `json:"confidence" validate:"gte=0,lte=1"`
	Signal       confidence.Signal `json:"signal"`
}

// SkippedEntry records an element the network builder rejected.
type SkippedEntry struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// NetworkAnalysis is the output of station 3.
type NetworkAnalysis struct {
	Title   string             `json:"title"`
	Network network.Snapshot   `json:"network"`
	History []network.Snapshot `json:"history"`
	Report  *analytics.Report  `json:"report"`
	Skipped []SkippedEntry     `json:"skipped,omitempty"`
	Signal  confidence.Signal  `json:"signal"`
}

// EfficiencyReport is the output of station 4.
type EfficiencyReport struct {
	analytics.Efficiency
	ConflictLoad map[string]int    `json:"conflict_load"`
	Notes        []string          `json:"notes"`
	Signal       confidence.Signal `json:"signal"`
}

// Symbol is a recurring image or motif.
type Symbol struct {
	Name    string `json:"name" validate:"required"`
	Meaning string `json:"meaning"`
}

// SymbolicReading is the collaborator's symbolic and stylistic answer.
type SymbolicReading struct {
	Symbols          []Symbol `json:"symbols" validate:"dive"`
	Motifs           []string `json:"motifs"`
	Style            string   `json:"style"`
	SymbolicDepth    float64  `json:"symbolic_depth" validate:"gte=0,lte=10"`
	StyleConsistency float64  `json:"style_consistency" validate:"gte=0,lte=10"`
}

// DynamicAnalysis is the output of station 5.
type DynamicAnalysis struct {
	Evolution analytics.Evolution `json:"evolution"`
	Reading   SymbolicReading     `json:"reading"`

	// Score is 0-100.
	Score  float64           `json:"score"`
	Signal confidence.Signal `json:"signal"`
}

// Recommendation is one suggested revision.
type Recommendation struct {
	Category   string `json:"category" validate:"required"`
	Priority   string `json:"priority" validate:"required,priority"`
	Suggestion string `json:"suggestion" validate:"required"`
}

// Treatment is a revision plan.
type Treatment struct {
	Summary         string           `json:"summary" validate:"required"`
	Recommendations []Recommendation `json:"recommendations" validate:"dive"`
}

// DiagnosticsReport is the output of station 6.
type DiagnosticsReport struct {
	Diagnostics analytics.Diagnostics `json:"diagnostics"`
	Treatment   Treatment             `json:"treatment"`
	Compliance  ComplianceReport      `json:"compliance"`
	Signal      confidence.Signal     `json:"signal"`
}

// FinalReport is the output of station 7.
type FinalReport struct {
	Title            string                 `json:"title"`
	ExecutiveSummary string                 `json:"executive_summary"`
	Confidence       confidence.Assessment  `json:"confidence"`
	ScoreMatrix      confidence.ScoreMatrix `json:"score_matrix"`
	Strengths        []string               `json:"strengths"`
	Weaknesses       []string               `json:"weaknesses"`
	StagesUsed       []int                  `json:"stages_used"`
}

// OverallScore reports the weighted score and its rating.
func (f *FinalReport) OverallScore() (float64, string) {
	return f.ScoreMatrix.Overall, f.ScoreMatrix.Rating
}
