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
	"fmt"
	"strings"
)

// Task markers open every prompt so responses can be traced to a station.
const (
	TaskTextAnalysis = "TASK: TEXT_ANALYSIS"
	TaskConceptual   = "TASK: CONCEPTUAL_ANALYSIS"
	TaskNetwork      = "TASK: CONFLICT_NETWORK"
	TaskSymbolic     = "TASK: SYMBOLIC_STYLISTIC"
	TaskTreatment    = "TASK: TREATMENT"
	TaskSummary      = "TASK: EXECUTIVE_SUMMARY"
)

const analystSystem = "You are a professional script analyst. " +
	"Answer with a single JSON object and nothing else."

const textAnalysisPrompt = `%s

Read the screenplay excerpt and answer with JSON:
{"logline": string, "genre": string,
 "characters": [{"name": string, "description": string, "role": string}],
 "themes": [string]}

PROJECT: %s

SCREENPLAY:
%s`

const conceptualPrompt = `%s

Given the summary below and the screenplay excerpt, describe the story's
concept. Answer with JSON:
{"premise": string, "themes": [string], "core_conflict": string,
 "tone": string, "confidence": number between 0 and 1}

LOGLINE: %s
GENRE: %s
CHARACTERS: %s

SCREENPLAY:
%s`

const networkPrompt = `%s

Map the characters, their relationships and their conflicts. Use character
names exactly as written. Strengths are 0-10. Relationship types: family,
friendship, romantic, professional, antagonistic, mentorship, other.
Natures: positive, negative, neutral, volatile. Conflict subjects:
relationship, power, ideology, resources, information, territory, honor,
other. Scopes: personal, group, societal. Phases: emerging, escalating,
peak, resolving, resolved, aftermath. phase_history lists the phases the
conflict passes through after its first, in story order.

Answer with JSON:
{"characters": [{"name": string, "description": string, "traits": [string],
   "motivations": [string], "arc": string}],
 "relationships": [{"source": string, "target": string, "type": string,
   "nature": string, "directed": bool, "strength": number,
   "description": string, "triggers": [string]}],
 "conflicts": [{"name": string, "description": string, "subject": string,
   "scope": string, "phase": string, "strength": number,
   "characters": [string], "phase_history": [string]}]}

PREMISE: %s
CORE CONFLICT: %s
KNOWN CHARACTERS: %s

SCREENPLAY:
%s`

const symbolicPrompt = `%s

Identify recurring symbols and motifs and describe the writing style.
Score symbolic depth and stylistic consistency from 0 to 10.
Answer with JSON:
{"symbols": [{"name": string, "meaning": string}], "motifs": [string],
 "style": string, "symbolic_depth": number, "style_consistency": number}

THEMES: %s
NETWORK GROWTH RATE: %.2f
NETWORK STABILITY: %.2f
NARRATIVE DENSITY: %.2f

SCREENPLAY:
%s`

const treatmentPrompt = `%s

Write a revision treatment for the screenplay from the structural findings
below. Priorities: low, medium, high, critical.
Answer with JSON:
{"summary": string,
 "recommendations": [{"category": string, "priority": string, "suggestion": string}]}

HEALTH SCORE: %.1f (%s)
FINDINGS:
%s`

const summaryPrompt = `%s

Write a three sentence executive summary of this screenplay analysis.
Answer with JSON: {"summary": string}

TITLE: %s
OVERALL: %.2f (%s)
STRENGTHS: %s
WEAKNESSES: %s`

func list(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
