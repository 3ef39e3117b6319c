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
	"regexp"
	"strconv"
)

// Principle is one rule that treatment text must follow.
type Principle struct {
	ID          string
	Description string
	Pattern     *regexp.Regexp
	Replacement string
}

// Constitution is an ordered set of principles.
type Constitution []Principle

// Violation records text that broke a principle before rewriting.
type Violation struct {
	PrincipleID string `json:"principle_id"`
	Field       string `json:"field"`
	Match       string `json:"match"`
}

// ComplianceReport describes what ApplyConstitution changed.
type ComplianceReport struct {
	// Compliant is true when the original text broke no principle.
	Compliant  bool        `json:"compliant"`
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations"`
}

// DefaultConstitution keeps feedback respectful, constructive and
// non-absolute.
func DefaultConstitution() Constitution {
	return Constitution{
		{
			ID:          "respect-author",
			Description: "criticise the work, never the writer",
			Pattern:     regexp.MustCompile(`(?i)\b(the (writer|author|screenwriter) (is|was) (lazy|incompetent|clueless|bad))\b`),
			Replacement: "the draft can be strengthened",
		},
		{
			ID:          "constructive",
			Description: "describe problems as opportunities",
			Pattern:     regexp.MustCompile(`(?i)\b(terrible|awful|worthless|garbage|pointless)\b`),
			Replacement: "underdeveloped",
		},
		{
			ID:          "no-absolutes",
			Description: "suggest rather than command",
			Pattern:     regexp.MustCompile(`(?i)\b(you must always|you must never|must always|must never|you must)\b`),
			Replacement: "consider",
		},
		{
			ID:          "preserve-voice",
			Description: "revise before removing",
			Pattern:     regexp.MustCompile(`(?i)\b(delete|remove|cut) (it|this|them|the scene) entirely\b`),
			Replacement: "consider condensing $2",
		},
	}
}

// ApplyConstitution rewrites treatment text that breaks a principle.
//
// Description:
//
//	Every principle is checked against the summary and each
//	recommendation's suggestion, in order. Matches are replaced and
//	recorded as violations. The input is not modified.
//
// Outputs:
//
//	Treatment - A new treatment with compliant text.
//	ComplianceReport - What was found.
func ApplyConstitution(t Treatment, c Constitution) (Treatment, ComplianceReport) {
	report := ComplianceReport{Violations: []Violation{}}
	rewrite := func(field, text string) string {
		report.Checked++
		for _, p := range c {
			for _, m := range p.Pattern.FindAllString(text, -1) {
				report.Violations = append(report.Violations, Violation{PrincipleID: p.ID, Field: field, Match: m})
			}
			text = p.Pattern.ReplaceAllString(text, p.Replacement)
		}
		return text
	}

	out := Treatment{
		Summary:         rewrite("summary", t.Summary),
		Recommendations: make([]Recommendation, len(t.Recommendations)),
	}
	for i, r := range t.Recommendations {
		r.Suggestion = rewrite("recommendations["+strconv.Itoa(i)+"]", r.Suggestion)
		out.Recommendations[i] = r
	}
	report.Compliant = len(report.Violations) == 0
	return out, report
}
