// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianScreenplay/pkg/ux"
	"github.com/AleutianAI/AleutianScreenplay/services/llm"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/stations"
)

const scoreBarWidth = 24

// renderResult prints a run summary: per-station status, the score
// matrix and the final report when station 7 completed.
func renderResult(p *ux.Printer, res *pipeline.Result) {
	p.Title("Screenplay analysis: " + orUntitled(res.ProjectLabel))
	p.KeyValue("session", res.SessionID)
	p.KeyValue("duration", res.TotalDuration.Round(time.Millisecond).String())
	p.KeyValue("stations", fmt.Sprintf("%d completed, %d failed, %d skipped",
		res.CompletedCount, res.FailedCount, len(res.Skipped)))

	for _, sp := range latestProgress(res.Progress) {
		label := fmt.Sprintf("%d. %s", sp.StageNumber, sp.Name)
		switch sp.Status {
		case pipeline.StatusCompleted:
			reason := sp.Duration.Round(time.Millisecond).String()
			if sp.Attempt > 1 {
				reason = fmt.Sprintf("%s, attempt %d", reason, sp.Attempt)
			}
			p.Status(ux.IconSuccess, label, reason)
		case pipeline.StatusFailed:
			p.Status(ux.IconError, label, sp.Error)
		default:
			p.Status(ux.IconPending, label, string(sp.Status))
		}
	}
	for _, n := range res.Skipped {
		p.Status(ux.IconSkipped, fmt.Sprintf("%d. station %d", n, n), "not selected")
	}

	if final, err := pipeline.Get(res.Outputs, stations.FinalKey); err == nil {
		renderFinal(p, final)
	}

	if !res.Success && len(res.Errors) > 0 {
		lines := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			lines = append(lines, fmt.Sprintf("station %d attempt %d: %s", e.Stage, e.Attempt, e.Error))
		}
		p.List("Errors", lines)
	}
}

func renderFinal(p *ux.Printer, f *stations.FinalReport) {
	p.Box("Executive summary", f.ExecutiveSummary)
	for _, c := range confidence.Categories {
		score, ok := f.ScoreMatrix.Scores[c]
		value := "not assessed"
		if ok {
			value = p.ScoreBar(score, scoreBarWidth)
		}
		p.KeyValue(string(c), value)
	}
	p.KeyValue("overall", fmt.Sprintf("%.2f (%s)", f.ScoreMatrix.Overall, f.ScoreMatrix.Rating))
	p.KeyValue("confidence", fmt.Sprintf("%.3f from %d signals", f.Confidence.OverallConfidence, f.Confidence.SignalCount))
	p.List("Strengths", f.Strengths)
	p.List("Weaknesses", f.Weaknesses)

	notes := make([]string, 0, len(f.Confidence.Uncertainties))
	for _, u := range f.Confidence.Uncertainties {
		notes = append(notes, fmt.Sprintf("[%s] %s: %s", u.Type, u.Aspect, u.Note))
	}
	p.List("Uncertainties", notes)
}

// latestProgress keeps the last progress entry of each stage, in stage
// order.
func latestProgress(progress []pipeline.StageProgress) []pipeline.StageProgress {
	byStage := make(map[int]pipeline.StageProgress, len(progress))
	for _, sp := range progress {
		byStage[sp.StageNumber] = sp
	}
	out := make([]pipeline.StageProgress, 0, len(byStage))
	for _, sp := range byStage {
		out = append(out, sp)
	}
	slices.SortFunc(out, func(a, b pipeline.StageProgress) int { return a.StageNumber - b.StageNumber })
	return out
}

func renderEstimate(p *ux.Printer, length int, preset string, est pipeline.Estimate) {
	p.Title(fmt.Sprintf("Estimated analysis time for %d characters", length))
	stages := make([]int, 0, len(est.PerStage))
	for n := range est.PerStage {
		stages = append(stages, n)
	}
	slices.Sort(stages)
	for _, n := range stages {
		p.KeyValue(fmt.Sprintf("station %d", n), est.PerStage[n].Round(time.Second).String())
	}
	p.KeyValue("delays", est.Delays.String())
	p.KeyValue("total", fmt.Sprintf("%s (%s preset)", est.Total.Round(time.Second), preset))
}

func renderHealth(p *ux.Printer, status llm.HealthStatus) {
	latency := status.Latency.Round(time.Millisecond).String()
	if status.Healthy {
		p.Success(fmt.Sprintf("%s is healthy (%s)", status.Backend, latency))
		return
	}
	p.Error(fmt.Sprintf("%s is unhealthy: %s", status.Backend, status.Error))
}
