// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"math"
	"time"
)

// StageTiming names one stage and how long it took.
type StageTiming struct {
	Number   int           `json:"number"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// PerformanceMetrics summarizes the timings of a run.
type PerformanceMetrics struct {
	AverageDuration time.Duration `json:"average_duration"`
	Slowest         StageTiming   `json:"slowest"`
	Fastest         StageTiming   `json:"fastest"`

	// TotalRetries is the sum of (attempt - 1) over all stages.
	TotalRetries int `json:"total_retries"`

	// SuccessRate is completed / (completed + failed) as a percentage.
	SuccessRate float64 `json:"success_rate"`
}

// ComputePerformance derives timing figures from a progress log.
// Only completed stages contribute to the duration figures.
func ComputePerformance(progress []StageProgress, completed, failed int) PerformanceMetrics {
	var m PerformanceMetrics
	for _, p := range progress {
		if p.Attempt > 1 {
			m.TotalRetries += p.Attempt - 1
		}
	}
	if completed+failed > 0 {
		m.SuccessRate = math.Round(float64(completed)/float64(completed+failed)*10000) / 100
	}

	var total time.Duration
	n := 0
	for _, p := range progress {
		if p.Status != StatusCompleted {
			continue
		}
		t := StageTiming{Number: p.StageNumber, Name: p.Name, Duration: p.Duration}
		if n == 0 || t.Duration > m.Slowest.Duration {
			m.Slowest = t
		}
		if n == 0 || t.Duration < m.Fastest.Duration {
			m.Fastest = t
		}
		total += p.Duration
		n++
	}
	if n > 0 {
		m.AverageDuration = (total / time.Duration(n)).Round(time.Millisecond)
	}
	return m
}

// Estimation constants.
const (
	estimateBasePerStage   = 30 * time.Second
	estimatePerCharacterMs = 0.5
)

// stageComplexity scales the per-character cost of each station.
var stageComplexity = map[int]float64{
	1: 0.8,
	2: 0.6,
	3: 1.2,
	4: 0.4,
	5: 1.0,
	6: 0.7,
	7: 0.5,
}

// Estimate is a predicted run time.
type Estimate struct {
	PerStage map[int]time.Duration `json:"per_stage"`
	Delays   time.Duration         `json:"delays"`
	Total    time.Duration         `json:"total"`
}

// EstimateAnalysisTime predicts how long a full run over a text of the
// given length takes.
//
// Description:
//
//	Each station costs 30s plus 0.5ms per character scaled by its
//	complexity factor. The inter-stage delay is added once between each
//	pair of consecutive stations.
func EstimateAnalysisTime(textLength int, interStageDelay time.Duration) Estimate {
	if textLength < 0 {
		textLength = 0
	}
	e := Estimate{PerStage: make(map[int]time.Duration, len(stageComplexity))}
	for stage, factor := range stageComplexity {
		ms := float64(textLength) * estimatePerCharacterMs * factor
		d := estimateBasePerStage + time.Duration(math.Round(ms*float64(time.Millisecond)))
		e.PerStage[stage] = d
		e.Total += d
	}
	e.Delays = interStageDelay * time.Duration(len(stageComplexity)-1)
	e.Total += e.Delays
	return e
}
