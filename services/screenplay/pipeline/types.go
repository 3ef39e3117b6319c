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
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of one stage within a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can follow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StageKey is the key a stage uses in status maps and serialized outputs.
func StageKey(stage int) string {
	return fmt.Sprintf("station%d", stage)
}

// StageProgress tracks one stage's execution across all of its attempts.
type StageProgress struct {
	StageNumber int           `json:"stage_number"`
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Attempt     int           `json:"attempt"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time,omitzero"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// ErrorRecord is one entry in a run's error log.
type ErrorRecord struct {
	Stage     int       `json:"stage"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RunOptions select which stages a run executes. Zero values mean the
// full range.
type RunOptions struct {
	StartFromStage int   `json:"start_from_stage,omitempty"`
	EndAtStage     int   `json:"end_at_stage,omitempty"`
	SkipStages     []int `json:"skip_stages,omitempty"`

	// OnProgress, if set, is called synchronously with every progress
	// record change during the run.
	OnProgress func(StageProgress) `json:"-"`
}

// selects reports whether stage n is executed under these options.
func (o RunOptions) selects(n, first, last int) bool {
	return n >= first && n <= last && !slices.Contains(o.SkipStages, n)
}

// bounds resolves the inclusive stage range against the registered range.
func (o RunOptions) bounds(minStage, maxStage int) (int, int, error) {
	first, last := minStage, maxStage
	if o.StartFromStage != 0 {
		first = o.StartFromStage
	}
	if o.EndAtStage != 0 {
		last = o.EndAtStage
	}
	if first < minStage || last > maxStage || first > last {
		return 0, 0, fmt.Errorf("%w: range [%d,%d] outside [%d,%d] or inverted",
			ErrInvalidOptions, first, last, minStage, maxStage)
	}
	return first, last, nil
}

// Scored is implemented by a stage output that carries the run's overall
// score. The Scheduler copies it into the Result.
type Scored interface {
	OverallScore() (score float64, rating string)
}

// Result is the outcome of one pipeline run. It is not modified after
// Execute returns.
type Result struct {
	Success      bool   `json:"success"`
	SessionID    string `json:"session_id"`
	ProjectLabel string `json:"project_label"`

	// Outputs holds completed stage outputs. Skipped and failed stages
	// are absent.
	Outputs *Outputs `json:"outputs"`

	CompletedCount int   `json:"completed_count"`
	FailedCount    int   `json:"failed_count"`
	Skipped        []int `json:"skipped"`

	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	TotalDuration time.Duration `json:"total_duration"`

	Progress    []StageProgress    `json:"progress"`
	Errors      []ErrorRecord      `json:"errors"`
	Performance PerformanceMetrics `json:"performance"`

	OverallScore  float64 `json:"overall_score,omitempty"`
	OverallRating string  `json:"overall_rating,omitempty"`
}
