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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Helpers
// =============================================================================

func fnStage(n int, deps []int, fn func(ctx context.Context, in Input) (any, error)) Stage {
	return &StageFunc{
		BaseStage: BaseStage{StageNumber: n, StageName: fmt.Sprintf("Station %d", n), Requires: deps},
		Fn:        fn,
	}
}

func echo(n int) func(context.Context, Input) (any, error) {
	return func(context.Context, Input) (any, error) {
		return fmt.Sprintf("output %d", n), nil
	}
}

// stationChain builds seven stages with the screenplay dependency chain.
// calls counts how often each stage body ran.
func stationChain(calls map[int]int) []Stage {
	deps := map[int][]int{
		1: nil,
		2: {1},
		3: {1, 2},
		4: {3},
		5: {3, 4},
		6: {3, 5},
		7: {3, 6},
	}
	stages := make([]Stage, 0, 7)
	for n := 1; n <= 7; n++ {
		stages = append(stages, fnStage(n, deps[n], func(ctx context.Context, in Input) (any, error) {
			calls[n]++
			return echo(n)(ctx, in)
		}))
	}
	return stages
}

func newTestScheduler(t *testing.T, stages []Stage) (*Scheduler, *sleepRecorder) {
	t.Helper()
	cfg := Config{Retry: RetryPolicy{MaxRetries: 1, Enabled: true}, InterStageDelay: time.Second}
	s, err := NewScheduler(stages, cfg, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	rec := &sleepRecorder{}
	s.sleep = rec.sleep
	return s, rec
}

type scoredOutput struct{ score float64 }

func (s scoredOutput) OverallScore() (float64, string) { return s.score, "Good" }

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestScheduler_FullRun(t *testing.T) {
	calls := map[int]int{}
	s, rec := newTestScheduler(t, stationChain(calls))

	res := s.Execute(context.Background(), "INT. HOUSE - DAY", "pilot", RunOptions{})
	if !res.Success || res.CompletedCount != 7 || res.FailedCount != 0 {
		t.Fatalf("result = success:%v completed:%d failed:%d", res.Success, res.CompletedCount, res.FailedCount)
	}
	if res.Outputs.Len() != 7 || len(res.Progress) != 7 || len(res.Errors) != 0 {
		t.Errorf("outputs=%d progress=%d errors=%d", res.Outputs.Len(), len(res.Progress), len(res.Errors))
	}
	if len(rec.waits) != 6 {
		t.Errorf("inter-stage delays = %d, want 6", len(rec.waits))
	}
	if res.SessionID == "" || len(res.SessionID) != 12 {
		t.Errorf("SessionID = %q", res.SessionID)
	}
	if res.Performance.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100", res.Performance.SuccessRate)
	}

	got, err := Get(res.Outputs, NewKey[string](5, "dynamic"))
	if err != nil || got != "output 5" {
		t.Errorf("Get(station5) = (%q, %v)", got, err)
	}
}

func TestScheduler_SkipStageFailsDependents(t *testing.T) {
	calls := map[int]int{}
	s, _ := newTestScheduler(t, stationChain(calls))

	res := s.Execute(context.Background(), "text", "pilot", RunOptions{SkipStages: []int{3}})

	if res.Outputs.Has(3) {
		t.Error("station3 present after being skipped")
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.CompletedCount != 2 || res.FailedCount != 4 {
		t.Errorf("completed=%d failed=%d, want 2/4", res.CompletedCount, res.FailedCount)
	}
	st := s.StageStatus()
	for _, n := range []int{4, 5, 6, 7} {
		if st[StageKey(n)] != StatusFailed {
			t.Errorf("station%d status = %s, want failed", n, st[StageKey(n)])
		}
		if calls[n] != 0 {
			t.Errorf("station%d body ran %d times", n, calls[n])
		}
	}
	if _, ok := st["station3"]; ok {
		t.Error("skipped station has a progress record")
	}
	if len(res.Errors) != 4 {
		t.Fatalf("errors = %d, want 4", len(res.Errors))
	}
	for _, e := range res.Errors {
		if !strings.Contains(e.Error, ErrMissingDependency.Error()) {
			t.Errorf("station%d error = %q, want missing dependency", e.Stage, e.Error)
		}
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != 3 {
		t.Errorf("Skipped = %v, want [3]", res.Skipped)
	}

	raw, err := json.Marshal(res.Outputs)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["station3"]; ok {
		t.Error("serialized outputs contain station3")
	}
	if decoded["station1"] != "output 1" {
		t.Errorf("station1 = %v", decoded["station1"])
	}
}

func TestScheduler_IndependentStagesRunAfterFailure(t *testing.T) {
	stages := []Stage{
		fnStage(1, nil, func(context.Context, Input) (any, error) { return nil, errors.New("down") }),
		fnStage(2, []int{1}, echo(2)),
		fnStage(3, nil, echo(3)),
	}
	s, rec := newTestScheduler(t, stages)

	res := s.Execute(context.Background(), "text", "", RunOptions{})
	if res.CompletedCount != 1 || res.FailedCount != 2 {
		t.Errorf("completed=%d failed=%d, want 1/2", res.CompletedCount, res.FailedCount)
	}
	if !res.Outputs.Has(3) {
		t.Error("independent station3 did not run")
	}
	if len(rec.waits) != 0 {
		t.Errorf("delays = %v, want none after failed stages or the last stage", rec.waits)
	}
}

func TestScheduler_DelayOnlyAfterCompletedStages(t *testing.T) {
	stages := []Stage{
		fnStage(1, nil, echo(1)),
		fnStage(2, nil, func(context.Context, Input) (any, error) { return nil, errors.New("down") }),
		fnStage(3, nil, echo(3)),
		fnStage(4, nil, echo(4)),
	}
	s, rec := newTestScheduler(t, stages)

	s.Execute(context.Background(), "text", "", RunOptions{})
	if len(rec.waits) != 2 {
		t.Errorf("delays = %d, want 2", len(rec.waits))
	}
	for _, w := range rec.waits {
		if w != time.Second {
			t.Errorf("delay = %v, want 1s", w)
		}
	}
}

func TestScheduler_Range(t *testing.T) {
	var order []int
	var stages []Stage
	for n := 1; n <= 5; n++ {
		stages = append(stages, fnStage(n, nil, func(context.Context, Input) (any, error) {
			order = append(order, n)
			return n, nil
		}))
	}
	s, _ := newTestScheduler(t, stages)

	res := s.Execute(context.Background(), "text", "", RunOptions{StartFromStage: 2, EndAtStage: 4, SkipStages: []int{3}})
	if len(order) != 2 || order[0] != 2 || order[1] != 4 {
		t.Errorf("executed = %v, want [2 4]", order)
	}
	want := []int{1, 3, 5}
	if len(res.Skipped) != len(want) {
		t.Fatalf("Skipped = %v, want %v", res.Skipped, want)
	}
	for i := range want {
		if res.Skipped[i] != want[i] {
			t.Errorf("Skipped = %v, want %v", res.Skipped, want)
		}
	}
	if !res.Success {
		t.Error("range run failed")
	}
}

func TestScheduler_InvalidOptions(t *testing.T) {
	calls := map[int]int{}
	s, _ := newTestScheduler(t, stationChain(calls))

	for _, opts := range []RunOptions{{EndAtStage: 9}, {StartFromStage: 5, EndAtStage: 2}, {StartFromStage: -1}} {
		res := s.Execute(context.Background(), "text", "", opts)
		if res == nil || res.Success {
			t.Fatalf("opts %+v: result = %+v, want failure", opts, res)
		}
		if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error, ErrInvalidOptions.Error()) {
			t.Errorf("opts %+v: errors = %+v", opts, res.Errors)
		}
		if err := s.ValidateOptions(opts); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("ValidateOptions(%+v) = %v", opts, err)
		}
	}
	if err := s.ValidateOptions(RunOptions{StartFromStage: 2, EndAtStage: 6}); err != nil {
		t.Errorf("ValidateOptions(valid) = %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("stages ran for invalid options: %v", calls)
	}
}

func TestScheduler_PanicFailsOnlyThatStage(t *testing.T) {
	ran3 := false
	stages := []Stage{
		fnStage(1, nil, echo(1)),
		fnStage(2, nil, func(context.Context, Input) (any, error) {
			var m map[string]int
			m["x"] = 1
			return 2, nil
		}),
		fnStage(3, nil, func(context.Context, Input) (any, error) { ran3 = true; return 3, nil }),
	}
	s, _ := newTestScheduler(t, stages)

	res := s.Execute(context.Background(), "text", "", RunOptions{})
	if res == nil {
		t.Fatal("Execute() returned nil")
	}
	if res.Success || res.FailedCount != 1 || res.CompletedCount != 2 {
		t.Errorf("success=%v failed=%d completed=%d, want false/1/2", res.Success, res.FailedCount, res.CompletedCount)
	}
	if !ran3 {
		t.Error("independent stage after the panic did not run")
	}
	if len(res.Errors) != 1 || res.Errors[0].Stage != 2 || !strings.Contains(res.Errors[0].Error, ErrStagePanic.Error()) {
		t.Errorf("errors = %+v", res.Errors)
	}
	if res.Progress[1].Status != StatusFailed || res.Progress[2].Status != StatusCompleted {
		t.Errorf("statuses = %s/%s, want failed/completed", res.Progress[1].Status, res.Progress[2].Status)
	}
	if res.Outputs.Has(2) || !res.Outputs.Has(3) {
		t.Errorf("outputs = %v, want 3 without 2", res.Outputs.Stages())
	}
	if res.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
}

func TestScheduler_CanceledContext(t *testing.T) {
	calls := map[int]int{}
	s, _ := newTestScheduler(t, stationChain(calls))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Execute(ctx, "text", "", RunOptions{})
	if res.Success || len(calls) != 0 {
		t.Errorf("success=%v calls=%v, want failure before any stage", res.Success, calls)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error, context.Canceled.Error()) {
		t.Errorf("errors = %+v", res.Errors)
	}
}

func TestScheduler_ScoredOutput(t *testing.T) {
	stages := []Stage{
		fnStage(1, nil, echo(1)),
		fnStage(2, []int{1}, func(context.Context, Input) (any, error) { return scoredOutput{score: 71.5}, nil }),
	}
	s, _ := newTestScheduler(t, stages)

	res := s.Execute(context.Background(), "text", "", RunOptions{})
	if res.OverallScore != 71.5 || res.OverallRating != "Good" {
		t.Errorf("score = %v %q", res.OverallScore, res.OverallRating)
	}
}

func TestScheduler_IntrospectionReturnsCopies(t *testing.T) {
	calls := map[int]int{}
	s, _ := newTestScheduler(t, stationChain(calls))
	s.Execute(context.Background(), "text", "", RunOptions{SkipStages: []int{3}})

	progress := s.ProgressLog()
	progress[0].Status = StatusPending
	if s.ProgressLog()[0].Status != StatusCompleted {
		t.Error("ProgressLog exposes live records")
	}
	errs := s.Errors()
	errs[0].Error = "changed"
	if s.Errors()[0].Error == "changed" {
		t.Error("Errors exposes live records")
	}
	status := s.StageStatus()
	status["station1"] = StatusFailed
	if s.StageStatus()["station1"] != StatusCompleted {
		t.Error("StageStatus exposes live map")
	}

	s.ClearProgressLog()
	if len(s.ProgressLog()) != 0 || len(s.Errors()) == 0 {
		t.Error("ClearProgressLog should drop progress and keep errors")
	}
}

func TestScheduler_RunsDoNotShareLogs(t *testing.T) {
	calls := map[int]int{}
	s, _ := newTestScheduler(t, stationChain(calls))

	first := s.Execute(context.Background(), "text", "", RunOptions{SkipStages: []int{3}})
	second := s.Execute(context.Background(), "text", "", RunOptions{})

	if len(first.Errors) != 4 || len(second.Errors) != 0 {
		t.Errorf("errors first=%d second=%d, want 4/0", len(first.Errors), len(second.Errors))
	}
	if len(s.ProgressLog()) != 7 {
		t.Errorf("progress after second run = %d, want 7", len(s.ProgressLog()))
	}
	if first.Outputs.Has(3) || !second.Outputs.Has(3) {
		t.Error("outputs leaked between runs")
	}
	if first.SessionID == second.SessionID {
		t.Error("session ids repeat")
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		cfg     Config
		wantErr error
	}{
		{"no stages", nil, DefaultConfig(), ErrNoStages},
		{"duplicate", []Stage{fnStage(1, nil, echo(1)), fnStage(1, nil, echo(1))}, DefaultConfig(), ErrDuplicateStage},
		{"unknown dependency", []Stage{fnStage(1, []int{9}, echo(1))}, DefaultConfig(), ErrUnknownDependency},
		{"forward dependency", []Stage{fnStage(1, []int{2}, echo(1)), fnStage(2, nil, echo(2))}, DefaultConfig(), ErrUnknownDependency},
		{"negative delay", []Stage{fnStage(1, nil, echo(1))}, Config{Retry: DefaultRetryPolicy(), InterStageDelay: -1}, ErrInvalidPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScheduler(tt.stages, tt.cfg, nil); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewScheduler() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	s, err := NewScheduler([]Stage{fnStage(2, nil, echo(2)), fnStage(1, nil, echo(1))}, DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Stages(); got[0] != 1 || got[1] != 2 {
		t.Errorf("Stages() = %v, want sorted", got)
	}
}

func TestScheduler_OnProgress(t *testing.T) {
	calls := map[int]int{}
	s, _ := newTestScheduler(t, stationChain(calls))

	var events []StageProgress
	res := s.Execute(context.Background(), "text", "label", RunOptions{
		EndAtStage: 3,
		OnProgress: func(p StageProgress) { events = append(events, p) },
	})
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}

	byStage := map[int][]Status{}
	for _, e := range events {
		byStage[e.StageNumber] = append(byStage[e.StageNumber], e.Status)
	}
	if len(byStage) != 3 {
		t.Fatalf("events for %d stages, want 3: %+v", len(byStage), events)
	}
	for n, statuses := range byStage {
		if statuses[0] != StatusPending {
			t.Errorf("stage %d first status = %s, want pending", n, statuses[0])
		}
		if statuses[len(statuses)-1] != StatusCompleted {
			t.Errorf("stage %d last status = %s, want completed", n, statuses[len(statuses)-1])
		}
	}
	if events[0].StageNumber != 1 || events[len(events)-1].StageNumber != 3 {
		t.Errorf("events out of order: first %d last %d", events[0].StageNumber, events[len(events)-1].StageNumber)
	}
}
