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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Helpers
// =============================================================================

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestExecutor(t *testing.T, policy RetryPolicy) (*Executor, *RunLog, *sleepRecorder) {
	t.Helper()
	log := NewRunLog(nil)
	e, err := NewExecutor(policy, log, nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	rec := &sleepRecorder{}
	e.sleep = rec.sleep
	return e, log, rec
}

func retrying(attempts int) RetryPolicy {
	return RetryPolicy{MaxRetries: attempts, RetryDelay: time.Second, Enabled: true}
}

// =============================================================================
// Executor Tests
// =============================================================================

func TestExecutor_AlwaysFailingExhaustsAttempts(t *testing.T) {
	e, log, rec := newTestExecutor(t, retrying(3))

	calls := 0
	out, ok := e.Run(context.Background(), 1, "Text Analysis", func(context.Context, int) (any, error) {
		calls++
		return nil, errors.New("upstream timeout")
	})

	if ok || out != nil {
		t.Fatalf("Run() = (%v, %v), want (nil, false)", out, ok)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	if errs := log.Errors(); len(errs) != 3 {
		t.Errorf("error log has %d entries, want 3", len(errs))
	}
	progress := log.ProgressLog()
	if len(progress) != 1 {
		t.Fatalf("progress records = %d, want 1", len(progress))
	}
	if progress[0].Status != StatusFailed || progress[0].Attempt != 3 {
		t.Errorf("progress = %+v, want failed at attempt 3", progress[0])
	}
	if progress[0].Error != "upstream timeout" {
		t.Errorf("progress error = %q", progress[0].Error)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", rec.waits, want)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, rec.waits[i], want[i])
		}
	}
}

func TestExecutor_SucceedsOnThirdAttempt(t *testing.T) {
	e, log, _ := newTestExecutor(t, retrying(3))

	var seen []Status
	out, ok := e.Run(context.Background(), 2, "Conceptual Analysis", func(_ context.Context, attempt int) (any, error) {
		seen = append(seen, log.ProgressLog()[0].Status)
		if attempt < 3 {
			return nil, errors.New("flaky")
		}
		return "premise", nil
	})

	if !ok || out != "premise" {
		t.Fatalf("Run() = (%v, %v), want (premise, true)", out, ok)
	}
	progress := log.ProgressLog()[0]
	if progress.Status != StatusCompleted || progress.Attempt != 3 {
		t.Errorf("progress = %+v, want completed at attempt 3", progress)
	}
	if progress.Error != "" {
		t.Errorf("completed record kept error %q", progress.Error)
	}
	if len(log.Errors()) != 2 {
		t.Errorf("errors = %d, want 2", len(log.Errors()))
	}

	wantSeen := []Status{StatusRunning, StatusRetrying, StatusRetrying}
	for i, s := range wantSeen {
		if seen[i] != s {
			t.Errorf("status before attempt %d = %s, want %s", i+1, seen[i], s)
		}
	}
}

func TestExecutor_RetryDisabledRunsOnce(t *testing.T) {
	policy := retrying(5)
	policy.Enabled = false
	e, log, rec := newTestExecutor(t, policy)

	calls := 0
	if _, ok := e.Run(context.Background(), 1, "s", func(context.Context, int) (any, error) {
		calls++
		return nil, errors.New("boom")
	}); ok {
		t.Fatal("Run() succeeded")
	}
	if calls != 1 || len(log.Errors()) != 1 || len(rec.waits) != 0 {
		t.Errorf("calls=%d errors=%d waits=%d, want 1/1/0", calls, len(log.Errors()), len(rec.waits))
	}
}

func TestExecutor_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryBad  bool
		wantCalls int
	}{
		{"transient", errors.New("503"), false, 3},
		{"missing dependency", ErrMissingDependency, false, 1},
		{"invalid output", ErrInvalidOutput, false, 1},
		{"invalid output retried", ErrInvalidOutput, true, 3},
		{"wrapped invalid output", NewStageError(3, "n", ErrInvalidOutput), false, 1},
		{"collaborator timeout", fmt.Errorf("generate: %w", context.DeadlineExceeded), false, 3},
		{"panic", fmt.Errorf("%w: boom", ErrStagePanic), false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := retrying(3)
			policy.RetryInvalidOutput = tt.retryBad
			e, _, _ := newTestExecutor(t, policy)

			calls := 0
			e.Run(context.Background(), 1, "s", func(context.Context, int) (any, error) {
				calls++
				return nil, tt.err
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestExecutor_CollaboratorTimeoutIsRetried(t *testing.T) {
	e, log, rec := newTestExecutor(t, retrying(3))

	calls := 0
	out, ok := e.Run(context.Background(), 3, "Network Builder", func(ctx context.Context, _ int) (any, error) {
		calls++
		callCtx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		<-callCtx.Done()
		if calls < 3 {
			return nil, fmt.Errorf("generate: %w", callCtx.Err())
		}
		return "network", nil
	})

	if !ok || out != "network" {
		t.Fatalf("Run() = (%v, %v), want (network, true)", out, ok)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	errs := log.Errors()
	if len(errs) != 2 || !strings.Contains(errs[0].Error, context.DeadlineExceeded.Error()) {
		t.Errorf("errors = %+v, want two deadline entries", errs)
	}
	if len(rec.waits) != 2 {
		t.Errorf("backoff waits = %v, want 2", rec.waits)
	}
}

func TestExecutor_CanceledRunIsNotRetried(t *testing.T) {
	e, log, rec := newTestExecutor(t, retrying(3))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, ok := e.Run(ctx, 1, "s", func(ctx context.Context, _ int) (any, error) {
		calls++
		cancel()
		return nil, ctx.Err()
	})
	if ok {
		t.Fatal("Run() succeeded")
	}
	if calls != 1 || len(log.Errors()) != 1 || len(rec.waits) != 0 {
		t.Errorf("calls=%d errors=%d waits=%d, want 1/1/0", calls, len(log.Errors()), len(rec.waits))
	}
}

func TestExecutor_PanicIsRecoveredPerAttempt(t *testing.T) {
	e, log, _ := newTestExecutor(t, retrying(3))

	calls := 0
	out, ok := e.Run(context.Background(), 2, "Conceptual", func(context.Context, int) (any, error) {
		calls++
		if calls == 1 {
			var m map[string]int
			m["x"] = 1
		}
		return "ok", nil
	})

	if !ok || out != "ok" {
		t.Fatalf("Run() = (%v, %v), want (ok, true)", out, ok)
	}
	errs := log.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Error, ErrStagePanic.Error()) {
		t.Errorf("errors = %+v, want one panic entry", errs)
	}
	if p := log.ProgressLog()[0]; p.Status != StatusCompleted || p.Attempt != 2 {
		t.Errorf("progress = %+v, want completed at attempt 2", p)
	}
}

func TestExecutor_NilOutputIsInvalid(t *testing.T) {
	e, log, _ := newTestExecutor(t, retrying(3))
	if _, ok := e.Run(context.Background(), 1, "s", func(context.Context, int) (any, error) {
		return nil, nil
	}); ok {
		t.Fatal("nil output reported as success")
	}
	errs := log.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Error, ErrInvalidOutput.Error()) {
		t.Errorf("errors = %+v, want one invalid output entry", errs)
	}
}

func TestExecutor_CanceledBackoffStopsRetrying(t *testing.T) {
	log := NewRunLog(nil)
	e, err := NewExecutor(RetryPolicy{MaxRetries: 3, RetryDelay: time.Hour, Enabled: true}, log, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan bool)
	go func() {
		_, ok := e.Run(ctx, 1, "s", func(context.Context, int) (any, error) {
			calls++
			cancel()
			return nil, errors.New("down")
		})
		done <- ok
	}()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Run() succeeded")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backoff ignored cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if got := log.ProgressLog()[0].Status; got != StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
}

func TestRetryPolicy(t *testing.T) {
	if err := (RetryPolicy{MaxRetries: -1}).Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("negative retries error = %v", err)
	}
	if err := (RetryPolicy{RetryDelay: -time.Second}).Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("negative delay error = %v", err)
	}
	if got := (RetryPolicy{MaxRetries: 0, Enabled: true}).Attempts(); got != 1 {
		t.Errorf("Attempts() = %d, want 1", got)
	}
	p := DefaultRetryPolicy()
	if p.Attempts() != 3 || p.Backoff(2) != 10*time.Second {
		t.Errorf("default policy attempts=%d backoff(2)=%v", p.Attempts(), p.Backoff(2))
	}
}

func TestStageError(t *testing.T) {
	err := NewStageError(4, "Efficiency", ErrMissingDependency)
	if !errors.Is(err, ErrMissingDependency) {
		t.Error("StageError does not unwrap")
	}
	var se *StageError
	if !errors.As(error(err), &se) || se.Stage != 4 {
		t.Errorf("errors.As = %+v", se)
	}
	if !strings.Contains(err.Error(), "station 4 (Efficiency)") {
		t.Errorf("Error() = %q", err.Error())
	}
}
