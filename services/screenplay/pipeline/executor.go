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
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
)

var (
	tracer = otel.Tracer("screenplay.pipeline")
	meter  = otel.Meter("screenplay.pipeline")
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// RetryPolicy controls how often and how patiently a stage is retried.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts when Enabled.
	MaxRetries int `yaml:"max_retries" json:"max_retries" validate:"gte=1,lte=10"`

	// RetryDelay is the base backoff. Attempt n waits RetryDelay*n.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" validate:"gte=0"`

	// Enabled turns retries on. Disabled means exactly one attempt.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RetryInvalidOutput retries ErrInvalidOutput like a transient error.
	RetryInvalidOutput bool `yaml:"retry_invalid_output" json:"retry_invalid_output"`
}

// DefaultRetryPolicy returns three attempts with a 5s linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Enabled:    true,
	}
}

// Validate checks the policy for negative values.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries %d", ErrInvalidPolicy, p.MaxRetries)
	}
	if p.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay %s", ErrInvalidPolicy, p.RetryDelay)
	}
	return nil
}

// Attempts returns how many attempts the policy allows.
func (p RetryPolicy) Attempts() int {
	if !p.Enabled || p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// Backoff returns the wait after a failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.RetryDelay * time.Duration(attempt)
}

// retryable classifies err for another attempt. A finished run is detected
// from the outer context in Run, not from err.
func (p RetryPolicy) retryable(err error) bool {
	switch {
	case errors.Is(err, ErrMissingDependency):
		return false
	case errors.Is(err, ErrInvalidOutput):
		return p.RetryInvalidOutput
	default:
		return true
	}
}

// UnitOfWork is one attempt at a stage. attempt starts at 1.
type UnitOfWork func(ctx context.Context, attempt int) (any, error)

// Executor runs units of work under a retry policy and records their
// progress in a RunLog.
//
// Description:
//
//	Before each attempt the progress record moves to running (first
//	attempt) or retrying. A successful attempt completes the record. A
//	failed attempt appends to the error log and, when attempts remain and
//	the error is retryable, waits RetryDelay*attempt before trying again.
//	The wait is cooperative: a canceled context ends it early and fails
//	the stage. A panic inside an attempt is recovered and treated as that
//	attempt's error, so it never escapes to the Scheduler.
//
// Thread Safety:
//
//	Safe for concurrent use, though the Scheduler calls it sequentially.
type Executor struct {
	policy RetryPolicy
	log    *RunLog
	logger *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// Metrics (initialized lazily)
	metricsOnce   sync.Once
	stageLatency  metric.Float64Histogram
	stageAttempts metric.Int64Counter
	stageFailures metric.Int64Counter
}

// NewExecutor creates an executor writing to log.
//
// Inputs:
//
//	policy - Retry policy. Must pass Validate.
//	log - Run log to record into. Must not be nil.
//	logger - Logger for stage logs. If nil, uses slog.Default().
//
// Outputs:
//
//	*Executor - The configured executor.
//	error - Non-nil if the policy is invalid or log is nil.
func NewExecutor(policy RetryPolicy, log *RunLog, logger *slog.Logger) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, fmt.Errorf("%w: nil run log", ErrFatal)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		policy: policy,
		log:    log,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// initMetrics lazily initializes metrics.
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stageLatency, err = meter.Float64Histogram(telemetry.MetricStageDuration,
			metric.WithDescription("Time spent executing each station including retries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_latency: "+err.Error())
		}

		e.stageAttempts, err = meter.Int64Counter(telemetry.MetricStageAttempts,
			metric.WithDescription("Number of station attempts"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_attempts: "+err.Error())
		}

		e.stageFailures, err = meter.Int64Counter(telemetry.MetricStageFailures,
			metric.WithDescription("Number of stations that failed after all attempts"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_failures: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some pipeline metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// attempt runs one unit of work, converting a panic into ErrStagePanic.
func (e *Executor) attempt(ctx context.Context, n int, work UnitOfWork, logger *slog.Logger) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrStagePanic, r)
			logger.Error("station attempt panicked",
				slog.Int("attempt", n),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	return work(ctx, n)
}

// Run executes work for stage until it succeeds or attempts run out.
//
// Outputs:
//
//	any - The output of the successful attempt, nil otherwise.
//	bool - True when the stage completed.
func (e *Executor) Run(ctx context.Context, stage int, name string, work UnitOfWork) (any, bool) {
	e.initMetrics()

	ctx, span := tracer.Start(ctx, fmt.Sprintf("pipeline.Station%d", stage),
		trace.WithAttributes(
			attribute.Int("pipeline.stage", stage),
			attribute.String("pipeline.stage_name", name),
		),
	)
	defer span.End()
	logger := telemetry.LoggerWithStage(ctx, e.logger, stage, name)

	idx := e.log.begin(stage, name)
	stageAttr := metric.WithAttributes(attribute.Int("stage", stage))
	attempts := e.policy.Attempts()
	start := e.now()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status := StatusRunning
		if attempt > 1 {
			status = StatusRetrying
		}
		attemptStart := e.now()
		e.log.update(idx, func(p *StageProgress) {
			p.Status = status
			p.Attempt = attempt
			p.StartTime = attemptStart
		})
		if e.stageAttempts != nil {
			e.stageAttempts.Add(ctx, 1, stageAttr)
		}
		logger.Info("station attempt started", slog.Int("attempt", attempt), slog.Int("max_attempts", attempts))

		out, err := e.attempt(ctx, attempt, work, logger)
		if err == nil && out == nil {
			err = fmt.Errorf("%w: station returned no output", ErrInvalidOutput)
		}
		if err == nil {
			end := e.now()
			e.log.update(idx, func(p *StageProgress) {
				p.Status = StatusCompleted
				p.EndTime = end
				p.Duration = end.Sub(attemptStart)
				p.Error = ""
			})
			if e.stageLatency != nil {
				e.stageLatency.Record(ctx, end.Sub(start).Seconds(), stageAttr)
			}
			telemetry.SetSpanOK(span)
			logger.Info("station completed",
				slog.Int("attempt", attempt),
				slog.Duration("duration", end.Sub(attemptStart)),
			)
			return out, true
		}

		lastErr = err
		failedAt := e.now()
		e.log.update(idx, func(p *StageProgress) { p.Error = err.Error() })
		e.log.recordError(stage, attempt, err, failedAt)
		telemetry.AddSpanEvent(span, "attempt_failed",
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		)
		logger.Warn("station attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt == attempts || ctx.Err() != nil || !e.policy.retryable(err) {
			break
		}
		wait := e.policy.Backoff(attempt)
		logger.Info("retrying station", slog.Duration("backoff", wait))
		if werr := e.sleep(ctx, wait); werr != nil {
			lastErr = werr
			e.log.recordError(stage, attempt, fmt.Errorf("backoff interrupted: %w", werr), e.now())
			break
		}
	}

	end := e.now()
	e.log.update(idx, func(p *StageProgress) {
		p.Status = StatusFailed
		p.EndTime = end
		p.Duration = end.Sub(p.StartTime)
		if lastErr != nil {
			p.Error = lastErr.Error()
		}
	})
	if e.stageFailures != nil {
		e.stageFailures.Add(ctx, 1, stageAttr)
	}
	if e.stageLatency != nil {
		e.stageLatency.Record(ctx, end.Sub(start).Seconds(), stageAttr)
	}
	telemetry.RecordError(span, NewStageError(stage, name, lastErr))
	logger.Error("station failed", slog.String("error", fmt.Sprint(lastErr)))
	return nil, false
}
