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
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
)

// DefaultInterStageDelay is the pause after each completed station.
const DefaultInterStageDelay = 6 * time.Second

// Config configures a Scheduler.
type Config struct {
	Retry RetryPolicy `yaml:"retry" json:"retry"`

	// InterStageDelay is waited after every completed stage except the
	// last one executed.
	InterStageDelay time.Duration `yaml:"inter_stage_delay" json:"inter_stage_delay" validate:"gte=0"`
}

// DefaultConfig returns the default retry policy and a 6s delay.
func DefaultConfig() Config {
	return Config{
		Retry:           DefaultRetryPolicy(),
		InterStageDelay: DefaultInterStageDelay,
	}
}

// Scheduler runs the registered stages in order.
//
// Thread Safety:
//
//	Execute calls are serialized. Introspection methods may be called
//	concurrently with a running Execute and report the current run.
type Scheduler struct {
	stages []Stage
	cfg    Config
	logger *slog.Logger

	runMu sync.Mutex

	logMu sync.RWMutex
	log   *RunLog

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	metricsOnce sync.Once
	runLatency  metric.Float64Histogram
}

// NewScheduler validates the stages and builds a scheduler.
//
// Description:
//
//	Stages are ordered by Number. Every declared dependency must name a
//	registered stage with a lower number, so a run can never wait on a
//	later stage.
//
// Inputs:
//
//	stages - The stations to run. Must be non-empty with unique numbers.
//	cfg - Retry policy and inter-stage delay.
//	logger - Logger for run logs. If nil, uses slog.Default().
//
// Outputs:
//
//	*Scheduler - The configured scheduler.
//	error - ErrNoStages, ErrDuplicateStage, ErrUnknownDependency or
//	        ErrInvalidPolicy.
func NewScheduler(stages []Stage, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.InterStageDelay < 0 {
		return nil, fmt.Errorf("%w: inter-stage delay %s", ErrInvalidPolicy, cfg.InterStageDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number() < ordered[j].Number() })

	seen := make(map[int]bool, len(ordered))
	for _, st := range ordered {
		if seen[st.Number()] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateStage, st.Number())
		}
		for _, d := range st.Dependencies() {
			if !seen[d] {
				return nil, fmt.Errorf("%w: station %d requires %d", ErrUnknownDependency, st.Number(), d)
			}
		}
		seen[st.Number()] = true
	}

	return &Scheduler{
		stages: ordered,
		cfg:    cfg,
		logger: logger,
		log:    NewRunLog(nil),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// ValidateOptions checks opts against the registered stage range without
// running anything.
func (s *Scheduler) ValidateOptions(opts RunOptions) error {
	_, _, err := opts.bounds(s.stages[0].Number(), s.stages[len(s.stages)-1].Number())
	return err
}

// Stages returns the registered stage numbers in order.
func (s *Scheduler) Stages() []int {
	out := make([]int, len(s.stages))
	for i, st := range s.stages {
		out[i] = st.Number()
	}
	return out
}

func (s *Scheduler) currentLog() *RunLog {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	return s.log
}

// ProgressLog returns a copy of the current run's progress records.
func (s *Scheduler) ProgressLog() []StageProgress {
	return s.currentLog().ProgressLog()
}

// Errors returns a copy of the current run's error log.
func (s *Scheduler) Errors() []ErrorRecord {
	return s.currentLog().Errors()
}

// StageStatus returns the latest status per "station{N}" key.
func (s *Scheduler) StageStatus() map[string]Status {
	return s.currentLog().StageStatus()
}

// ClearProgressLog drops the current run's progress records.
func (s *Scheduler) ClearProgressLog() {
	s.currentLog().ClearProgressLog()
}

func (s *Scheduler) initMetrics() {
	s.metricsOnce.Do(func() {
		var err error
		s.runLatency, err = meter.Float64Histogram(telemetry.MetricRunDuration,
			metric.WithDescription("Total pipeline run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			s.logger.Error("failed to initialize pipeline run metric (observability degraded)",
				slog.String("error", err.Error()),
			)
		}
	})
}

// Execute runs the selected stages over text and returns the result.
//
// Description:
//
//	Stages run strictly in order. A stage whose required dependencies
//	are absent fails without being attempted twice. A completed stage is
//	followed by the inter-stage delay unless it is the last selected
//	stage. A panicking stage fails like any other stage. Invalid options,
//	a canceled context and faults in the run's own bookkeeping are
//	recorded as fatal errors that end the run. Execute never panics and
//	never returns nil.
//
// Inputs:
//
//	ctx - Context for cancellation. Nil is treated as Background.
//	text - The full screenplay.
//	projectLabel - Free-form label for the run.
//	opts - Stage selection. The zero value runs everything.
//
// Outputs:
//
//	*Result - The run outcome. Success is FailedCount == 0.
func (s *Scheduler) Execute(ctx context.Context, text, projectLabel string, opts RunOptions) (result *Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.initMetrics()

	runLog := NewRunLog(opts.OnProgress)
	s.logMu.Lock()
	s.log = runLog
	s.logMu.Unlock()

	sessionID := uuid.NewString()[:12]
	ctx, span := tracer.Start(ctx, "pipeline.Execute",
		trace.WithAttributes(
			attribute.String("pipeline.session_id", sessionID),
			attribute.String("pipeline.project", projectLabel),
			attribute.Int("pipeline.text_length", len(text)),
		),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger).With(slog.String("session_id", sessionID))

	outputs := newOutputs()
	res := &Result{
		SessionID:    sessionID,
		ProjectLabel: projectLabel,
		Outputs:      outputs,
		Skipped:      []int{},
		StartedAt:    s.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", ErrFatal, r)
			at := s.now()
			stage := runLog.openStage()
			runLog.abortOpen(err.Error(), at)
			runLog.recordError(stage, 0, err, at)
			res.FailedCount++
			logger.Error("pipeline aborted",
				slog.String("error", err.Error()),
				slog.String("stack", string(debug.Stack())),
			)
		}
		s.finish(ctx, res, runLog, span, logger)
		result = res
	}()

	exec, err := NewExecutor(s.cfg.Retry, runLog, logger)
	if err != nil {
		s.fatal(res, runLog, 0, err, logger)
		return res
	}
	exec.now, exec.sleep = s.now, s.sleep

	first, last, err := opts.bounds(s.stages[0].Number(), s.stages[len(s.stages)-1].Number())
	if err != nil {
		s.fatal(res, runLog, 0, err, logger)
		return res
	}

	selected := make([]Stage, 0, len(s.stages))
	for _, st := range s.stages {
		if opts.selects(st.Number(), first, last) {
			selected = append(selected, st)
		} else {
			res.Skipped = append(res.Skipped, st.Number())
		}
	}

	logger.Info("pipeline started",
		slog.String("project", projectLabel),
		slog.Int("stations", len(selected)),
		slog.Int("from", first),
		slog.Int("to", last),
		slog.Any("skip", opts.SkipStages),
	)

	for i, st := range selected {
		if err := ctx.Err(); err != nil {
			s.fatal(res, runLog, st.Number(), fmt.Errorf("%w: %w", ErrFatal, err), logger)
			return res
		}

		in := Input{Text: text, ProjectLabel: projectLabel, Outputs: outputs}
		out, ok := exec.Run(ctx, st.Number(), st.Name(), s.unitFor(st, in))
		if !ok {
			res.FailedCount++
			continue
		}
		outputs.set(st.Number(), out)
		res.CompletedCount++

		if i < len(selected)-1 && s.cfg.InterStageDelay > 0 {
			logger.Debug("inter-station delay", slog.Duration("delay", s.cfg.InterStageDelay))
			if err := s.sleep(ctx, s.cfg.InterStageDelay); err != nil {
				s.fatal(res, runLog, selected[i+1].Number(), fmt.Errorf("%w: %w", ErrFatal, err), logger)
				return res
			}
		}
	}
	return res
}

// unitFor wraps a stage in a unit of work that checks its dependencies.
func (s *Scheduler) unitFor(st Stage, in Input) UnitOfWork {
	return func(ctx context.Context, _ int) (any, error) {
		if missing := in.Outputs.missing(st.Dependencies()); len(missing) > 0 {
			keys := make([]string, len(missing))
			for i, m := range missing {
				keys[i] = StageKey(m)
			}
			return nil, fmt.Errorf("%w: station %d requires %v", ErrMissingDependency, st.Number(), keys)
		}
		return st.Execute(ctx, in)
	}
}

// fatal records err as a run-ending failure.
func (s *Scheduler) fatal(res *Result, l *RunLog, stage int, err error, logger *slog.Logger) {
	l.recordError(stage, 0, err, s.now())
	res.FailedCount++
	logger.Error("pipeline aborted", slog.Int("stage", stage), slog.String("error", err.Error()))
}

// finish seals the result.
func (s *Scheduler) finish(ctx context.Context, res *Result, l *RunLog, span trace.Span, logger *slog.Logger) {
	res.FinishedAt = s.now()
	res.TotalDuration = res.FinishedAt.Sub(res.StartedAt)
	res.Progress = l.ProgressLog()
	res.Errors = l.Errors()
	res.Success = res.FailedCount == 0
	res.Performance = ComputePerformance(res.Progress, res.CompletedCount, res.FailedCount)

	stages := res.Outputs.Stages()
	for i := len(stages) - 1; i >= 0; i-- {
		v, _ := res.Outputs.raw(stages[i])
		if scored, ok := v.(Scored); ok {
			res.OverallScore, res.OverallRating = scored.OverallScore()
			break
		}
	}
	slices.Sort(res.Skipped)

	if s.runLatency != nil {
		s.runLatency.Record(ctx, res.TotalDuration.Seconds(),
			metric.WithAttributes(attribute.Bool("success", res.Success)),
		)
	}
	span.SetAttributes(
		attribute.Int("pipeline.completed", res.CompletedCount),
		attribute.Int("pipeline.failed", res.FailedCount),
	)
	if res.Success {
		telemetry.SetSpanOK(span)
		logger.Info("pipeline completed",
			slog.Int("completed", res.CompletedCount),
			slog.Duration("duration", res.TotalDuration),
		)
		return
	}
	telemetry.RecordError(span, fmt.Errorf("%d station(s) failed", res.FailedCount))
	logger.Warn("pipeline finished with failures",
		slog.Int("completed", res.CompletedCount),
		slog.Int("failed", res.FailedCount),
		slog.Duration("duration", res.TotalDuration),
	)
}
