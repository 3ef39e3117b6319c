// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

var tracer = otel.Tracer("screenplay.analytics")

// ErrNilContext is returned when Analyze receives a nil context.
var ErrNilContext = errors.New("analytics: nil context")

// Report gathers every analytic pass over one network.
type Report struct {
	Metrics     Metrics           `json:"metrics"`
	Conflicts   ConflictAnalysis  `json:"conflicts"`
	Arcs        []CharacterArc    `json:"arcs"`
	Pivots      []PivotPoint      `json:"pivots"`
	Diagnostics Diagnostics       `json:"diagnostics"`
	Evolution   Evolution         `json:"evolution"`
	Efficiency  Efficiency        `json:"efficiency"`
	Uncertainty confidence.Signal `json:"uncertainty"`
	Duration    time.Duration     `json:"duration"`
}

// Analyze runs all analytic passes over the snapshot.
//
// Description:
//
//	The passes share no state, so they run concurrently on an errgroup.
//	Each pass writes to its own field of the report. Snapshots are
//	immutable, which makes the concurrent reads safe.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	current - Snapshot to analyse (usually the final network state).
//	history - Ordered snapshot history. May be empty.
//	logger - Logger for diagnostics. Nil uses slog.Default().
//
// Outputs:
//
//	*Report - Complete report.
//	error - ErrNilContext, or the context error if canceled.
//
// Thread Safety: Safe for concurrent use.
func Analyze(ctx context.Context, current network.Snapshot, history []network.Snapshot, logger *slog.Logger) (*Report, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	ctx, span := tracer.Start(ctx, "analytics.Analyze",
		trace.WithAttributes(
			attribute.Int("network.characters", len(current.Characters)),
			attribute.Int("network.relationships", len(current.Relationships)),
			attribute.Int("network.conflicts", len(current.Conflicts)),
			attribute.Int("network.snapshots", len(history)),
		),
	)
	defer span.End()
	logger = telemetry.LoggerWithTrace(ctx, logger)

	start := time.Now()
	report := &Report{}

	g, gctx := errgroup.WithContext(ctx)
	pass := func(fn func()) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}

	pass(func() { report.Metrics = ComputeMetrics(current) })
	pass(func() { report.Conflicts = AnalyzeConflicts(current, history) })
	pass(func() { report.Arcs = CharacterArcs(current, history) })
	pass(func() { report.Pivots = PivotPoints(current) })
	pass(func() { report.Diagnostics = Diagnose(current, history) })
	pass(func() { report.Evolution = AnalyzeEvolution(history) })
	pass(func() { report.Efficiency = ComputeEfficiency(current) })
	pass(func() { report.Uncertainty = AssessUncertainty(current) })

	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Float64("network.health_score", report.Diagnostics.OverallHealthScore),
		attribute.Int("network.pivots", len(report.Pivots)),
	)
	telemetry.SetSpanOK(span)

	logger.Debug("network analysed",
		slog.Int("characters", report.Metrics.Characters),
		slog.Float64("density", report.Metrics.Density),
		slog.Float64("health_score", report.Diagnostics.OverallHealthScore),
		slog.String("criticality", string(report.Diagnostics.CriticalityLevel)),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}
