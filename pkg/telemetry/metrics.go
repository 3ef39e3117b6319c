// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Instrument names recorded by the pipeline.
const (
	MetricStageDuration = "screenplay_stage_duration_seconds"
	MetricStageAttempts = "screenplay_stage_attempts_total"
	MetricStageFailures = "screenplay_stage_failures_total"
	MetricRunDuration   = "screenplay_run_duration_seconds"
)

// Histogram boundaries in seconds. A station is one or two collaborator
// calls plus backoff; a run is seven stations plus the inter-stage delays.
var (
	StageDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600}
	RunDurationBuckets   = []float64{30, 60, 120, 240, 480, 900, 1800, 3600}
)

// Views returns the metric views applied to screenplay instruments.
//
// Description:
//
//	Station and run durations get explicit buckets sized for LLM-bound
//	work instead of the SDK's millisecond defaults. Station instruments
//	keep only the stage attribute and run durations only the success
//	attribute, so span-level details never become metric labels.
func Views() []metric.View {
	stageOnly := attribute.NewAllowKeysFilter("stage")
	return []metric.View{
		metric.NewView(
			metric.Instrument{Name: MetricStageDuration},
			metric.Stream{
				Aggregation:     metric.AggregationExplicitBucketHistogram{Boundaries: StageDurationBuckets},
				AttributeFilter: stageOnly,
			},
		),
		metric.NewView(
			metric.Instrument{Name: MetricRunDuration},
			metric.Stream{
				Aggregation:     metric.AggregationExplicitBucketHistogram{Boundaries: RunDurationBuckets},
				AttributeFilter: attribute.NewAllowKeysFilter("success"),
			},
		),
		metric.NewView(
			metric.Instrument{Name: "screenplay_stage_*_total"},
			metric.Stream{AttributeFilter: stageOnly},
		),
	}
}

var (
	promHandlerMu sync.RWMutex
	promHandler   http.Handler
)

// MetricsHandler serves /metrics once Init has installed the Prometheus
// exporter. It returns nil otherwise.
//
// Thread Safety: Safe for concurrent use.
func MetricsHandler() http.Handler {
	promHandlerMu.RLock()
	defer promHandlerMu.RUnlock()
	return promHandler
}

func newMeterProvider(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	var reader metric.Reader
	switch cfg.MetricExporter {
	case ExporterPrometheus:
		// Registers with the default prometheus registry behind promhttp.
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		promHandlerMu.Lock()
		promHandler = promhttp.Handler()
		promHandlerMu.Unlock()
		reader = exporter
	case ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		reader = metric.NewPeriodicReader(exporter)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
		metric.WithView(Views()...),
	), nil
}
