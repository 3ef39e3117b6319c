// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/llm"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/config"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/stations"
)

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Text           string `json:"text" binding:"required"`
	Title          string `json:"title"`
	Preset         string `json:"preset" binding:"omitempty,oneof=quick standard robust"`
	StartFromStage int    `json:"start_from_stage" binding:"gte=0"`
	EndAtStage     int    `json:"end_at_stage" binding:"gte=0"`
	SkipStages     []int  `json:"skip_stages"`
}

// EstimateRequest is the body of POST /v1/estimate. Text takes precedence
// over TextLength when both are given.
type EstimateRequest struct {
	Text       string `json:"text"`
	TextLength int    `json:"text_length" binding:"gte=0"`
}

// EstimateResponse reports a predicted run time.
type EstimateResponse struct {
	pipeline.Estimate
	TotalSeconds float64 `json:"total_seconds"`
	Preset       string  `json:"preset"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "screenplay.server", "server.analyze")
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger)

	run, status, err := s.prepareRun(req, logger)
	if err != nil {
		telemetry.RecordError(span, err)
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	res := run.execute(ctx, req, nil)
	if res.Success {
		telemetry.SetSpanOK(span)
	}
	c.JSON(http.StatusOK, res)
}

// preparedRun is a validated analysis request ready to execute.
type preparedRun struct {
	sched   *pipeline.Scheduler
	opts    pipeline.RunOptions
	timeout time.Duration
	logger  *slog.Logger
}

// prepareRun applies the request's preset to the current configuration
// and validates its station selection. The returned status is the HTTP
// code for a non-nil error.
func (s *Server) prepareRun(req AnalyzeRequest, logger *slog.Logger) (*preparedRun, int, error) {
	cfg := s.Config()
	if req.Preset != "" {
		if err := cfg.ApplyPreset(req.Preset); err != nil {
			return nil, http.StatusBadRequest, err
		}
	}

	sched, err := NewScheduler(cfg, s.generator, logger)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	opts := pipeline.RunOptions{
		StartFromStage: req.StartFromStage,
		EndAtStage:     req.EndAtStage,
		SkipStages:     req.SkipStages,
	}
	if err := sched.ValidateOptions(opts); err != nil {
		return nil, http.StatusBadRequest, err
	}
	return &preparedRun{sched: sched, opts: opts, timeout: cfg.Server.RunTimeout, logger: logger}, http.StatusOK, nil
}

// execute runs the pipeline under the configured timeout, reporting
// progress to onProgress when it is non-nil.
func (r *preparedRun) execute(ctx context.Context, req AnalyzeRequest, onProgress func(pipeline.StageProgress)) *pipeline.Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	opts := r.opts
	opts.OnProgress = onProgress

	res := r.sched.Execute(ctx, req.Text, req.Title, opts)
	r.logger.Info("analysis finished",
		slog.String("session_id", res.SessionID),
		slog.Bool("success", res.Success),
		slog.Int("completed", res.CompletedCount),
		slog.Int("failed", res.FailedCount),
		slog.Float64("overall_score", res.OverallScore),
	)
	return res
}

func (s *Server) handleEstimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	length := req.TextLength
	if req.Text != "" {
		length = len(req.Text)
	}

	cfg := s.Config()
	est := pipeline.EstimateAnalysisTime(length, cfg.Pipeline.InterStageDelay)
	c.JSON(http.StatusOK, EstimateResponse{
		Estimate:     est,
		TotalSeconds: est.Total.Seconds(),
		Preset:       cfg.Preset,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := llm.HealthCheck(c.Request.Context(), s.backend)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// NewScheduler builds a scheduler over the seven stations with cfg's
// pipeline and station settings.
func NewScheduler(cfg config.Config, generator llm.LLMClient, logger *slog.Logger) (*pipeline.Scheduler, error) {
	stages, err := stations.New(generator, cfg.Stations, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewScheduler(stages, cfg.Pipeline, logger)
}
