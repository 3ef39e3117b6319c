// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the screenplay pipeline over HTTP.
//
// Routes:
//
//	POST /v1/analyze     run the pipeline over a screenplay
//	GET  /v1/analyze/ws  run one analysis and stream its progress
//	POST /v1/estimate    predict how long a run takes
//	GET  /v1/health      probe the collaborator backend
//	GET  /metrics        Prometheus scrape endpoint
//
// Every analyze request builds its own scheduler, so concurrent requests
// never share progress or error logs.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/llm"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/config"
)

const shutdownTimeout = 10 * time.Second

// Server serves the analysis API.
//
// Thread Safety: Safe for concurrent use. UpdateConfig may be called
// while requests are in flight; running analyses keep the settings they
// started with.
type Server struct {
	cfg       atomic.Pointer[config.Config]
	generator llm.LLMClient
	backend   llm.LLMClient
	logger    *slog.Logger
	router    *gin.Engine
}

// New creates a server.
//
// Inputs:
//
//	cfg - Initial configuration.
//	generator - Collaborator used by the stations.
//	backend - Undecorated backend probed by /v1/health. If nil, generator is used.
//	logger - Logger. If nil, uses slog.Default().
func New(cfg config.Config, generator, backend llm.LLMClient, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = generator
	}
	s := &Server{generator: generator, backend: backend, logger: logger}
	s.cfg.Store(&cfg)
	s.initRouter()
	return s
}

func (s *Server) initRouter() {
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware("screenplay-service"))
	s.router.Use(s.requestLogger())

	v1 := s.router.Group("/v1")
	{
		v1.POST("/analyze", s.limitBody(), s.handleAnalyze)
		v1.GET("/analyze/ws", s.handleAnalyzeStream)
		v1.POST("/estimate", s.handleEstimate)
		v1.GET("/health", s.handleHealth)
	}
	s.router.GET("/metrics", s.handleMetrics)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Config returns the current configuration.
func (s *Server) Config() config.Config {
	return *s.cfg.Load()
}

// UpdateConfig swaps pipeline and station settings for new requests.
// Backend and server settings are fixed at start; changes to them are
// logged and ignored.
func (s *Server) UpdateConfig(next config.Config) {
	cur := s.cfg.Load()
	if next.LLM != cur.LLM || next.Server != cur.Server || next.Cache != cur.Cache {
		s.logger.Warn("backend, cache and server settings need a restart to change")
		next.LLM, next.Server, next.Cache = cur.LLM, cur.Server, cur.Cache
	}
	s.cfg.Store(&next)
	s.logger.Info("configuration updated",
		slog.String("preset", next.Preset),
		slog.Int("max_retries", next.Pipeline.Retry.MaxRetries),
		slog.Duration("inter_stage_delay", next.Pipeline.InterStageDelay),
	)
}

// Run listens on the configured address until ctx is canceled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Config().Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("screenplay server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down screenplay server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		telemetry.LoggerWithTrace(c.Request.Context(), s.logger).Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.Config().Server.MaxBodyBytes)
		c.Next()
	}
}

func (s *Server) handleMetrics(c *gin.Context) {
	h := telemetry.MetricsHandler()
	if h == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics exporter is not prometheus"})
		return
	}
	h.ServeHTTP(c.Writer, c.Request)
}
