// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
)

// Resilience defaults.
const (
	DefaultRequestsPerMinute = 60
	DefaultCacheTTL          = time.Hour
	DefaultRequestTimeout    = 2 * time.Minute
)

// Named is implemented by backends that can identify themselves for cache
// keys and logs.
type Named interface {
	Name() string
}

// ResilientConfig tunes a ResilientClient.
type ResilientConfig struct {
	// RequestsPerMinute caps calls to the primary. Zero disables limiting.
	RequestsPerMinute int

	// CacheTTL is how long a response stays cached.
	CacheTTL time.Duration

	// Timeout bounds each backend call. Zero means no timeout.
	Timeout time.Duration
}

// DefaultResilientConfig returns 60 rpm, a 1h cache and a 2m timeout.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		RequestsPerMinute: DefaultRequestsPerMinute,
		CacheTTL:          DefaultCacheTTL,
		Timeout:           DefaultRequestTimeout,
	}
}

// ResilientClient decorates a backend with rate limiting, caching, a
// per-call timeout and an optional fallback backend.
//
// Description:
//
//	A cached response is returned without touching any backend. Otherwise
//	the call waits for the limiter, then asks the primary. When the primary
//	fails and a fallback is set, the fallback is asked once. Successful
//	responses are cached under a key that includes the backend name, so a
//	fallback answer never masquerades as a primary one.
//
// Thread Safety: Safe for concurrent use.
type ResilientClient struct {
	primary  LLMClient
	fallback LLMClient
	cache    Cache
	limiter  *rate.Limiter
	cfg      ResilientConfig
	logger   *slog.Logger
}

// ResilientOption configures a ResilientClient.
type ResilientOption func(*ResilientClient)

// WithFallback sets the backend used when the primary fails.
func WithFallback(c LLMClient) ResilientOption {
	return func(r *ResilientClient) { r.fallback = c }
}

// WithCache sets the response cache.
func WithCache(c Cache) ResilientOption {
	return func(r *ResilientClient) { r.cache = c }
}

// NewResilientClient wraps primary.
func NewResilientClient(primary LLMClient, cfg ResilientConfig, logger *slog.Logger, opts ...ResilientOption) (*ResilientClient, error) {
	if primary == nil {
		return nil, ErrNoBackend
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &ResilientClient{primary: primary, cfg: cfg, logger: logger}
	if cfg.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func backendName(c LLMClient) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}

// Name identifies the primary backend.
func (r *ResilientClient) Name() string {
	return backendName(r.primary)
}

// Generate implements LLMClient.
func (r *ResilientClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "screenplay.llm", "ResilientClient.Generate")
	defer span.End()

	text, err := r.generateWith(ctx, r.primary, prompt, params, true)
	if err == nil {
		telemetry.SetSpanOK(span)
		return text, nil
	}
	if r.fallback == nil || ctx.Err() != nil {
		telemetry.RecordError(span, err)
		return "", err
	}

	r.logger.Warn("primary backend failed, using fallback",
		slog.String("primary", backendName(r.primary)),
		slog.String("fallback", backendName(r.fallback)),
		slog.String("error", err.Error()),
	)
	span.SetAttributes(attribute.Bool("llm.fallback", true))
	text, ferr := r.generateWith(ctx, r.fallback, prompt, params, false)
	if ferr != nil {
		err = fmt.Errorf("primary: %w; fallback: %w", err, ferr)
		telemetry.RecordError(span, err)
		return "", err
	}
	telemetry.SetSpanOK(span)
	return text, nil
}

func (r *ResilientClient) generateWith(ctx context.Context, c LLMClient, prompt string, params GenerationParams, limited bool) (string, error) {
	key := ""
	if r.cache != nil {
		key = CacheKey(backendName(c), prompt, params)
		if text, ok := r.cache.Get(ctx, key); ok {
			r.logger.Debug("llm cache hit", slog.String("backend", backendName(c)))
			return text, nil
		}
	}

	if limited && r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	callCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	text, err := c.Generate(callCtx, prompt, params)
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, text, r.cfg.CacheTTL); err != nil {
			r.logger.Warn("llm cache write failed", slog.String("error", err.Error()))
		}
	}
	return text, nil
}

// HealthStatus is the outcome of HealthCheck.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Backend string        `json:"backend"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthCheck sends a minimal prompt to c.
func HealthCheck(ctx context.Context, c LLMClient) HealthStatus {
	start := time.Now()
	status := HealthStatus{Backend: backendName(c)}
	_, err := c.Generate(ctx, "test", GenerationParams{
		Temperature: Float32(0.1),
		MaxTokens:   Int(10),
	})
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	return status
}
