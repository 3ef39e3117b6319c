// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianScreenplay/services/llm"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

// Station numbers.
const (
	StageText = iota + 1
	StageConceptual
	StageNetwork
	StageEfficiency
	StageDynamic
	StageDiagnostics
	StageFinal
)

// Options tune how stations talk to the collaborator.
type Options struct {
	// Temperature for structured prompts.
	Temperature float32 `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens caps each response.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"gte=64"`

	// ChunkSize and ChunkOverlap control screenplay splitting.
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size" validate:"gte=200"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`

	// ContextBudget is the most screenplay text sent in one prompt.
	ContextBudget int `yaml:"context_budget" json:"context_budget" validate:"gte=500"`

	// Constitution rewrites treatment text. Nil uses DefaultConstitution.
	Constitution Constitution `yaml:"-" json:"-"`
}

// DefaultOptions returns the standard station options.
func DefaultOptions() Options {
	return Options{
		Temperature:   0.3,
		MaxTokens:     4096,
		ChunkSize:     DefaultChunkSize,
		ChunkOverlap:  DefaultChunkOverlap,
		ContextBudget: 24000,
	}
}

// env is what every station shares.
type env struct {
	client llm.LLMClient
	logger *slog.Logger
	opts   Options
}

func (e *env) params(system string) llm.GenerationParams {
	return llm.GenerationParams{
		Temperature:       llm.Float32(e.opts.Temperature),
		MaxTokens:         llm.Int(e.opts.MaxTokens),
		SystemInstruction: system,
	}
}

// excerpt chunks text and trims it to the context budget. truncated is
// true when some of the screenplay was left out.
func (e *env) excerpt(text string) (excerpt string, chunks int, truncated bool, err error) {
	parts, err := Chunk(text, e.opts.ChunkSize, e.opts.ChunkOverlap)
	if err != nil {
		return "", 0, false, err
	}
	excerpt = Excerpt(parts, e.opts.ContextBudget)
	return excerpt, len(parts), len(text) > e.opts.ContextBudget, nil
}

// ask sends prompt and decodes a validated JSON answer into T.
func ask[T any](ctx context.Context, e *env, system, prompt string) (T, error) {
	var zero T
	text, err := e.client.Generate(ctx, prompt, e.params(system))
	if err != nil {
		return zero, fmt.Errorf("generate: %w", err)
	}
	var out T
	if err := DecodeValidated(text, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// New builds all seven stations around one collaborator.
//
// Inputs:
//
//	client - Text-generation collaborator. Must not be nil.
//	opts - Station options. Zero fields take DefaultOptions values.
//	logger - Logger for station logs. If nil, uses slog.Default().
//
// Outputs:
//
//	[]pipeline.Stage - Stations 1 through 7.
//	error - Non-nil if client is nil.
func New(client llm.LLMClient, opts Options, logger *slog.Logger) ([]pipeline.Stage, error) {
	if client == nil {
		return nil, llm.ErrNoBackend
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.Temperature == 0 {
		opts.Temperature = def.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = def.ChunkOverlap
	}
	if opts.ContextBudget == 0 {
		opts.ContextBudget = def.ContextBudget
	}
	if opts.Constitution == nil {
		opts.Constitution = DefaultConstitution()
	}

	e := &env{client: client, logger: logger, opts: opts}
	return []pipeline.Stage{
		newTextAnalysis(e),
		newConceptual(e),
		newNetworkBuilder(e),
		newEfficiency(e),
		newDynamic(e),
		newDiagnostics(e),
		newFinalization(e),
	}, nil
}
