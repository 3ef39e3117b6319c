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
)

// Input is what every stage receives.
type Input struct {
	// Text is the full screenplay.
	Text string

	// ProjectLabel names the run in logs and reports.
	ProjectLabel string

	// Outputs gives read-only access to earlier stages' outputs.
	Outputs *Outputs
}

// Stage is one station of the pipeline.
//
// Description:
//
//	Number orders the stage and identifies it in logs and outputs.
//	Dependencies lists the stages whose outputs must be present before
//	Execute is called; optional upstream outputs are read through Outputs
//	without being declared. Execute must not modify outputs it reads.
type Stage interface {
	Number() int
	Name() string
	Dependencies() []int
	Execute(ctx context.Context, in Input) (any, error)
}

// BaseStage provides the identity half of Stage.
//
// Example:
//
//	type Conceptual struct {
//	    pipeline.BaseStage
//	    client llm.LLMClient
//	}
//
//	func NewConceptual(c llm.LLMClient) *Conceptual {
//	    return &Conceptual{
//	        BaseStage: pipeline.BaseStage{StageNumber: 2, StageName: "Conceptual Analysis", Requires: []int{1}},
//	        client:    c,
//	    }
//	}
type BaseStage struct {
	StageNumber int
	StageName   string
	Requires    []int
}

// Number returns the stage number.
func (b *BaseStage) Number() int {
	return b.StageNumber
}

// Name returns the display name.
func (b *BaseStage) Name() string {
	return b.StageName
}

// Dependencies returns the required upstream stage numbers.
func (b *BaseStage) Dependencies() []int {
	if b.Requires == nil {
		return []int{}
	}
	return b.Requires
}

// Execute returns an error if called directly.
// Concrete stages must override this method.
func (b *BaseStage) Execute(_ context.Context, _ Input) (any, error) {
	return nil, fmt.Errorf("%w: BaseStage.Execute must be overridden", ErrFatal)
}

// StageFunc adapts a function into a Stage.
type StageFunc struct {
	BaseStage
	Fn func(ctx context.Context, in Input) (any, error)
}

// Execute calls Fn.
func (s *StageFunc) Execute(ctx context.Context, in Input) (any, error) {
	return s.Fn(ctx, in)
}
