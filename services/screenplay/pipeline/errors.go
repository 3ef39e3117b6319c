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
	"errors"
	"fmt"
)

var (
	// ErrMissingDependency indicates a stage needs an upstream output that
	// was skipped or failed. Never retried.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrInvalidOutput indicates a stage produced output that failed
	// validation. Retried only when RetryPolicy.RetryInvalidOutput is set.
	ErrInvalidOutput = errors.New("invalid stage output")

	// ErrOutputType indicates a stored output has a different type than
	// the key used to read it.
	ErrOutputType = errors.New("stage output has unexpected type")

	// ErrDuplicateStage indicates two stages share a number.
	ErrDuplicateStage = errors.New("duplicate stage number")

	// ErrUnknownDependency indicates a stage depends on a stage that is not
	// registered or does not run before it.
	ErrUnknownDependency = errors.New("unknown stage dependency")

	// ErrInvalidOptions indicates run options that select an empty or
	// inverted range.
	ErrInvalidOptions = errors.New("invalid run options")

	// ErrInvalidPolicy indicates a retry policy with negative values.
	ErrInvalidPolicy = errors.New("invalid retry policy")

	// ErrNoStages indicates a scheduler was built without stages.
	ErrNoStages = errors.New("no stages registered")

	// ErrStagePanic wraps a panic recovered from a stage attempt. Retried
	// like any transient failure.
	ErrStagePanic = errors.New("station panicked")

	// ErrFatal marks an unexpected failure that ended the run.
	ErrFatal = errors.New("fatal pipeline error")
)

// StageError wraps the final error of a stage with its identity.
type StageError struct {
	Stage int
	Name  string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("station %d (%s): %v", e.Stage, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stage int, name string, err error) *StageError {
	return &StageError{Stage: stage, Name: name, Err: err}
}
