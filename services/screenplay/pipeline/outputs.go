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
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Key identifies the output of one stage together with its Go type.
type Key[T any] struct {
	stage int
	name  string
}

// NewKey creates a key for the output of the given stage.
func NewKey[T any](stage int, name string) Key[T] {
	return Key[T]{stage: stage, name: name}
}

// Stage returns the stage number the key reads.
func (k Key[T]) Stage() int {
	return k.stage
}

// Name returns the display name of the stage.
func (k Key[T]) Name() string {
	return k.name
}

// String returns the key's station identifier.
func (k Key[T]) String() string {
	return StageKey(k.stage)
}

// Outputs holds completed stage outputs for one run.
//
// Thread Safety: Safe for concurrent use. Only the Scheduler stores values.
type Outputs struct {
	mu     sync.RWMutex
	values map[int]any
}

func newOutputs() *Outputs {
	return &Outputs{values: make(map[int]any)}
}

func (o *Outputs) set(stage int, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[stage] = v
}

// Has reports whether stage completed in this run.
func (o *Outputs) Has(stage int) bool {
	if o == nil {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.values[stage]
	return ok
}

// Stages returns the completed stage numbers in ascending order.
func (o *Outputs) Stages() []int {
	if o == nil {
		return []int{}
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	stages := make([]int, 0, len(o.values))
	for n := range o.values {
		stages = append(stages, n)
	}
	sort.Ints(stages)
	return stages
}

// Len returns the number of stored outputs.
func (o *Outputs) Len() int {
	if o == nil {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.values)
}

// missing returns the stages in deps without an output.
func (o *Outputs) missing(deps []int) []int {
	var out []int
	for _, d := range deps {
		if !o.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (o *Outputs) raw(stage int) (any, bool) {
	if o == nil {
		return nil, false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[stage]
	return v, ok
}

// MarshalJSON encodes the outputs as {"station1": ..., "station2": ...}.
func (o *Outputs) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	m := make(map[string]any, len(o.values))
	for n, v := range o.values {
		m[StageKey(n)] = v
	}
	return json.Marshal(m)
}

// Get reads a stage output with its declared type.
//
// Outputs:
//
//	T - The stored value.
//	error - ErrMissingDependency when the stage has no output,
//	        ErrOutputType when the stored value is not a T.
func Get[T any](o *Outputs, k Key[T]) (T, error) {
	var zero T
	v, ok := o.raw(k.stage)
	if !ok {
		return zero, fmt.Errorf("%w: %s (%s)", ErrMissingDependency, k, k.name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrOutputType, k, v, zero)
	}
	return t, nil
}

// Lookup is Get for optional upstream outputs. The bool is false when the
// output is absent or has another type.
func Lookup[T any](o *Outputs, k Key[T]) (T, bool) {
	t, err := Get(o, k)
	return t, err == nil
}
