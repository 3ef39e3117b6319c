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
	"sync"
	"time"
)

// RunLog records stage progress and errors for a single run.
//
// Thread Safety: Safe for concurrent use. Readers receive copies. The
// observer is called without the lock held, on the goroutine that made
// the change.
type RunLog struct {
	mu       sync.RWMutex
	progress []StageProgress
	errors   []ErrorRecord
	observer func(StageProgress)
}

// NewRunLog creates an empty log. observer, if non-nil, receives a copy
// of every progress record after it changes.
func NewRunLog(observer func(StageProgress)) *RunLog {
	return &RunLog{observer: observer}
}

func (l *RunLog) notify(p StageProgress) {
	if l.observer != nil {
		l.observer(p)
	}
}

// begin appends a pending record for stage and returns its index.
func (l *RunLog) begin(stage int, name string) int {
	l.mu.Lock()
	p := StageProgress{
		StageNumber: stage,
		Name:        name,
		Status:      StatusPending,
	}
	l.progress = append(l.progress, p)
	idx := len(l.progress) - 1
	l.mu.Unlock()
	l.notify(p)
	return idx
}

// update mutates the record at idx in place.
func (l *RunLog) update(idx int, fn func(p *StageProgress)) {
	l.mu.Lock()
	if idx < 0 || idx >= len(l.progress) {
		l.mu.Unlock()
		return
	}
	fn(&l.progress[idx])
	p := l.progress[idx]
	l.mu.Unlock()
	l.notify(p)
}

// recordError appends an entry to the error log.
func (l *RunLog) recordError(stage, attempt int, err error, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, ErrorRecord{
		Stage:     stage,
		Attempt:   attempt,
		Error:     err.Error(),
		Timestamp: at,
	})
}

// openStage returns the stage of the last non-terminal record, or 0.
func (l *RunLog) openStage() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.progress) - 1; i >= 0; i-- {
		if !l.progress[i].Status.Terminal() {
			return l.progress[i].StageNumber
		}
	}
	return 0
}

// abortOpen marks every non-terminal record as failed with msg and
// returns how many were changed.
func (l *RunLog) abortOpen(msg string, at time.Time) int {
	l.mu.Lock()
	var changed []StageProgress
	for i := range l.progress {
		p := &l.progress[i]
		if p.Status.Terminal() {
			continue
		}
		p.Status = StatusFailed
		p.Error = msg
		p.EndTime = at
		if !p.StartTime.IsZero() {
			p.Duration = at.Sub(p.StartTime)
		}
		changed = append(changed, *p)
	}
	l.mu.Unlock()
	for _, p := range changed {
		l.notify(p)
	}
	return len(changed)
}

// ProgressLog returns a copy of the progress records in start order.
func (l *RunLog) ProgressLog() []StageProgress {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]StageProgress, len(l.progress))
	copy(out, l.progress)
	return out
}

// Errors returns a copy of the error log.
func (l *RunLog) Errors() []ErrorRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ErrorRecord, len(l.errors))
	copy(out, l.errors)
	return out
}

// StageStatus maps "station{N}" to the latest status of that stage.
func (l *RunLog) StageStatus() map[string]Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Status, len(l.progress))
	for _, p := range l.progress {
		out[StageKey(p.StageNumber)] = p.Status
	}
	return out
}

// ClearProgressLog drops all progress records. The error log is kept.
func (l *RunLog) ClearProgressLog() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = nil
}
