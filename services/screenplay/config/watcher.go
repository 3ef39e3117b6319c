// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk.
//
// Thread Safety: Safe for concurrent use. Start should only be called once.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Config)
	logger   *slog.Logger
}

// NewWatcher creates a watcher for path.
//
// Description:
//
//	The parent directory is watched rather than the file, so editors
//	that save by renaming a temporary file are still seen. A reload
//	that fails to load or validate is logged and ignored.
//
// Inputs:
//
//	path - Config file to watch.
//	onChange - Called with every successfully reloaded Config.
//	logger - Logger. If nil, uses slog.Default().
//
// Outputs:
//
//	*Watcher - Ready-to-start watcher.
//	error - Non-nil if the directory cannot be watched.
func NewWatcher(path string, onChange func(Config), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, watcher: fw, onChange: onChange, logger: logger}, nil
}

// Start processes change events until ctx is canceled or Stop is called.
// It blocks and should be run in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Debug("watching config file", slog.String("path", w.path))
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			w.logger.Debug("config watcher stopping")
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("config reloaded", slog.String("path", w.path), slog.String("preset", cfg.Preset))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Stop releases the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
