// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls how richly a Printer formats output.
type Mode string

const (
	// ModeRich enables colours, boxes and bars.
	ModeRich Mode = "rich"

	// ModePlain keeps layout and icons without colour.
	ModePlain Mode = "plain"

	// ModeMachine prints stable, prefixed lines for scripts.
	ModeMachine Mode = "machine"
)

// ParseMode converts a string to a Mode, defaulting to ModeRich.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "p", "no-color":
		return ModePlain
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModeRich
	}
}

// DetectMode picks the mode for output written to f.
//
// Description:
//
//	SCREENPLAY_OUTPUT wins when set. Otherwise NO_COLOR selects ModePlain,
//	and a non-terminal selects ModeMachine so piped output stays
//	parseable.
func DetectMode(f *os.File) Mode {
	if env := os.Getenv("SCREENPLAY_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if !IsTerminal(f) {
		return ModeMachine
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	return ModeRich
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
