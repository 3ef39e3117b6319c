// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command screenplay runs the seven-station screenplay analysis pipeline.
//
// Usage:
//
//	screenplay analyze draft.fountain --title "Night Shift"
//	screenplay analyze draft.txt --preset quick --to 3 --json
//	screenplay estimate draft.txt
//	screenplay health
//	screenplay serve --config screenplay.yaml
//
// The collaborator backend defaults to a local Ollama. Set
// SCREENPLAY_LLM_BACKEND=openai|anthropic|gemini with the matching API key
// to use a hosted provider.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess  = 0 // Operation completed successfully
	exitFindings = 1 // Run finished with failed stations or an unhealthy backend
	exitError    = 2 // Operation failed
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitCodeError carries a process exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitCodeError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return exitError
}

func main() {
	root := newRootCmd(newApp())
	if err := root.Execute(); err != nil {
		var ec *exitCodeError
		if !errors.As(err, &ec) || ec.code == exitError {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}
