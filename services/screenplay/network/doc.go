// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package network models a screenplay as a conflict network.
//
// Characters are vertices, relationships are (directed or bidirectional)
// edges between two characters, and conflicts are hyperedges that touch
// one or more characters. The ConflictNetwork is mutated only by the stage
// that builds it. Every mutation that matters for temporal analysis is
// followed by CreateSnapshot, which appends a deep, immutable copy of the
// state to the network's history.
//
// # Conflict phases
//
//	emerging -> escalating -> peak -> resolving -> resolved (-> aftermath)
//
// The model records phase changes without judging them. Analytics treats a
// jump between non-adjacent phases as a transition point.
//
// # Thread Safety
//
// ConflictNetwork is safe for concurrent use. Snapshot values are never
// modified after creation and may be read from many goroutines.
package network
