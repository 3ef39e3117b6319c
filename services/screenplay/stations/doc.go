// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stations implements the seven analysis stations of the
// screenplay pipeline.
//
//	1 Text Analysis          logline, genre, cast sketch
//	2 Conceptual Analysis    premise, themes, core conflict
//	3 Network Builder        conflict network, snapshots, analytics
//	4 Efficiency Metrics     economy of cast and conflict
//	5 Dynamic/Symbolic       network evolution, symbols, style
//	6 Diagnostics/Treatment  structural findings and a revision plan
//	7 Finalization           confidence aggregation and score matrix
//
// Stations that need the text-generation collaborator receive it through
// New. Structured answers are decoded from JSON and validated; an answer
// that fails validation is reported as pipeline.ErrInvalidOutput.
package stations
