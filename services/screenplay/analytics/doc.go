// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics computes structural and narrative metrics over a
// network.Snapshot and its history.
//
// Every function here is pure: it reads immutable snapshots and returns
// new values. Analyze runs the independent passes concurrently and
// gathers them into a Report.
//
// Ratios are rounded to 2 decimals so reports are stable across runs and
// platforms.
package analytics
