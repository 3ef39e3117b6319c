// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the fixed sequence of screenplay analysis stations.
//
// A Scheduler owns the ordered stages and their declared dependencies. For
// each run it selects the stages inside the requested range, executes them
// strictly one after another through an Executor, and hands every
// completed output to later stages through a typed Outputs registry.
//
// # Failure model
//
// A stage that exhausts its retries is recorded as failed and the run
// continues with the stages that do not need its output. A stage whose
// required upstream output is absent fails immediately with
// ErrMissingDependency and is never retried. A panic inside a stage is
// recovered by the Executor as ErrStagePanic and handled like any other
// attempt error. Only a fault in the Scheduler's own bookkeeping or a
// canceled context ends the run early. Execute always returns a Result.
//
// # Thread Safety
//
// A Scheduler serializes its own runs. Every run gets a fresh RunLog, so
// nothing carries over from one run to the next. The introspection methods
// return copies.
package pipeline
