// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for the
// screenplay analysis services.
//
// Init installs global tracer and meter providers. Packages obtain their
// instruments through otel.Tracer and otel.Meter and never hold a provider
// directly, so a process that skips Init runs against the no-op providers.
//
// Supported trace exporters: "otlp" (gRPC), "stdout", "none".
// Supported metric exporters: "prometheus", "stdout", "none".
package telemetry
