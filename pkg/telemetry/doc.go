// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry tracing and metrics for
// datavalidate.
//
// Packages use otel.Tracer and otel.Meter directly. Init installs the
// global providers; until it runs those calls are no-ops.
//
// # Exporters
//
// Traces: "otlp" (gRPC), "stdout", or "none".
// Metrics: "prometheus" (served by MetricsHandler), "stdout", or "none".
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: trace exporter (default: none)
//   - OTEL_METRICS_EXPORTER: metric exporter (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - DATAVALIDATE_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
