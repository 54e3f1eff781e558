// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package command

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.validate.command")
	meter  = otel.Meter("aleutian.validate.command")
)

var (
	commandLatency metric.Float64Histogram
	commandTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		commandLatency, err = meter.Float64Histogram(
			"validation_command_duration_seconds",
			metric.WithDescription("Duration of rule command executions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commandTotal, err = meter.Int64Counter(
			"validation_command_total",
			metric.WithDescription("Total number of rule command executions"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startCommandSpan creates a span for one command execution.
func startCommandSpan(ctx context.Context, ruleID, op, command string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("validation.rule_id", ruleID),
			attribute.String("validation.command.op", op),
			attribute.String("validation.command.name", command),
		),
	)
}

// recordCommandMetrics records one execution. exitCode is -1 when the
// process did not exit normally.
func recordCommandMetrics(ctx context.Context, op string, duration time.Duration, exitCode int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", exitCode == 0),
		attribute.Bool("completed", exitCode >= 0),
	)
	commandLatency.Record(ctx, duration.Seconds(), attrs)
	commandTotal.Add(ctx, 1, attrs)
}
