// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("aleutian.validate.manager")

var (
	ruleChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_rule_checks_total",
		Help: "Total rule checks by resulting validity",
	}, []string{"validity"})

	ruleFixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_rule_fixes_total",
		Help: "Total rule fix attempts by status",
	}, []string{"status"})

	failingRules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "validation_failing_rules",
		Help: "Number of rules failing after the last validation",
	})

	resolveRetries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validation_resolve_retries",
		Help:    "Retry attempts used by bulk resolution",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})

	resolveCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validation_resolve_cycle_errors_total",
		Help: "Total resolutions aborted by a dependency cycle",
	})
)
