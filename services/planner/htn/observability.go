// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package htn

import (
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutianplan.htn")
	meter  = otel.Meter("aleutianplan.htn")
)

// instruments holds the package metrics, initialized lazily so that an
// application-configured MeterProvider is picked up.
type instruments struct {
	once sync.Once

	expansions     metric.Int64Counter
	methodAttempts metric.Int64Counter
	backtracks     metric.Int64Counter
	actionFailures metric.Int64Counter
	planLength     metric.Int64Histogram
	actionLatency  metric.Float64Histogram
}

var inst instruments

// initInstruments creates the metric instruments once. Failures degrade
// observability, not planning: errors are logged and the instrument stays
// nil (every record site is nil-guarded).
func initInstruments(logger *slog.Logger) {
	inst.once.Do(func() {
		var initErrors []string

		var err error
		inst.expansions, err = meter.Int64Counter("htn_node_expansions_total",
			metric.WithDescription("Number of node expansions performed"),
		)
		if err != nil {
			initErrors = append(initErrors, "expansions: "+err.Error())
		}

		inst.methodAttempts, err = meter.Int64Counter("htn_method_attempts_total",
			metric.WithDescription("Number of decomposition methods attempted"),
		)
		if err != nil {
			initErrors = append(initErrors, "method_attempts: "+err.Error())
		}

		inst.backtracks, err = meter.Int64Counter("htn_backtracks_total",
			metric.WithDescription("Number of backtracking recoveries performed"),
		)
		if err != nil {
			initErrors = append(initErrors, "backtracks: "+err.Error())
		}

		inst.actionFailures, err = meter.Int64Counter("htn_action_failures_total",
			metric.WithDescription("Number of failed primitive action executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "action_failures: "+err.Error())
		}

		inst.planLength, err = meter.Int64Histogram("htn_plan_length",
			metric.WithDescription("Distribution of linearized plan lengths"),
		)
		if err != nil {
			initErrors = append(initErrors, "plan_length: "+err.Error())
		}

		inst.actionLatency, err = meter.Float64Histogram("htn_action_duration_seconds",
			metric.WithDescription("Time spent executing each primitive action"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "action_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			logger.Error("failed to initialize some HTN metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}
