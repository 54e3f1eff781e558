// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianValidate/pkg/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	validateRuleIDs   []string
	validateFetchDeps string
	validateJSON      bool
)

func init() {
	validateCmd.Flags().StringSliceVar(&validateRuleIDs, "rule", nil,
		"Validate only these rule IDs, in dependency order")
	validateCmd.Flags().StringVar(&validateFetchDeps, "fetch-deps", "",
		"Include dependencies of --rule: always, never, ask (default from config)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false,
		"Output as JSON")
}

// validateArgs are the validate command flags.
type validateArgs struct {
	RuleIDs   []string
	FetchDeps string
	JSON      bool
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runValidateCommand(cmd *cobra.Command, _ []string) error {
	opts := optionsFromFlags()
	opts.Out = cmd.OutOrStdout()
	return runValidate(cmd.Context(), opts, validateArgs{
		RuleIDs:   validateRuleIDs,
		FetchDeps: validateFetchDeps,
		JSON:      validateJSON,
	})
}

// runValidate validates every rule, or the selected ones, and reports.
//
// Outputs:
//
//	error - Nil when every validated rule passed. An *exitError otherwise.
func runValidate(ctx context.Context, opts appOptions, args validateArgs) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "cli.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("validation.run_id", runID),
		attribute.Int("validation.selected", len(args.RuleIDs)),
	)

	policy, err := a.fetchPolicy(args.FetchDeps)
	if err != nil {
		return err
	}
	targets, err := a.selectRules(args.RuleIDs)
	if err != nil {
		return err
	}

	started := time.Now()
	var runErr error
	if len(targets) == 0 {
		a.manager.ValidateAll(ctx)
	} else {
		runErr = a.manager.ValidateRules(ctx, targets, policy)
	}
	failing := len(a.manager.Errors())

	a.logger.Info("Validation finished",
		slog.String("run_id", runID),
		slog.Int("failing", failing),
		slog.Duration("duration", time.Since(started)),
	)

	if runErr != nil {
		telemetry.RecordError(span, runErr)
	} else {
		telemetry.SetSpanOK(span)
	}

	if args.JSON {
		if err := writeJSONReport(a.out, "validate", runID, started, a.manager.Rules(), runErr); err != nil {
			return err
		}
		switch {
		case runErr != nil:
			return &exitError{code: exitCodeFor(runErr)}
		case failing > 0:
			return errViolations
		}
		return nil
	}

	if runErr != nil {
		return reportRunError(a.printer, runErr)
	}
	a.printer.Title("Validation")
	printReport(a.printer, a.manager.Rules())
	if failing > 0 {
		return errViolations
	}
	return nil
}
