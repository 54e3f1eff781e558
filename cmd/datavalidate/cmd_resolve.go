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
	"github.com/AleutianAI/AleutianValidate/services/validation/manager"
	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

var (
	resolveRuleIDs      []string
	resolveFetchDeps    string
	resolvePreValidate  bool
	resolvePostValidate bool
	resolveRetry        bool
)

func init() {
	f := resolveCmd.Flags()
	f.StringSliceVar(&resolveRuleIDs, "rule", nil,
		"Fix only these rule IDs, in dependency order")
	f.StringVar(&resolveFetchDeps, "fetch-deps", "",
		"Fix dependencies of --rule first: always, never, ask (default from config)")
	f.BoolVar(&resolvePreValidate, "pre-validate", true,
		"Validate every rule before fixing (default from config)")
	f.BoolVar(&resolvePostValidate, "post-validate", true,
		"Validate after fixing (default from config)")
	f.BoolVar(&resolveRetry, "retry", true,
		"Repeat fixes while they make progress (default from config)")
}

// resolveArgs are the resolve command flags. Nil booleans keep the
// configured value.
type resolveArgs struct {
	RuleIDs      []string
	FetchDeps    string
	PreValidate  *bool
	PostValidate *bool
	Retry        *bool
}

// options applies the flags over the configured resolve options.
func (r resolveArgs) options(base manager.ResolveOptions) manager.ResolveOptions {
	if r.PreValidate != nil {
		base.PreValidate = *r.PreValidate
	}
	if r.PostValidate != nil {
		base.PostValidate = *r.PostValidate
	}
	if r.Retry != nil {
		base.RetryUntilSuccess = *r.Retry
	}
	return base
}

func runResolveCommand(cmd *cobra.Command, _ []string) error {
	changed := func(name string, v bool) *bool {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}

	opts := optionsFromFlags()
	opts.Out = cmd.OutOrStdout()
	return runResolve(cmd.Context(), opts, resolveArgs{
		RuleIDs:      resolveRuleIDs,
		FetchDeps:    resolveFetchDeps,
		PreValidate:  changed("pre-validate", resolvePreValidate),
		PostValidate: changed("post-validate", resolvePostValidate),
		Retry:        changed("retry", resolveRetry),
	})
}

// runResolve fixes failing rules and reports the final state.
//
// Description:
//
//	Without selected rules, ResolveAll runs with the configured options.
//	With selected rules, they are validated, fixed in dependency order,
//	and validated again when post-validation is on. Without post-validation
//	or retries the report shows the state before fixing.
//
// Outputs:
//
//	error - Nil when the run succeeded. An *exitError when rules are
//	        still failing after re-validation.
func runResolve(ctx context.Context, opts appOptions, args resolveArgs) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	resolveOpts := args.options(a.cfg.Manager.ResolveOptions())
	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "cli.resolve")
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

	a.printer.Title("Resolve")
	started := time.Now()
	var ok bool
	if len(targets) == 0 {
		ok, err = a.manager.ResolveAll(ctx, resolveOpts)
	} else {
		ok, err = resolveSelected(ctx, a.manager, targets, policy, resolveOpts)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return reportRunError(a.printer, err)
	}
	telemetry.SetSpanOK(span)

	failing := len(a.manager.Errors())
	a.logger.Info("Resolve finished",
		slog.String("run_id", runID),
		slog.Bool("ok", ok),
		slog.Int("failing", failing),
		slog.Duration("duration", time.Since(started)),
	)

	printReport(a.printer, a.manager.Rules())
	if !ok {
		return errViolations
	}
	if failing > 0 {
		a.printer.Warning("Fixes applied without re-validation. The report shows the state before fixing.")
		a.printer.Muted("Run 'datavalidate validate' to check the result.")
		return nil
	}
	a.printer.Success("No failing rules.")
	return nil
}

// resolveSelected fixes targets in dependency order.
//
// An Ask policy is only asked once: after the first pass that accepts
// the dependencies, later passes include them without asking. The result
// is true when nothing failed the final validation, or when no final
// validation ran.
func resolveSelected(ctx context.Context, m *manager.Manager, targets []*rules.Rule, policy resolve.FetchPolicy, opts manager.ResolveOptions) (bool, error) {
	run := func(fn func(context.Context, []*rules.Rule, resolve.FetchPolicy) error) error {
		if err := fn(ctx, targets, policy); err != nil {
			return err
		}
		if policy == resolve.Ask {
			policy = resolve.Always
		}
		return nil
	}

	if opts.PreValidate {
		if err := run(m.ValidateRules); err != nil {
			return false, err
		}
	}
	if err := run(m.ResolveRules); err != nil {
		return false, err
	}
	if !opts.PostValidate && !opts.RetryUntilSuccess {
		return true, nil
	}
	if err := run(m.ValidateRules); err != nil {
		return false, err
	}
	return len(m.Errors()) == 0, nil
}
