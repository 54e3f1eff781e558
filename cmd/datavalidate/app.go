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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianValidate/pkg/logging"
	"github.com/AleutianAI/AleutianValidate/pkg/telemetry"
	"github.com/AleutianAI/AleutianValidate/pkg/ux"
	"github.com/AleutianAI/AleutianValidate/pkg/validation"
	"github.com/AleutianAI/AleutianValidate/services/validation/command"
	"github.com/AleutianAI/AleutianValidate/services/validation/config"
	"github.com/AleutianAI/AleutianValidate/services/validation/manager"
	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// tracerName is the instrumentation scope of CLI spans.
const tracerName = "aleutian.validate.cli"

// errUnknownRule is returned when --rule names a rule that is not loaded.
var errUnknownRule = errors.New("unknown rule")

// appOptions are the inputs newApp needs beyond the config file.
type appOptions struct {
	ConfigPath     string
	LogLevel       string
	LogJSON        bool
	TraceExporter  string
	MetricExporter string

	// Out receives the report. Defaults to stdout.
	Out io.Writer

	// LogOutput replaces stderr for console logs.
	LogOutput io.Writer

	// LogExporter receives every log record.
	LogExporter logging.LogExporter

	// Confirm answers the dependency fetch question. Defaults to an
	// interactive prompt that answers no when not on a terminal.
	Confirm ux.ConfirmFunc
}

// optionsFromFlags collects the global flags.
func optionsFromFlags() appOptions {
	return appOptions{
		ConfigPath:    configPath,
		LogLevel:      logLevel,
		LogJSON:       logJSON,
		TraceExporter: traceExporter,
	}
}

// app holds everything one command invocation needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	manager  *manager.Manager
	printer  *ux.Printer
	out      io.Writer
	policy   resolve.FetchPolicy
	shutdown func(context.Context) error
}

// newApp loads the config and builds the logger, telemetry, rule catalog
// and manager.
//
// Description:
//
//	Flag values override the config file. On error everything already
//	started is shut down.
//
// Inputs:
//
//	ctx - Context for config loading and catalog construction.
//	opts - Flag values and test hooks.
//
// Outputs:
//
//	*app - The ready application. Call close when done.
//	error - Config, logging, telemetry or rule definition errors.
func newApp(ctx context.Context, opts appOptions) (a *app, err error) {
	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	levelName := cfg.Logging.Level
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:    level,
		LogDir:   cfg.Logging.Dir,
		Service:  serviceName(cfg),
		JSON:     opts.LogJSON || cfg.Logging.JSON,
		Quiet:    cfg.Logging.Quiet,
		Output:   opts.LogOutput,
		Exporter: opts.LogExporter,
	})
	defer func() {
		if err != nil {
			_ = logger.Close()
		}
	}()

	shutdown, err := telemetry.Init(ctx, telemetryConfig(cfg, opts))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = shutdown(context.WithoutCancel(ctx))
		}
	}()

	policy, err := cfg.FetchPolicy()
	if err != nil {
		return nil, err
	}

	catalog, err := command.NewCatalog(cfg.Commands,
		command.WithWorkingDir(cfg.Manager.WorkingDir),
		command.WithTimeout(cfg.Manager.CommandTimeout),
		command.WithLogger(logger.Slog()),
	)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	printer := ux.NewPrinter(out)

	confirm := opts.Confirm
	if confirm == nil {
		confirm = ux.Confirmer(false)
	}

	mgr, err := manager.New(ctx, catalog,
		manager.WithSettings(cfg.Settings()),
		manager.WithInclude(cfg.Manager.Include...),
		manager.WithExclude(cfg.Manager.Exclude...),
		manager.WithLogger(logger.Slog()),
		manager.WithNotifier(newProgressNotifier(printer)),
		manager.WithPreValidateBeforeFix(cfg.Manager.PreValidateBeforeFixOrDefault()),
		manager.WithConfirm(fetchConfirm(confirm)),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("Rules loaded",
		slog.String("config", cfg.Source),
		slog.Int("rules", len(mgr.Rules())),
		slog.String("fetch_policy", policy.String()),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		manager:  mgr,
		printer:  printer,
		out:      out,
		policy:   policy,
		shutdown: shutdown,
	}, nil
}

// close flushes telemetry and closes the logger. Errors are written to
// stderr since the logger may already be gone.
func (a *app) close(ctx context.Context) {
	err := errors.Join(
		a.shutdown(context.WithoutCancel(ctx)),
		a.logger.Close(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "datavalidate: shutdown: %v\n", err)
	}
}

// fetchPolicy parses a --fetch-deps value. Empty selects the configured
// policy.
func (a *app) fetchPolicy(flag string) (resolve.FetchPolicy, error) {
	if flag == "" {
		return a.policy, nil
	}
	return resolve.ParseFetchPolicy(flag)
}

// selectRules looks up the rules named on the command line.
func (a *app) selectRules(ids []string) ([]*rules.Rule, error) {
	selected := make([]*rules.Rule, 0, len(ids))
	for _, raw := range ids {
		id, err := validation.SanitizeRuleID(raw)
		if err != nil {
			return nil, err
		}
		r, ok := a.manager.Rule(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownRule, id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}

// serviceName returns the configured service name.
func serviceName(cfg *config.Config) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	return "datavalidate"
}

// telemetryConfig merges the config file and flags over the defaults.
func telemetryConfig(cfg *config.Config, opts appOptions) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceName = serviceName(cfg)
	if cfg.Telemetry.TraceExporter != "" {
		tc.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.MetricExporter != "" {
		tc.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if opts.TraceExporter != "" {
		tc.TraceExporter = opts.TraceExporter
	}
	if opts.MetricExporter != "" {
		tc.MetricExporter = opts.MetricExporter
	}
	return tc
}

// fetchConfirm adapts a yes/no prompt to the dependency fetch question.
func fetchConfirm(confirm ux.ConfirmFunc) resolve.ConfirmFunc {
	return func(ctx context.Context) (bool, error) {
		ok, err := confirm(ctx,
			"Include missing dependencies?",
			"Some selected rules depend on rules that were not selected.",
		)
		if err != nil {
			return false, fmt.Errorf("dependency fetch prompt: %w", err)
		}
		return ok, nil
	}
}
