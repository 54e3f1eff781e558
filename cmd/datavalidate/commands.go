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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianValidate/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	logLevel         string
	logJSON          bool
	traceExporter    string
	personalityLevel string // UX personality level (standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "datavalidate",
		Short: "Validate data against rules and fix what fails",
		Long: `datavalidate runs a catalog of validation rules, orders them by their
dependencies, and applies the automatic fixes of failing rules.

Rules are declared in datavalidate.yaml. The file is found through
--config, DATAVALIDATE_CONFIG, ./datavalidate.yaml or
./config/datavalidate.yaml, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "List the configured rules and their dependencies",
		Args:  cobra.NoArgs,
		RunE:  runRulesCommand, // Defined in cmd_rules.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Run rule checks and report failures",
		Long: `Run the checks of every configured rule, or of the rules named with
--rule in dependency order.

Exit Codes:
  0 = All rules valid
  1 = At least one rule failing
  2 = Error (bad config, declined dependency fetch)
  3 = Dependency cycle`,
		Args: cobra.NoArgs,
		RunE: runValidateCommand, // Defined in cmd_validate.go
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Fix failing rules in dependency order",
		Long: `Apply the fixes of failing rules, dependencies first, and report the
result of the final validation.

Without --rule every failing rule is fixed, repeating while fixes make
progress. With --rule the named rules are fixed once.

With --post-validate=false --retry=false nothing is checked after fixing.
The report then shows the state before fixing and the exit code is 0.

Exit Codes:
  0 = All rules valid afterwards
  1 = At least one rule still failing
  2 = Error (bad config, declined dependency fetch)
  3 = Dependency cycle`,
		Args: cobra.NoArgs,
		RunE: runResolveCommand, // Defined in cmd_resolve.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Revalidate when files change and serve the status over HTTP",
		Long: `Validate every rule at startup and again whenever a watched path
changes. The latest result is served on /v1/validation/status together
with Prometheus metrics on /metrics.

Examples:
  datavalidate watch --path ./data
  datavalidate watch --path ./data --path ./schema.json --listen :9090`,
		Args: cobra.NoArgs,
		RunE: runWatchCommand, // Defined in cmd_watch.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "",
		"Path to datavalidate.yaml")
	pf.StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	pf.BoolVar(&logJSON, "log-json", false,
		"Write logs as JSON")
	pf.StringVar(&traceExporter, "trace-exporter", "",
		"Trace exporter: none, stdout, otlp (overrides config)")
	pf.StringVar(&personalityLevel, "personality", "",
		"Output style: standard, minimal, machine")

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(watchCmd)
}
