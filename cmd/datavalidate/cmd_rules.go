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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianValidate/pkg/ux"
	"github.com/AleutianAI/AleutianValidate/services/validation/config"
)

func runRulesCommand(cmd *cobra.Command, _ []string) error {
	opts := optionsFromFlags()
	opts.Out = cmd.OutOrStdout()
	return runRules(cmd.Context(), opts)
}

// runRules lists the loaded rules in configuration order.
func runRules(ctx context.Context, opts appOptions) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	rs := a.manager.Rules()
	a.printer.Title("Rules")
	if len(rs) == 0 {
		a.printer.Warning("No rules configured.")
		a.printer.Muted("Add commands to " + config.DefaultFileName + " to define rules.")
		return nil
	}
	printRuleList(a.printer, rs)
	a.printer.Summary(ux.Count{Label: "rules", Value: len(rs), Icon: ux.IconBullet})
	return nil
}
