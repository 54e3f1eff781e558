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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianValidate/pkg/ux"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
	"github.com/AleutianAI/AleutianValidate/services/validation/server"
)

// maxReportItems bounds the error items printed per rule.
const maxReportItems = 10

// printReport prints one status line per rule and a summary.
func printReport(p *ux.Printer, rs []*rules.Rule) {
	var valid, failing, unchecked int
	for _, r := range rs {
		switch r.Validity() {
		case rules.Valid:
			valid++
			p.StatusLine(ux.IconSuccess, r.Name(), "")
		case rules.Invalid:
			failing++
			printFailing(p, r)
		default:
			unchecked++
			detail := "not checked"
			if r.Manual() {
				detail = "manual"
			}
			p.StatusLine(ux.IconPending, r.Name(), detail)
			for _, msg := range r.WarningMessages() {
				p.Detail(msg)
			}
		}
	}

	p.Summary(
		ux.Count{Label: "valid", Value: valid, Icon: ux.IconSuccess},
		ux.Count{Label: "failing", Value: failing, Icon: ux.IconError},
		ux.Count{Label: "unchecked", Value: unchecked, Icon: ux.IconPending},
	)
}

// printFailing prints a failing rule with its messages and items.
func printFailing(p *ux.Printer, r *rules.Rule) {
	icon := ux.IconError
	if r.Optional() {
		icon = ux.IconWarning
	}

	errs := r.Errors()
	detail := ""
	switch {
	case r.HasFailedDependency():
		detail = "blocked"
	case len(errs) == 1:
		detail = "1 error"
	case len(errs) > 1:
		detail = fmt.Sprintf("%d errors", len(errs))
	}
	p.StatusLine(icon, r.Name(), detail)

	for _, msg := range r.ErrorMessages() {
		p.Detail(msg)
	}
	for _, item := range errs[:min(len(errs), maxReportItems)] {
		p.Detail(itemLabel(item))
	}
	if len(errs) > maxReportItems {
		p.Detail(fmt.Sprintf("... and %d more", len(errs)-maxReportItems))
	}
}

// itemLabel renders an error item for display.
func itemLabel(item rules.ErrorItem) string {
	label := item.Name
	if label == "" {
		label = item.ID
	} else if item.ID != "" && item.ID != item.Name {
		label = fmt.Sprintf("%s [%s]", item.Name, item.ID)
	}
	if item.Type != "" {
		label += " (" + item.Type + ")"
	}
	return label
}

// runReport is the JSON report of a validate or resolve run.
type runReport struct {
	server.Status
	Command string `json:"command"`
}

// writeJSONReport writes the run result as indented JSON.
func writeJSONReport(w io.Writer, cmdName, runID string, started time.Time, rs []*rules.Rule, runErr error) error {
	st := server.Snapshot(rs)
	st.RunID = runID
	st.Trigger = "cli"
	st.StartedAt = started.UTC()
	st.DurationMS = time.Since(started).Milliseconds()
	if runErr != nil {
		st.Error = runErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runReport{Status: st, Command: cmdName})
}

// printRuleList prints the rules with their type and dependencies.
func printRuleList(p *ux.Printer, rs []*rules.Rule) {
	for _, r := range rs {
		var parts []string
		parts = append(parts, strings.ToLower(r.Type().Name()))
		if r.Manual() {
			parts = append(parts, "manual")
		} else if r.HasFix() {
			parts = append(parts, "fixable")
		}
		if deps := r.DependencyIDs(); len(deps) > 0 {
			parts = append(parts, "depends on "+strings.Join(deps, ", "))
		}
		p.StatusLine(ux.IconBullet, r.ID(), strings.Join(parts, "; "))
		if desc := r.Description(); desc != "" && !p.Machine() {
			p.Detail(desc)
		}
	}
}
