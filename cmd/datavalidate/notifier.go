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
	"fmt"

	"github.com/AleutianAI/AleutianValidate/pkg/ux"
	"github.com/AleutianAI/AleutianValidate/services/validation/manager"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// progressNotifier prints fix progress while a resolve runs.
//
// Checks are not echoed; the report after the run lists them.
type progressNotifier struct {
	manager.NopNotifier
	printer *ux.Printer
}

func newProgressNotifier(p *ux.Printer) *progressNotifier {
	return &progressNotifier{printer: p}
}

func (n *progressNotifier) ResolveRuleBegin(r *rules.Rule) {
	n.printer.Muted(fmt.Sprintf("%s %s: %s", ux.IconArrow, r.FixName(), r.Name()))
}

func (n *progressNotifier) ResolveRuleFinished(r *rules.Rule) {
	if err := r.FixRuntimeError(); err != nil {
		n.printer.StatusLine(ux.IconError, r.Name(), "fix failed: "+err.Error())
	}
}
