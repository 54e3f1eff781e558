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
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianValidate/pkg/ux"
	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
)

// Exit codes for validate and resolve.
const (
	ExitValid      = 0
	ExitViolations = 1
	ExitError      = 2
	ExitCycle      = 3
)

// exitError carries a process exit code through cobra.
//
// A nil err means the outcome was already reported and main prints
// nothing more.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// errViolations reports failing rules.
var errViolations = &exitError{code: ExitViolations}

// exitCodeFor maps a command error to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitValid
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if errors.Is(err, resolve.ErrDependencyCycle) {
		return ExitCycle
	}
	return ExitError
}

// reportRunError prints resolution errors that deserve more than one
// line and returns the error to hand back to cobra.
func reportRunError(p *ux.Printer, err error) error {
	var cycle *resolve.CycleError
	switch {
	case errors.As(err, &cycle):
		p.Box("Dependency cycle",
			"These rules depend on each other:\n  "+strings.Join(cycle.Path, " → ")+
				"\n\nRemove one of the depends_on entries to break the cycle.",
			true)
		return &exitError{code: ExitCycle}
	case errors.Is(err, resolve.ErrFetchCancelled):
		p.Warning("Cancelled: the selected rules need dependencies that were not included.")
		p.Muted("Run again with --fetch-deps always to include them.")
		return &exitError{code: ExitError}
	default:
		return err
	}
}
