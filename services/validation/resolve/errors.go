// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for resolution.
var (
	// ErrDependencyCycle is returned when the rules in scope form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrFetchCancelled is returned when fetching dependencies was declined.
	ErrFetchCancelled = errors.New("dependency fetch cancelled")

	// ErrNilLookup is returned when an engine is built without a rule lookup.
	ErrNilLookup = errors.New("rule lookup is nil")

	// ErrNilProcess is returned when Run is called without a process function.
	ErrNilProcess = errors.New("process function is nil")

	// ErrUnknownPolicy is returned when a fetch policy name is not recognized.
	ErrUnknownPolicy = errors.New("unknown fetch policy")
)

// CycleError reports a dependency cycle.
type CycleError struct {
	// Path lists the rule IDs on the cycle. The first ID is repeated at the end.
	Path []string
}

// NewCycleError creates a CycleError for the given path.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}

// Error implements error.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrDependencyCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDependencyCycle, strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrDependencyCycle.
func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}
