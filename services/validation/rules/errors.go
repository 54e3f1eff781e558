// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule operations.
var (
	// ErrCheckRuntime is returned when a check function fails or panics.
	ErrCheckRuntime = errors.New("check failed")

	// ErrFixRuntime is returned when a fix function fails or panics.
	ErrFixRuntime = errors.New("fix failed")

	// ErrMalformedResult is returned when a check result cannot be sanitized.
	ErrMalformedResult = errors.New("malformed check result")

	// ErrMissingDependency is reported when a rule references an unknown rule ID.
	ErrMissingDependency = errors.New("dependency not found")

	// ErrInvalidDefinition is returned when a rule definition cannot build a rule.
	ErrInvalidDefinition = errors.New("invalid rule definition")

	// ErrRuleNotFound is returned when a rule ID is not in the catalog.
	ErrRuleNotFound = errors.New("rule not found")
)

// RuntimeError records a failed check or fix invocation.
//
// Description:
//
//	RuntimeError is stored on the rule and never propagated to the caller.
//	It matches ErrCheckRuntime or ErrFixRuntime via errors.Is depending
//	on which operation failed.
type RuntimeError struct {
	RuleID string
	Op     string
	Err    error
}

// Error implements error.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("rule %q: %s: %v", e.RuleID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failed operation.
func (e *RuntimeError) Is(target error) bool {
	switch e.Op {
	case opCheck:
		return target == ErrCheckRuntime
	case opFix:
		return target == ErrFixRuntime
	}
	return false
}

// MalformedResultError is returned when a check result has an unknown shape.
type MalformedResultError struct {
	RuleID string
	Reason string
}

// Error implements error.
func (e *MalformedResultError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedResult, e.Reason)
	}
	return fmt.Sprintf("rule %q: %s: %s", e.RuleID, ErrMalformedResult, e.Reason)
}

// Unwrap returns ErrMalformedResult.
func (e *MalformedResultError) Unwrap() error {
	return ErrMalformedResult
}

const (
	opCheck = "check"
	opFix   = "fix"
)
