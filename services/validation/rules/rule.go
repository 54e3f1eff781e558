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
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

const (
	defaultCheckName   = "Validate"
	defaultFixName     = "Fix"
	defaultFixTooltip  = "Click to fix this data violation."
	defaultErrorMsg    = "Found errors."
	defaultManualWarn  = "Validation must be manually checked."
	checkErrorPrefix   = "Validation Error: "
	fixErrorPrefix     = "Fix Error: "
	dependencyErrorFmt = "Dependency '%s' failed."
)

// CheckResult describes one ExecCheck call.
type CheckResult struct {
	// Skipped is true when the check did not run because a dependency failed.
	Skipped bool

	// Validity is the rule validity after the call.
	Validity Validity

	// Errors are the error items after the call.
	Errors []ErrorItem
}

// FixStatus describes how an ExecFix call ended.
type FixStatus int

const (
	// FixApplied means the fix ran and reported success.
	FixApplied FixStatus = iota

	// FixFailed means the fix ran and reported failure or returned an error.
	FixFailed

	// FixAlreadyValid means the rule was valid so the fix was not run.
	FixAlreadyValid

	// FixUnavailable means the rule has no fix.
	FixUnavailable

	// FixBlocked means a dependency failed so the fix was not run.
	FixBlocked
)

// String returns the status name.
func (s FixStatus) String() string {
	switch s {
	case FixApplied:
		return "applied"
	case FixFailed:
		return "failed"
	case FixAlreadyValid:
		return "already_valid"
	case FixUnavailable:
		return "unavailable"
	case FixBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("FixStatus(%d)", int(s))
	}
}

// FixResult describes one ExecFix call.
type FixResult struct {
	Status FixStatus
}

// Success reports whether the rule needs no further fixing.
func (r FixResult) Success() bool {
	return r.Status == FixApplied || r.Status == FixAlreadyValid
}

// Rule is a single validation unit with mutable execution state.
//
// Description:
//
//	A Rule wraps an immutable Definition and records the outcome of its
//	most recent check and fix. Check and fix failures are captured on the
//	rule and never returned to the caller, with the exception of
//	malformed check results.
//
// Thread Safety:
//
//	Rule is NOT safe for concurrent use.
type Rule struct {
	def           Definition
	sanitizer     Sanitizer
	dependencyIDs []string
	dependencies  map[string]string

	checked       bool
	manualChecked bool

	validity         Validity
	errors           []ErrorItem
	fixExecuted      bool
	failedDependency *Rule
	checkErr         error
	fixErr           error
}

// NewRule creates a rule from a definition.
//
// Inputs:
//
//	def - The rule definition. ID must not be empty.
//
// Outputs:
//
//	*Rule - The new rule in the Unchecked state.
//	error - ErrInvalidDefinition if the definition has no ID.
func NewRule(def Definition) (*Rule, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("%w: empty rule id", ErrInvalidDefinition)
	}

	sanitizer := def.Sanitizer
	if sanitizer == nil {
		sanitizer = DefaultSanitizer{}
	}

	ids := slices.Clone(def.DependencyIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	return &Rule{
		def:           def,
		sanitizer:     sanitizer,
		dependencyIDs: ids,
		dependencies:  map[string]string{},
		checked:       def.Checked,
	}, nil
}

// ---- Identity & Classification ----

// ID returns the unique rule identifier.
func (r *Rule) ID() string { return r.def.ID }

// Name returns the display name, falling back to the ID.
func (r *Rule) Name() string {
	if r.def.Name == "" {
		return r.def.ID
	}
	return r.def.Name
}

// Description returns what the rule checks for.
func (r *Rule) Description() string { return r.def.Description }

// DataType returns the name of the data type the rule applies to.
func (r *Rule) DataType() string { return r.def.DataType }

// Required reports whether the rule must pass for the data to be valid.
func (r *Rule) Required() bool { return !r.def.Optional }

// Optional is the inverse of Required.
func (r *Rule) Optional() bool { return r.def.Optional }

// Manual reports whether the rule has neither a check nor a fix.
func (r *Rule) Manual() bool { return r.def.Check == nil && r.def.Fix == nil }

// HasCheck reports whether the rule has a check function.
func (r *Rule) HasCheck() bool { return r.def.Check != nil }

// HasFix reports whether the rule has a fix function.
func (r *Rule) HasFix() bool { return r.def.Fix != nil }

// Checked reports whether an optional rule is turned on.
func (r *Rule) Checked() bool { return r.checked }

// SetChecked turns an optional rule on or off.
func (r *Rule) SetChecked(checked bool) { r.checked = checked }

// ManualChecked reports whether a manual rule was marked done by the user.
func (r *Rule) ManualChecked() bool { return r.manualChecked }

// SetManualChecked marks a manual rule done or not done.
func (r *Rule) SetManualChecked(checked bool) { r.manualChecked = checked }

// Type returns the rule type derived from the classification.
func (r *Rule) Type() RuleType { return TypeForRule(r) }

// CheckName returns the display name of the check action.
func (r *Rule) CheckName() string { return orDefault(r.def.CheckName, defaultCheckName) }

// FixName returns the display name of the fix action.
func (r *Rule) FixName() string { return orDefault(r.def.FixName, defaultFixName) }

// FixTooltip returns the help text for the fix action.
func (r *Rule) FixTooltip() string { return orDefault(r.def.FixTooltip, defaultFixTooltip) }

// Actions returns the extra rule-level actions.
func (r *Rule) Actions() []Action { return slices.Clone(r.def.Actions) }

// ItemActions returns the extra per-item actions.
func (r *Rule) ItemActions() []Action { return slices.Clone(r.def.ItemActions) }

// ---- Dependencies ----

// DependencyIDs returns the sorted, de-duplicated dependency rule IDs.
func (r *Rule) DependencyIDs() []string { return slices.Clone(r.dependencyIDs) }

// Dependencies returns the known dependencies as id to display name.
func (r *Rule) Dependencies() map[string]string { return maps.Clone(r.dependencies) }

// DependencyNames returns the display names of known dependencies, ordered by ID.
func (r *Rule) DependencyNames() []string {
	names := make([]string, 0, len(r.dependencies))
	for _, id := range r.dependencyIDs {
		if name, ok := r.dependencies[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (r *Rule) setDependencyName(id, name string) {
	r.dependencies[id] = name
}

// ---- Execution State ----

// Validity returns the result of the last check.
func (r *Rule) Validity() Validity { return r.validity }

// Valid returns the last check result, or nil when unchecked.
func (r *Rule) Valid() *bool {
	if r.validity == Unchecked {
		return nil
	}
	v := r.validity == Valid
	return &v
}

// Errors returns the error items of the last check. Nil until a check runs.
func (r *Rule) Errors() []ErrorItem { return slices.Clone(r.errors) }

// ErrorItemIDs returns the IDs of the current error items.
func (r *Rule) ErrorItemIDs() []string {
	ids := make([]string, 0, len(r.errors))
	for _, item := range r.errors {
		ids = append(ids, item.ID)
	}
	return ids
}

// FixExecuted reports whether a fix was attempted since the last reset.
func (r *Rule) FixExecuted() bool { return r.fixExecuted }

// CheckRuntimeError returns the captured failure of the last check, if any.
func (r *Rule) CheckRuntimeError() error { return r.checkErr }

// FixRuntimeError returns the captured failure of the last fix, if any.
func (r *Rule) FixRuntimeError() error { return r.fixErr }

// FailedDependency returns the upstream rule that blocked this rule.
func (r *Rule) FailedDependency() *Rule { return r.failedDependency }

// SetFailedDependency marks the rule as blocked by dep. Nil clears the marker.
func (r *Rule) SetFailedDependency(dep *Rule) { r.failedDependency = dep }

// HasFailedDependency reports whether the rule is blocked.
func (r *Rule) HasFailedDependency() bool { return r.failedDependency != nil }

// Reset clears execution state. User toggles are kept.
func (r *Rule) Reset() {
	r.validity = Unchecked
	r.errors = nil
	r.fixExecuted = false
	r.failedDependency = nil
	r.checkErr = nil
	r.fixErr = nil
}

// ---- Check & Fix ----

// ExecCheck runs the rule check and stores the outcome.
//
// Description:
//
//	When the rule is blocked and force is false, the check is skipped and
//	validity returns to Unchecked. Otherwise:
//	  - with a check: the check runs with merged kwargs, panics and errors
//	    mark the rule Invalid and are recorded as CheckRuntimeError
//	  - manual rule: validity follows ManualChecked
//	  - fix-only rule: the rule is Valid until a check exists to say otherwise
//
// Inputs:
//
//	ctx - Passed to the check function.
//	force - Run even when a dependency failed.
//
// Outputs:
//
//	CheckResult - Validity and errors after the call.
//	error - *MalformedResultError if the check result could not be
//	        sanitized. The rule is left Invalid in that case.
func (r *Rule) ExecCheck(ctx context.Context, force bool) (CheckResult, error) {
	if !force && r.failedDependency != nil {
		r.validity = Unchecked
		r.errors = nil
		return CheckResult{Skipped: true, Validity: Unchecked}, nil
	}

	switch {
	case r.def.Check != nil:
		return r.runCheck(ctx)
	case r.Manual():
		r.validity = validityOf(r.manualChecked)
	default:
		r.validity = Valid
	}
	r.errors = []ErrorItem{}
	r.checkErr = nil
	return r.checkResult(), nil
}

func (r *Rule) runCheck(ctx context.Context) (CheckResult, error) {
	var raw any
	err := guard(func() error {
		var callErr error
		raw, callErr = r.def.Check(ctx, r.kwargs())
		return callErr
	})
	if err != nil {
		r.validity = Invalid
		r.errors = nil
		r.checkErr = &RuntimeError{RuleID: r.def.ID, Op: opCheck, Err: err}
		return r.checkResult(), nil
	}

	outcome, err := r.sanitizer.Sanitize(raw)
	if err != nil {
		reason := err.Error()
		var mre *MalformedResultError
		if errors.As(err, &mre) {
			reason = mre.Reason
		}
		malformed := &MalformedResultError{RuleID: r.def.ID, Reason: reason}
		r.validity = Invalid
		r.errors = nil
		r.checkErr = malformed
		return r.checkResult(), malformed
	}

	r.validity = validityOf(outcome.IsValid)
	r.errors = outcome.Errors
	if r.errors == nil {
		r.errors = []ErrorItem{}
	}
	r.checkErr = nil
	return r.checkResult(), nil
}

func (r *Rule) checkResult() CheckResult {
	return CheckResult{Validity: r.validity, Errors: r.Errors()}
}

// ExecFix runs the rule fix.
//
// Description:
//
//	Steps:
//	  1. If preValidate, run ExecCheck so the fix sees current errors.
//	  2. A rule with a check that is already Valid is not fixed again.
//	  3. A rule without a fix cannot be fixed.
//	  4. A blocked rule is not fixed unless force is set.
//	  5. The fix runs with merged kwargs and the current error items.
//	     FixExecuted is set whether it succeeds or fails.
//
// Inputs:
//
//	ctx - Passed to the check and fix functions.
//	preValidate - Run the check before fixing.
//	force - Ignore a failed dependency.
//
// Outputs:
//
//	FixResult - How the call ended. Use Success to test the outcome.
//	error - *MalformedResultError from the pre-validation check, if any.
//	        The fix is still attempted.
func (r *Rule) ExecFix(ctx context.Context, preValidate, force bool) (FixResult, error) {
	var checkErr error
	if preValidate {
		_, checkErr = r.ExecCheck(ctx, force)
	}

	if r.def.Check != nil && r.validity == Valid {
		return FixResult{Status: FixAlreadyValid}, checkErr
	}
	if r.def.Fix == nil {
		return FixResult{Status: FixUnavailable}, checkErr
	}
	if !force && r.failedDependency != nil {
		return FixResult{Status: FixBlocked}, checkErr
	}

	var ok bool
	err := guard(func() error {
		var callErr error
		ok, callErr = r.def.Fix(ctx, r.kwargs(), r.Errors())
		return callErr
	})
	r.fixExecuted = true

	if err != nil {
		r.fixErr = &RuntimeError{RuleID: r.def.ID, Op: opFix, Err: err}
		return FixResult{Status: FixFailed}, checkErr
	}
	r.fixErr = nil
	if !ok {
		return FixResult{Status: FixFailed}, checkErr
	}
	return FixResult{Status: FixApplied}, checkErr
}

// kwargs merges static kwargs with the provider output. Provider wins.
func (r *Rule) kwargs() Kwargs {
	merged := make(Kwargs, len(r.def.Kwargs))
	maps.Copy(merged, r.def.Kwargs)
	if r.def.KwargsProvider != nil {
		maps.Copy(merged, r.def.KwargsProvider())
	}
	return merged
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// ---- Messages ----

// ErrorMessage returns the configured error text.
func (r *Rule) ErrorMessage() string {
	if r.def.ErrorMsg != "" {
		return r.def.ErrorMsg
	}
	if r.def.Check != nil {
		return defaultErrorMsg
	}
	return ""
}

// WarnMessage returns the configured warning text.
func (r *Rule) WarnMessage() string {
	if r.def.WarnMsg != "" {
		return r.def.WarnMsg
	}
	if r.Manual() {
		return defaultManualWarn
	}
	return ""
}

// ErrorMessages returns the messages describing why the rule is failing.
//
// Description:
//
//	Runtime failures are reported first. The configured error message is
//	only included when the check ran cleanly and no fix was attempted, so
//	it describes actual violations rather than a broken integration.
func (r *Rule) ErrorMessages() []string {
	var msgs []string

	if r.failedDependency != nil {
		msgs = append(msgs, fmt.Sprintf(dependencyErrorFmt, r.failedDependency.Name()))
	}
	if r.checkErr != nil {
		msgs = append(msgs, checkErrorPrefix+causeOf(r.checkErr))
	}
	if r.fixErr != nil {
		msgs = append(msgs, fixErrorPrefix+causeOf(r.fixErr))
	}
	if r.checkErr == nil && !r.fixExecuted {
		if msg := r.ErrorMessage(); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// WarningMessages returns the warning text, if any.
func (r *Rule) WarningMessages() []string {
	if msg := r.WarnMessage(); msg != "" {
		return []string{msg}
	}
	return nil
}

func causeOf(err error) string {
	var rte *RuntimeError
	if errors.As(err, &rte) {
		return rte.Err.Error()
	}
	return err.Error()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
