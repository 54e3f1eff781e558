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
	"maps"
	"slices"
)

// Validity is the result of the most recent check of a rule.
type Validity int

const (
	// Unchecked means the check has not completed since the last reset.
	Unchecked Validity = iota

	// Valid means the last check found no violations.
	Valid

	// Invalid means the last check found violations or failed to run.
	Invalid
)

// String returns the lowercase name of the validity.
func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unchecked"
	}
}

// validityOf converts a boolean check result.
func validityOf(ok bool) Validity {
	if ok {
		return Valid
	}
	return Invalid
}

// ErrorItem is a single data violation found by a check.
type ErrorItem struct {
	// ID identifies the offending item in the external dataset.
	ID string `json:"id"`

	// Name is the display name of the item.
	Name string `json:"name"`

	// Type is an optional item type.
	Type string `json:"type,omitempty"`

	// Extra carries integration-specific fields.
	Extra map[string]any `json:"extra,omitempty"`
}

// CheckOutcome is the normalized result of a check.
type CheckOutcome struct {
	IsValid bool        `json:"is_valid"`
	Errors  []ErrorItem `json:"errors"`
}

// OutcomeProvider is implemented by check results that know their outcome.
type OutcomeProvider interface {
	CheckOutcome() (CheckOutcome, error)
}

// Kwargs are the keyword arguments passed to every check and fix.
type Kwargs map[string]any

// CheckFunc inspects the external dataset and returns a raw result for
// the rule's Sanitizer.
type CheckFunc func(ctx context.Context, kwargs Kwargs) (any, error)

// FixFunc repairs the violations found by the last check.
//
// The returned bool is the fix's own success signal. A non-nil error is
// recorded as a fix runtime error and counts as failure.
type FixFunc func(ctx context.Context, kwargs Kwargs, errs []ErrorItem) (bool, error)

// KwargsProvider supplies arguments computed at invocation time.
type KwargsProvider func() Kwargs

// Action is a named callback offered alongside a rule.
type Action struct {
	Name     string
	Tooltip  string
	Callback func(ctx context.Context, kwargs Kwargs, items []ErrorItem) error
}

// Definition is the declarative description of a rule.
//
// Description:
//
//	Definitions come from a Catalog. They are treated as immutable values:
//	the registry copies a definition and applies overrides to the copy.
type Definition struct {
	ID          string
	Name        string
	Description string
	DataType    string

	// Optional marks the rule as not required. Rules are required by default.
	Optional bool

	// Checked is the initial "turned on" state of an optional rule.
	Checked bool

	CheckName  string
	FixName    string
	FixTooltip string
	ErrorMsg   string
	WarnMsg    string

	Check          CheckFunc
	Fix            FixFunc
	Kwargs         Kwargs
	KwargsProvider KwargsProvider
	Sanitizer      Sanitizer

	DependencyIDs []string
	Actions       []Action
	ItemActions   []Action
}

// Overrides are per-deployment settings merged over a Definition.
//
// Nil fields leave the definition value unchanged.
type Overrides struct {
	Name          *string
	Description   *string
	DataType      *string
	Required      *bool
	Checked       *bool
	CheckName     *string
	FixName       *string
	FixTooltip    *string
	ErrorMsg      *string
	WarnMsg       *string
	Kwargs        Kwargs
	DependencyIDs []string
}

// Setting selects a catalog rule and optionally overrides its definition.
type Setting struct {
	ID        string
	Overrides Overrides
}

// Apply returns a copy of def with the overrides applied.
//
// Description:
//
//	Scalar overrides replace the definition value. Kwargs are merged key
//	by key with the override winning. DependencyIDs replace the list when
//	non-nil. The input definition is not modified.
//
// Inputs:
//
//	def - The catalog definition.
//
// Outputs:
//
//	Definition - The merged definition.
func (o Overrides) Apply(def Definition) Definition {
	out := def
	out.Kwargs = maps.Clone(def.Kwargs)
	out.DependencyIDs = slices.Clone(def.DependencyIDs)
	out.Actions = slices.Clone(def.Actions)
	out.ItemActions = slices.Clone(def.ItemActions)

	setString(&out.Name, o.Name)
	setString(&out.Description, o.Description)
	setString(&out.DataType, o.DataType)
	setString(&out.CheckName, o.CheckName)
	setString(&out.FixName, o.FixName)
	setString(&out.FixTooltip, o.FixTooltip)
	setString(&out.ErrorMsg, o.ErrorMsg)
	setString(&out.WarnMsg, o.WarnMsg)

	if o.Required != nil {
		out.Optional = !*o.Required
	}
	if o.Checked != nil {
		out.Checked = *o.Checked
	}
	if len(o.Kwargs) > 0 {
		if out.Kwargs == nil {
			out.Kwargs = make(Kwargs, len(o.Kwargs))
		}
		maps.Copy(out.Kwargs, o.Kwargs)
	}
	if o.DependencyIDs != nil {
		out.DependencyIDs = slices.Clone(o.DependencyIDs)
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
