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

import "fmt"

// TypeID identifies a rule type.
type TypeID int

// Rule type IDs. The numeric values are stable.
const (
	TypeNone TypeID = iota
	TypeAuto
	TypeRequired
	TypeOptional
	TypeManual
	TypeActive
)

// String returns the display name of the type.
func (id TypeID) String() string {
	switch id {
	case TypeNone:
		return "All"
	case TypeAuto:
		return "Automated"
	case TypeRequired:
		return "Required"
	case TypeOptional:
		return "Optional"
	case TypeManual:
		return "Manual"
	case TypeActive:
		return "Active"
	default:
		return fmt.Sprintf("TypeID(%d)", int(id))
	}
}

// RuleType groups rules for filtering.
//
// Description:
//
//	By default a type accepts the rules whose own type (Required or
//	Optional) equals it. Two types differ:
//	  - None ("All") accepts every rule
//	  - Active accepts rules that are required or turned on
type RuleType struct {
	id     TypeID
	accept func(*Rule) bool
}

// NewRuleType creates a rule type with its default acceptance predicate.
func NewRuleType(id TypeID) RuleType {
	rt := RuleType{id: id}
	switch id {
	case TypeNone:
		rt.accept = func(*Rule) bool { return true }
	case TypeActive:
		rt.accept = func(r *Rule) bool { return r.Required() || r.Checked() }
	}
	return rt
}

// ID returns the type ID.
func (t RuleType) ID() TypeID { return t.id }

// Name returns the display name.
func (t RuleType) Name() string { return t.id.String() }

// AcceptRule reports whether the rule belongs to this type.
func (t RuleType) AcceptRule(r *Rule) bool {
	if r == nil {
		return false
	}
	if t.accept != nil {
		return t.accept(r)
	}
	return TypeForRule(r).id == t.id
}

// TypeForRule classifies a rule as Required or Optional.
func TypeForRule(r *Rule) RuleType {
	if r.Required() {
		return NewRuleType(TypeRequired)
	}
	return NewRuleType(TypeOptional)
}

// DefaultRuleTypes returns the default filter types, in display order.
func DefaultRuleTypes() []RuleType {
	return []RuleType{
		NewRuleType(TypeNone),
		NewRuleType(TypeActive),
		NewRuleType(TypeRequired),
		NewRuleType(TypeOptional),
	}
}
