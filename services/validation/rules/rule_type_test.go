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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeID_String(t *testing.T) {
	tests := []struct {
		id   TypeID
		want string
	}{
		{TypeNone, "All"},
		{TypeAuto, "Automated"},
		{TypeRequired, "Required"},
		{TypeOptional, "Optional"},
		{TypeManual, "Manual"},
		{TypeActive, "Active"},
		{TypeID(9), "TypeID(9)"},
	}

	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("TypeID(%d).String() = %q, want %q", int(tt.id), got, tt.want)
		}
	}
}

func TestRuleType_AcceptRule(t *testing.T) {
	required := mustRule(t, Definition{ID: "req"})
	optional := mustRule(t, Definition{ID: "opt", Optional: true})
	optionalOn := mustRule(t, Definition{ID: "on", Optional: true, Checked: true})

	tests := []struct {
		typeID TypeID
		rule   *Rule
		want   bool
	}{
		{TypeNone, required, true},
		{TypeNone, optional, true},
		{TypeRequired, required, true},
		{TypeRequired, optional, false},
		{TypeOptional, optional, true},
		{TypeOptional, required, false},
		{TypeActive, required, true},
		{TypeActive, optional, false},
		{TypeActive, optionalOn, true},
		{TypeManual, required, false},
	}

	for _, tt := range tests {
		t.Run(tt.typeID.String()+"/"+tt.rule.ID(), func(t *testing.T) {
			assert.Equal(t, tt.want, NewRuleType(tt.typeID).AcceptRule(tt.rule))
		})
	}
}

func TestRuleType_ActiveFollowsToggle(t *testing.T) {
	r := mustRule(t, Definition{ID: "opt", Optional: true})
	active := NewRuleType(TypeActive)

	assert.False(t, active.AcceptRule(r))
	r.SetChecked(true)
	assert.True(t, active.AcceptRule(r))
	assert.False(t, active.AcceptRule(nil))
}

func TestTypeForRule(t *testing.T) {
	assert.Equal(t, TypeRequired, mustRule(t, Definition{ID: "a"}).Type().ID())
	assert.Equal(t, TypeOptional, mustRule(t, Definition{ID: "b", Optional: true}).Type().ID())
}

func TestDefaultRuleTypes(t *testing.T) {
	types := DefaultRuleTypes()
	names := make([]string, 0, len(types))
	for _, rt := range types {
		names = append(names, rt.Name())
	}
	assert.Equal(t, []string{"All", "Active", "Required", "Optional"}, names)
}
