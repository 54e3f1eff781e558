// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRuleID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid IDs
		{"simple", "schema", false},
		{"single char", "a", false},
		{"snake case", "duplicate_rows", false},
		{"dotted", "orders.schema", false},
		{"hyphen", "no-nulls", false},
		{"mixed case", "CheckV2", false},
		{"starts with digit", "1st_pass", false},
		{"max length", strings.Repeat("a", 128), false},

		// Invalid IDs
		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"spaces", "dup rows", true},
		{"shell metachar", "a;rm -rf", true},
		{"newline", "a\nb", true},
		{"env injection", "a=b", true},
		{"path", "../etc", true},
		{"starts with dot", ".hidden", true},
		{"starts with hyphen", "-flag", true},
		{"unicode", "règle", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRuleID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRuleID) {
				t.Errorf("ValidateRuleID(%q) error = %v, want ErrInvalidRuleID", tt.id, err)
			}
		})
	}
}

func TestValidateRuleIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{"all valid", []string{"schema", "dupes", "a.b"}, false},
		{"one invalid", []string{"schema", "bad!", "dupes"}, true},
		{"all invalid", []string{"", " "}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleIDs(tt.ids)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRuleIDs(%v) error = %v, wantErr %v", tt.ids, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeRuleID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    string
		wantErr bool
	}{
		{"passthrough", "schema", "schema", false},
		{"spaces trimmed", "  schema\t", "schema", false},
		{"case kept", "Schema", "Schema", false},
		{"invalid rejected", "bad!", "", true},
		{"blank rejected", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeRuleID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeRuleID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeRuleID(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}
