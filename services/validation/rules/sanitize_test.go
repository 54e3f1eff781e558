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
	"github.com/stretchr/testify/require"
)

type providerResult struct{ ok bool }

func (p providerResult) CheckOutcome() (CheckOutcome, error) {
	return CheckOutcome{IsValid: p.ok}, nil
}

func TestDefaultSanitizer_AcceptedShapes(t *testing.T) {
	s := DefaultSanitizer{}

	tests := []struct {
		name string
		raw  any
		want CheckOutcome
	}{
		{
			name: "outcome value",
			raw:  CheckOutcome{IsValid: true},
			want: CheckOutcome{IsValid: true},
		},
		{
			name: "outcome pointer",
			raw:  &CheckOutcome{IsValid: false, Errors: []ErrorItem{{ID: "1"}}},
			want: CheckOutcome{IsValid: false, Errors: []ErrorItem{{ID: "1"}}},
		},
		{
			name: "provider",
			raw:  providerResult{ok: true},
			want: CheckOutcome{IsValid: true},
		},
		{
			name: "map with nil errors",
			raw:  map[string]any{"is_valid": false, "errors": nil},
			want: CheckOutcome{IsValid: false},
		},
		{
			name: "map with item maps",
			raw: map[string]any{
				"is_valid": false,
				"errors": []any{
					map[string]any{"id": 7, "name": "mesh", "type": "node", "path": "/a"},
				},
			},
			want: CheckOutcome{Errors: []ErrorItem{{
				ID: "7", Name: "mesh", Type: "node", Extra: map[string]any{"path": "/a"},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Sanitize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultSanitizer_Malformed(t *testing.T) {
	s := DefaultSanitizer{}

	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"nil pointer", (*CheckOutcome)(nil)},
		{"missing is_valid", map[string]any{"errors": nil}},
		{"missing errors", map[string]any{"is_valid": true}},
		{"non-bool is_valid", map[string]any{"is_valid": "yes", "errors": nil}},
		{"errors not a list", map[string]any{"is_valid": true, "errors": "none"}},
		{"item not an object", map[string]any{"is_valid": true, "errors": []any{"x"}}},
		{"unsupported type", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sanitize(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedResult)
		})
	}
}

func TestSanitizerFunc(t *testing.T) {
	var s Sanitizer = SanitizerFunc(func(raw any) (CheckOutcome, error) {
		return CheckOutcome{IsValid: raw == "ok"}, nil
	})

	got, err := s.Sanitize("ok")
	require.NoError(t, err)
	assert.True(t, got.IsValid)
}
