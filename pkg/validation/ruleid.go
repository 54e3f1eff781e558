// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that reach
// subprocesses.
//
// Rule IDs are passed to check and fix commands through the environment
// and appear in metric labels and log fields. Restricting them to a small
// character set keeps them safe in all three places.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRuleID is returned for rule IDs outside the allowed format.
var ErrInvalidRuleID = errors.New("invalid rule id")

// ruleIDPattern matches valid rule IDs.
// Allows: letters, digits, underscore, dot, hyphen; must start with a
// letter or digit.
// Max length: 128 characters
var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,127}$`)

// ValidateRuleID validates a rule ID.
//
// Valid IDs:
//   - 1-128 characters
//   - Letters and digits
//   - Underscores, dots and hyphens after the first character
//
// Example:
//
//	if err := validation.ValidateRuleID(id); err != nil {
//	    return fmt.Errorf("rule %q: %w", id, err)
//	}
func ValidateRuleID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRuleID)
	}
	if !ruleIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (must be 1-128 letters, digits, '_', '.' or '-')", ErrInvalidRuleID, id)
	}
	return nil
}

// ValidateRuleIDs validates multiple rule IDs.
// Returns an error listing all invalid IDs if any fail validation.
func ValidateRuleIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateRuleID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidRuleID, invalid)
	}
	return nil
}

// SanitizeRuleID trims and validates a rule ID typed by a user.
func SanitizeRuleID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateRuleID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
