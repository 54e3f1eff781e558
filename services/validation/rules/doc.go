// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules defines validation rules and the registry that owns them.
//
// A Rule is a single validation unit. It may carry a check (detects
// violations in the external dataset) and a fix (repairs them), plus a set
// of dependency rule IDs that must be fixed first when fixing in bulk.
//
// # Rule State
//
// Each rule tracks the result of its most recent check as a three-valued
// Validity:
//
//	Unchecked ──ExecCheck(ok)──▶ Valid
//	Unchecked ──ExecCheck(fail)─▶ Invalid
//	Invalid ───ExecFix + ExecCheck──▶ Valid
//
// A rule whose dependency failed upstream is blocked: it keeps Validity
// Unchecked and does not run its check or fix unless forced. The blocked
// marker is set by the resolve engine and is recomputed on every pass.
//
// # Classification
//
//	| Kind      | Check | Fix | Validity source         |
//	|-----------|-------|-----|-------------------------|
//	| Automated | yes   | any | check outcome           |
//	| Fix-only  | no    | yes | valid until fixed       |
//	| Manual    | no    | no  | ManualChecked flag      |
//
// # Check Results
//
// Check functions return an arbitrary value. A Sanitizer normalizes it into
// a CheckOutcome, failing with MalformedResultError when the shape is not
// recognized. DefaultSanitizer accepts CheckOutcome values, OutcomeProvider
// implementations, and maps with "is_valid" and "errors" keys.
//
// # Thread Safety
//
// Rules are not safe for concurrent use. The manager invokes checks and
// fixes one at a time.
package rules
