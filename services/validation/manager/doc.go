// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package manager coordinates validation and bulk fixing of rules.
//
// A Manager owns the rule registry and the set of currently failing rules.
// It validates rules, resolves (fixes) them in dependency order through
// the resolve engine, and retries bulk resolution until the failing set is
// empty, stops changing, or the retry budget runs out.
//
// # Retry Loop
//
// Fixing one rule can break another. ResolveAll re-runs resolution over
// the current failing set after each validation:
//
//	validate → resolve(errors) → validate → resolve(errors) → ...
//
// The loop stops when validation passes, when two consecutive failing
// sets are equal, or after one attempt per rule.
package manager
