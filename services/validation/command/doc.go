// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package command provides a rule catalog whose checks and fixes run as
// external commands.
//
// A check command reports its outcome either as a JSON document on stdout
// ({"is_valid": bool, "errors": [{"id": ..., "name": ...}]}) or through its
// exit code, in which case every non-empty stdout line becomes an error
// item. A fix command succeeds when it exits with status zero.
//
// Both commands receive a JSON document on stdin holding the rule
// arguments, and for fixes the errors found by the last check.
package command
