// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"fmt"
	"strings"
)

// FetchPolicy controls whether dependencies outside the targets are pulled in.
type FetchPolicy int

const (
	// Always pulls in missing dependencies.
	Always FetchPolicy = iota

	// Never keeps the run scoped to the targets. Dependencies outside the
	// targets are ignored.
	Never

	// Ask calls the engine's ConfirmFunc the first time a missing
	// dependency is found. Declining cancels the run.
	Ask
)

// String returns the policy name.
func (p FetchPolicy) String() string {
	switch p {
	case Always:
		return "always"
	case Never:
		return "never"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("FetchPolicy(%d)", int(p))
	}
}

// ParseFetchPolicy converts a policy name.
//
// Inputs:
//
//	s - "always", "never" or "ask". Case-insensitive. Empty means ask.
//	    "true" and "false" are accepted for Always and Never.
//
// Outputs:
//
//	FetchPolicy - The policy.
//	error - ErrUnknownPolicy for any other input.
func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "true":
		return Always, nil
	case "never", "false":
		return Never, nil
	case "ask", "":
		return Ask, nil
	default:
		return Always, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// ConfirmFunc decides whether missing dependencies may be fetched.
//
// A non-interactive caller should return a constant.
type ConfirmFunc func(ctx context.Context) (bool, error)
