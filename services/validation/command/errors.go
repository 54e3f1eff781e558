// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package command

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpec indicates a command rule declaration is unusable.
	ErrInvalidSpec = errors.New("invalid command rule")

	// ErrDuplicateRule indicates two declarations share an ID.
	ErrDuplicateRule = errors.New("duplicate command rule")

	// ErrCommandFailed indicates the command could not run to completion.
	ErrCommandFailed = errors.New("command failed")

	// ErrCommandTimeout indicates the command exceeded its timeout.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrEmptyOutput indicates a JSON check printed nothing.
	ErrEmptyOutput = errors.New("command produced no output")

	// ErrParseOutput indicates a JSON check printed something that is not JSON.
	ErrParseOutput = errors.New("failed to parse command output")
)

// CommandError describes a failed command invocation.
type CommandError struct {
	RuleID  string
	Command string
	Err     error
	Output  string
}

// NewCommandError creates a CommandError.
func NewCommandError(ruleID, command string, err error) *CommandError {
	return &CommandError{RuleID: ruleID, Command: command, Err: err}
}

// WithOutput attaches the command's stderr.
func (e *CommandError) WithOutput(output string) *CommandError {
	e.Output = output
	return e
}

// Error implements error.
func (e *CommandError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("rule %q: %s: %v: %s", e.RuleID, e.Command, e.Err, e.Output)
	}
	return fmt.Sprintf("rule %q: %s: %v", e.RuleID, e.Command, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *CommandError) Unwrap() error {
	return e.Err
}
