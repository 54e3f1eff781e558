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
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianValidate/pkg/validation"
)

// specValidate is the validator instance for command declarations.
var specValidate = validator.New()

// OutputMode selects how a check command reports its outcome.
type OutputMode string

const (
	// OutputJSON reads a CheckOutcome document from stdout.
	OutputJSON OutputMode = "json"

	// OutputExitCode treats exit status zero as valid and every non-empty
	// stdout line as an error item.
	OutputExitCode OutputMode = "exit_code"
)

// Invocation describes one external command.
type Invocation struct {
	// Command is the executable, resolved through PATH.
	Command string `yaml:"command" validate:"required"`

	// Args are passed verbatim.
	Args []string `yaml:"args"`

	// Dir overrides the catalog working directory.
	Dir string `yaml:"dir"`

	// Env holds extra KEY=VALUE entries appended to the process environment.
	Env []string `yaml:"env"`

	// Timeout bounds the command. Zero uses the catalog default.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// Output applies to checks only. Empty means json.
	Output OutputMode `yaml:"output" validate:"omitempty,oneof=json exit_code"`
}

// Spec declares a rule backed by external commands.
//
// Description:
//
//	A Spec with neither Check nor Fix declares a manual rule. DependsOn
//	lists rule IDs that must be valid before this rule is checked or
//	fixed during resolution.
type Spec struct {
	ID          string `yaml:"id" validate:"required"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DataType    string `yaml:"data_type"`
	Optional    bool   `yaml:"optional"`
	Checked     bool   `yaml:"checked"`
	CheckName   string `yaml:"check_name"`
	FixName     string `yaml:"fix_name"`
	FixTooltip  string `yaml:"fix_tooltip"`
	ErrorMsg    string `yaml:"error_msg"`
	WarnMsg     string `yaml:"warn_msg"`

	Check *Invocation `yaml:"check"`
	Fix   *Invocation `yaml:"fix"`

	Kwargs    map[string]any `yaml:"kwargs"`
	DependsOn []string       `yaml:"depends_on" validate:"dive,required"`
}

// Validate checks the declaration's field constraints.
func (s *Spec) Validate() error {
	if err := specValidate.Struct(s); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, s.ID, err)
	}
	if err := validation.ValidateRuleID(s.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	if err := validation.ValidateRuleIDs(s.DependsOn); err != nil {
		return fmt.Errorf("%w %q: depends_on: %w", ErrInvalidSpec, s.ID, err)
	}
	for _, inv := range []*Invocation{s.Check, s.Fix} {
		if inv == nil {
			continue
		}
		for _, kv := range inv.Env {
			if !strings.Contains(kv, "=") {
				return fmt.Errorf("%w %q: env entry %q is not KEY=VALUE", ErrInvalidSpec, s.ID, kv)
			}
		}
	}
	if s.Fix != nil && s.Fix.Output != "" {
		return fmt.Errorf("%w %q: output mode applies to checks only", ErrInvalidSpec, s.ID)
	}
	return nil
}
