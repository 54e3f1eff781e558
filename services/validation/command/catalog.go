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
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// Catalog is a rules.Catalog built from command declarations.
//
// Thread Safety: Safe for concurrent use. The declarations are copied at
// construction and never modified.
type Catalog struct {
	specs  []Spec
	runner *Runner
}

// NewCatalog validates the declarations and creates a catalog.
//
// Inputs:
//
//	specs - The command rule declarations.
//	opts - Runner options shared by every command.
//
// Outputs:
//
//	*Catalog - The catalog.
//	error - ErrInvalidSpec or ErrDuplicateRule.
func NewCatalog(specs []Spec, opts ...Option) (*Catalog, error) {
	seen := make(map[string]struct{}, len(specs))
	for i := range specs {
		if err := specs[i].Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[specs[i].ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, specs[i].ID)
		}
		seen[specs[i].ID] = struct{}{}
	}
	return &Catalog{
		specs:  slices.Clone(specs),
		runner: NewRunner(opts...),
	}, nil
}

// Len returns the number of declared rules.
func (c *Catalog) Len() int {
	return len(c.specs)
}

// Definitions implements rules.Catalog.
func (c *Catalog) Definitions(ctx context.Context) (map[string]rules.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defs := make(map[string]rules.Definition, len(c.specs))
	for i := range c.specs {
		defs[c.specs[i].ID] = c.definition(&c.specs[i])
	}
	return defs, nil
}

// definition converts one declaration.
func (c *Catalog) definition(s *Spec) rules.Definition {
	def := rules.Definition{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		DataType:      s.DataType,
		Optional:      s.Optional,
		Checked:       s.Checked,
		CheckName:     s.CheckName,
		FixName:       s.FixName,
		FixTooltip:    s.FixTooltip,
		ErrorMsg:      s.ErrorMsg,
		WarnMsg:       s.WarnMsg,
		Kwargs:        rules.Kwargs(maps.Clone(s.Kwargs)),
		DependencyIDs: slices.Clone(s.DependsOn),
	}
	if s.Check != nil {
		def.Check = c.runner.CheckFunc(s.ID, s.Check)
	}
	if s.Fix != nil {
		def.Fix = c.runner.FixFunc(s.ID, s.Fix)
	}
	return def
}
