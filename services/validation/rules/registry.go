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
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Catalog supplies rule definitions keyed by rule ID.
type Catalog interface {
	Definitions(ctx context.Context) (map[string]Definition, error)
}

// StaticCatalog is an in-memory Catalog.
type StaticCatalog map[string]Definition

// Definitions returns a copy of the catalog. Map keys become the rule IDs.
func (c StaticCatalog) Definitions(_ context.Context) (map[string]Definition, error) {
	defs := make(map[string]Definition, len(c))
	for id, def := range c {
		def.ID = id
		defs[id] = def
	}
	return defs, nil
}

// MultiCatalog combines catalogs. Later catalogs win on duplicate IDs.
type MultiCatalog []Catalog

// Definitions merges the definitions of every catalog.
func (m MultiCatalog) Definitions(ctx context.Context) (map[string]Definition, error) {
	defs := make(map[string]Definition)
	for i, c := range m {
		part, err := c.Definitions(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog %d: %w", i, err)
		}
		maps.Copy(defs, part)
	}
	return defs, nil
}

// Lookup resolves rule IDs to rules.
type Lookup interface {
	Get(id string) (*Rule, bool)
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	include []string
	exclude []string
	logger  *slog.Logger
}

// WithInclude keeps only the listed rule IDs.
func WithInclude(ids ...string) RegistryOption {
	return func(c *registryConfig) { c.include = append(c.include, ids...) }
}

// WithExclude drops the listed rule IDs.
func WithExclude(ids ...string) RegistryOption {
	return func(c *registryConfig) { c.exclude = append(c.exclude, ids...) }
}

// WithRegistryLogger sets the logger for build warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Registry owns the rules of one manager.
//
// Description:
//
//	The set of rules is fixed at construction. Only per-rule execution
//	state changes afterwards.
//
// Thread Safety:
//
//	The key set is immutable. The rules themselves are not safe for
//	concurrent use.
type Registry struct {
	rules []*Rule
	byID  map[string]*Rule
}

// NewRegistry builds the rules selected by settings.
//
// Description:
//
//	For each setting, in order:
//	  1. Skip it if not included or if excluded.
//	  2. Look up its definition. Missing definitions are logged and skipped.
//	  3. Apply the setting overrides to a copy of the definition.
//	  4. Record display names for dependencies known to the catalog.
//	     Unknown dependency IDs are logged and kept for the engine to ignore.
//
//	When settings is nil every catalog rule is used, ordered by ID.
//
// Inputs:
//
//	ctx - Passed to the catalog.
//	catalog - The rule definition source. Must not be nil.
//	settings - The configured rules and overrides.
//	opts - Include/exclude filters and logger.
//
// Outputs:
//
//	*Registry - The registry.
//	error - Non-nil if the catalog fails or a definition is invalid.
func NewRegistry(ctx context.Context, catalog Catalog, settings []Setting, opts ...RegistryOption) (*Registry, error) {
	cfg := registryConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidDefinition)
	}

	defs, err := catalog.Definitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rule definitions: %w", err)
	}

	if settings == nil {
		ids := slices.Sorted(maps.Keys(defs))
		settings = make([]Setting, 0, len(ids))
		for _, id := range ids {
			settings = append(settings, Setting{ID: id})
		}
	}

	reg := &Registry{byID: make(map[string]*Rule, len(settings))}
	for _, s := range settings {
		if len(cfg.include) > 0 && !slices.Contains(cfg.include, s.ID) {
			continue
		}
		if slices.Contains(cfg.exclude, s.ID) {
			continue
		}
		if _, dup := reg.byID[s.ID]; dup {
			cfg.logger.Warn("duplicate rule setting ignored", slog.String("rule", s.ID))
			continue
		}

		def, ok := defs[s.ID]
		if !ok {
			cfg.logger.Error("data was not found for validation rule",
				slog.String("rule", s.ID),
				slog.String("error", ErrRuleNotFound.Error()),
			)
			continue
		}
		def.ID = s.ID

		rule, err := NewRule(s.Overrides.Apply(def))
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", s.ID, err)
		}

		for _, depID := range rule.dependencyIDs {
			depDef, ok := defs[depID]
			if !ok {
				cfg.logger.Warn("rule references unknown dependency",
					slog.String("rule", s.ID),
					slog.String("dependency", depID),
					slog.String("error", ErrMissingDependency.Error()),
				)
				continue
			}
			name := depDef.Name
			if name == "" {
				name = depID
			}
			rule.setDependencyName(depID, name)
		}

		reg.rules = append(reg.rules, rule)
		reg.byID[s.ID] = rule
	}

	return reg, nil
}

// Get returns the rule with the given ID.
func (r *Registry) Get(id string) (*Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}

// Rules returns the rules in configuration order.
func (r *Registry) Rules() []*Rule {
	return slices.Clone(r.rules)
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
