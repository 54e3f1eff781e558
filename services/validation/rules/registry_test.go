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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- Test Helpers ----

func testCatalog() StaticCatalog {
	return StaticCatalog{
		"names":  {Name: "Node Names", Check: outcome(true), Kwargs: Kwargs{"prefix": "geo"}},
		"paths":  {Name: "File Paths", Check: outcome(true), DependencyIDs: []string{"names", "ghost"}},
		"manual": {Name: "Review", Optional: true},
	}
}

func ptr[T any](v T) *T { return &v }

type failingCatalog struct{}

func (failingCatalog) Definitions(context.Context) (map[string]Definition, error) {
	return nil, errors.New("hook unavailable")
}

// ---- Tests ----

func TestNewRegistry_AllRulesSortedWhenNoSettings(t *testing.T) {
	reg, err := NewRegistry(context.Background(), testCatalog(), nil)
	require.NoError(t, err)

	ids := make([]string, 0, reg.Len())
	for _, r := range reg.Rules() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"manual", "names", "paths"}, ids)
}

func TestNewRegistry_SettingsOrderAndOverrides(t *testing.T) {
	settings := []Setting{
		{ID: "paths", Overrides: Overrides{Required: ptr(false), ErrorMsg: ptr("bad paths")}},
		{ID: "names", Overrides: Overrides{Kwargs: Kwargs{"prefix": "mdl"}}},
	}

	reg, err := NewRegistry(context.Background(), testCatalog(), settings)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	rules := reg.Rules()
	assert.Equal(t, "paths", rules[0].ID())
	assert.Equal(t, "names", rules[1].ID())

	paths, ok := reg.Get("paths")
	require.True(t, ok)
	assert.True(t, paths.Optional())
	assert.Equal(t, "bad paths", paths.ErrorMessage())

	names, _ := reg.Get("names")
	assert.Equal(t, Kwargs{"prefix": "mdl"}, names.kwargs())
}

func TestNewRegistry_DoesNotModifyCatalog(t *testing.T) {
	catalog := testCatalog()
	settings := []Setting{{ID: "names", Overrides: Overrides{
		Name:   ptr("Renamed"),
		Kwargs: Kwargs{"prefix": "mdl", "extra": true},
	}}}

	_, err := NewRegistry(context.Background(), catalog, settings)
	require.NoError(t, err)

	assert.Equal(t, "Node Names", catalog["names"].Name)
	assert.Equal(t, Kwargs{"prefix": "geo"}, catalog["names"].Kwargs)
}

func TestNewRegistry_IncludeExclude(t *testing.T) {
	reg, err := NewRegistry(context.Background(), testCatalog(), nil,
		WithInclude("names", "paths"),
		WithExclude("paths"),
	)
	require.NoError(t, err)

	require.Equal(t, 1, reg.Len())
	_, ok := reg.Get("names")
	assert.True(t, ok)
	_, ok = reg.Get("paths")
	assert.False(t, ok)
}

func TestNewRegistry_MissingDefinitionLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg, err := NewRegistry(context.Background(), testCatalog(),
		[]Setting{{ID: "names"}, {ID: "nope"}},
		WithRegistryLogger(logger),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	assert.Contains(t, buf.String(), "nope")
}

func TestNewRegistry_DependencyNames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg, err := NewRegistry(context.Background(), testCatalog(), nil, WithRegistryLogger(logger))
	require.NoError(t, err)

	paths, _ := reg.Get("paths")
	assert.Equal(t, []string{"ghost", "names"}, paths.DependencyIDs())
	assert.Equal(t, map[string]string{"names": "Node Names"}, paths.Dependencies())
	assert.Equal(t, []string{"Node Names"}, paths.DependencyNames())
	assert.Contains(t, buf.String(), "ghost")
}

func TestNewRegistry_CatalogError(t *testing.T) {
	_, err := NewRegistry(context.Background(), failingCatalog{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook unavailable")

	_, err = NewRegistry(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestMultiCatalog_LaterWins(t *testing.T) {
	first := StaticCatalog{"a": {Name: "first"}, "b": {Name: "b"}}
	second := StaticCatalog{"a": {Name: "second"}}

	defs, err := MultiCatalog{first, second}.Definitions(context.Background())
	require.NoError(t, err)

	assert.Len(t, defs, 2)
	assert.Equal(t, "second", defs["a"].Name)
	assert.Equal(t, "a", defs["a"].ID)
}
