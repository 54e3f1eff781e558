// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// ---- Test Helpers ----

func staticCheck(valid bool) rules.CheckFunc {
	return func(context.Context, rules.Kwargs) (any, error) {
		return map[string]any{"is_valid": valid, "errors": nil}, nil
	}
}

// fixCounter counts fix calls per rule.
type fixCounter map[string]int

func (c fixCounter) fix(id string, ok bool) rules.FixFunc {
	return func(context.Context, rules.Kwargs, []rules.ErrorItem) (bool, error) {
		c[id]++
		return ok, nil
	}
}

// dependencyCatalog mirrors a small dependency forest:
//
//	dep_1 (invalid) ◀── dep_2 ◀── dep_3 ◀──┐
//	      ▲                                dep_6
//	      └──────── dep_7 (invalid)        │
//	dep_4 ◀── dep_5 ◀──────────────────────┘
func dependencyCatalog() rules.StaticCatalog {
	return rules.StaticCatalog{
		"dep_1": {Check: staticCheck(false)},
		"dep_2": {Check: staticCheck(true), DependencyIDs: []string{"dep_1"}},
		"dep_3": {Check: staticCheck(true), DependencyIDs: []string{"dep_2"}},
		"dep_4": {Check: staticCheck(true)},
		"dep_5": {Check: staticCheck(true), DependencyIDs: []string{"dep_4"}},
		"dep_6": {Check: staticCheck(true), DependencyIDs: []string{"dep_5", "dep_3"}},
		"dep_7": {Check: staticCheck(false), DependencyIDs: []string{"dep_1"}},
	}
}

func newManager(t *testing.T, catalog rules.Catalog, opts ...Option) *Manager {
	t.Helper()
	m, err := New(context.Background(), catalog, opts...)
	require.NoError(t, err)
	return m
}

func rulesByID(t *testing.T, m *Manager, ids ...string) []*rules.Rule {
	t.Helper()
	out := make([]*rules.Rule, 0, len(ids))
	for _, id := range ids {
		r, ok := m.Rule(id)
		require.True(t, ok, "rule %s", id)
		out = append(out, r)
	}
	return out
}

func errorIDs(m *Manager) []string {
	return m.errorIDs()
}

// eventLog records notifier events.
type eventLog struct {
	events []string
}

func (l *eventLog) add(e string)                       { l.events = append(l.events, e) }
func (l *eventLog) ValidateAllBegin()                  { l.add("validate_all_begin") }
func (l *eventLog) ValidateAllFinished()               { l.add("validate_all_finished") }
func (l *eventLog) ValidateRuleBegin(r *rules.Rule)    { l.add("validate_rule_begin:" + r.ID()) }
func (l *eventLog) ValidateRuleFinished(r *rules.Rule) { l.add("validate_rule_finished:" + r.ID()) }
func (l *eventLog) ResolveAllBegin()                   { l.add("resolve_all_begin") }
func (l *eventLog) ResolveAllFinished()                { l.add("resolve_all_finished") }
func (l *eventLog) ResolveRuleBegin(r *rules.Rule)     { l.add("resolve_rule_begin:" + r.ID()) }
func (l *eventLog) ResolveRuleFinished(r *rules.Rule)  { l.add("resolve_rule_finished:" + r.ID()) }
func (l *eventLog) AboutToPrompt()                     { l.add("about_to_prompt") }
func (l *eventLog) PromptClosed()                      { l.add("prompt_closed") }

// ---- Construction ----

func TestNew_IncludeExclude(t *testing.T) {
	m := newManager(t, dependencyCatalog(),
		WithInclude("dep_1", "dep_2", "dep_3"),
		WithExclude("dep_3"),
	)

	ids := make([]string, 0)
	for _, r := range m.Rules() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"dep_1", "dep_2"}, ids)
	assert.True(t, m.PreValidateBeforeFix())
	assert.Len(t, m.RuleTypes(), 4)
}

func TestNew_SettingsOverride(t *testing.T) {
	required := false
	m := newManager(t, dependencyCatalog(), WithSettings([]rules.Setting{
		{ID: "dep_4", Overrides: rules.Overrides{Required: &required}},
		{ID: "missing"},
	}))

	require.Len(t, m.Rules(), 1)
	r, _ := m.Rule("dep_4")
	assert.True(t, r.Optional())
}

// ---- Validate ----

func TestValidateAll(t *testing.T) {
	m := newManager(t, dependencyCatalog())

	ok := m.ValidateAll(context.Background())

	assert.False(t, ok)
	assert.Equal(t, []string{"dep_1", "dep_7"}, errorIDs(m))

	m.Reset()
	assert.Empty(t, m.Errors())
}

func TestValidateAll_IgnoresStaleFailedDependency(t *testing.T) {
	m := newManager(t, dependencyCatalog())
	dep1, _ := m.Rule("dep_1")
	dep2, _ := m.Rule("dep_2")
	dep2.SetFailedDependency(dep1)

	m.ValidateAll(context.Background())

	assert.False(t, dep2.HasFailedDependency())
	assert.Equal(t, rules.Valid, dep2.Validity())
}

func TestValidateAll_AcceptRule(t *testing.T) {
	m := newManager(t, dependencyCatalog(), WithAcceptRule(func(r *rules.Rule) bool {
		return r.ID() != "dep_7"
	}))

	m.ValidateAll(context.Background())
	assert.Equal(t, []string{"dep_1"}, errorIDs(m))

	m.SetAcceptRule(nil)
	m.ValidateAll(context.Background())
	assert.Equal(t, []string{"dep_1", "dep_7"}, errorIDs(m))
}

func TestValidateRules_PropagatesFailures(t *testing.T) {
	m := newManager(t, dependencyCatalog())

	err := m.ValidateRules(context.Background(), m.Rules(), resolve.Always)
	require.NoError(t, err)

	assert.Equal(t, []string{"dep_1", "dep_2", "dep_3", "dep_6", "dep_7"}, errorIDs(m))

	tests := []struct {
		id      string
		valid   rules.Validity
		blocked bool
	}{
		{"dep_1", rules.Invalid, false},
		{"dep_2", rules.Unchecked, true},
		{"dep_3", rules.Unchecked, true},
		{"dep_4", rules.Valid, false},
		{"dep_5", rules.Valid, false},
		{"dep_6", rules.Unchecked, true},
		{"dep_7", rules.Unchecked, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r, _ := m.Rule(tt.id)
			assert.Equal(t, tt.valid, r.Validity())
			assert.Equal(t, tt.blocked, r.HasFailedDependency())
		})
	}
}

func TestValidateRules_FetchAndIgnoreDependencies(t *testing.T) {
	m := newManager(t, dependencyCatalog())
	targets := rulesByID(t, m, "dep_2", "dep_3", "dep_5", "dep_7")
	dep1, _ := m.Rule("dep_1")
	dep5, _ := m.Rule("dep_5")

	// No confirm function: Ask fetches.
	err := m.ValidateRules(context.Background(), targets, resolve.Ask)
	require.NoError(t, err)

	assert.Equal(t, []string{"dep_1", "dep_2", "dep_3", "dep_7"}, errorIDs(m))
	assert.Equal(t, rules.Invalid, dep1.Validity())
	assert.Equal(t, rules.Valid, dep5.Validity())
	for _, r := range rulesByID(t, m, "dep_2", "dep_3", "dep_7") {
		assert.Nil(t, r.Valid(), r.ID())
		assert.True(t, r.HasFailedDependency(), r.ID())
	}

	m.Reset()
	err = m.ValidateRules(context.Background(), targets, resolve.Never)
	require.NoError(t, err)

	assert.Equal(t, []string{"dep_7"}, errorIDs(m))
	for _, r := range targets {
		assert.False(t, r.HasFailedDependency(), r.ID())
	}
	dep2, _ := m.Rule("dep_2")
	assert.Equal(t, rules.Valid, dep2.Validity())
}

func TestValidateRules_Cycle(t *testing.T) {
	catalog := rules.StaticCatalog{
		"bad_1": {Check: staticCheck(true), DependencyIDs: []string{"bad_3"}},
		"bad_2": {Check: staticCheck(true), DependencyIDs: []string{"bad_1"}},
		"bad_3": {Check: staticCheck(true), DependencyIDs: []string{"bad_2"}},
		"bad_4": {Check: staticCheck(true)},
	}
	m := newManager(t, catalog)

	err := m.ValidateRules(context.Background(), m.Rules(), resolve.Always)
	assert.ErrorIs(t, err, resolve.ErrDependencyCycle)

	err = m.ValidateRules(context.Background(), rulesByID(t, m, "bad_2", "bad_3"), resolve.Never)
	assert.NoError(t, err)
}

func TestValidateRule_MalformedResultCountsAsFailing(t *testing.T) {
	m := newManager(t, rules.StaticCatalog{
		"odd": {Check: func(context.Context, rules.Kwargs) (any, error) { return "yes", nil }},
	})
	r, _ := m.Rule("odd")

	assert.False(t, m.ValidateRule(context.Background(), r))
	assert.Contains(t, m.Errors(), "odd")
	assert.ErrorIs(t, r.CheckRuntimeError(), rules.ErrMalformedResult)
}

func TestValidateRule_ManualRule(t *testing.T) {
	m := newManager(t, rules.StaticCatalog{"review": {Name: "Review scene"}})
	r, _ := m.Rule("review")
	require.True(t, r.Manual())

	assert.False(t, m.ValidateRule(context.Background(), r))

	r.SetManualChecked(true)
	assert.True(t, m.ValidateRule(context.Background(), r))
	assert.Empty(t, m.Errors())
}

// ---- Resolve ----

func TestResolveRules_NoDependencyRuleFixedOnce(t *testing.T) {
	for _, policy := range []resolve.FetchPolicy{resolve.Always, resolve.Never, resolve.Ask} {
		t.Run(policy.String(), func(t *testing.T) {
			fixes := fixCounter{}
			m := newManager(t, rules.StaticCatalog{
				"solo": {Check: staticCheck(false), Fix: fixes.fix("solo", true)},
			})

			err := m.ResolveRules(context.Background(), m.Rules(), policy)
			require.NoError(t, err)
			assert.Equal(t, 1, fixes["solo"])
		})
	}
}

func TestResolveRules_FailurePropagation(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{
		"a": {Check: staticCheck(false), Fix: fixes.fix("a", false)},
		"b": {Check: staticCheck(false), Fix: fixes.fix("b", true), DependencyIDs: []string{"a"}},
		"c": {Check: staticCheck(false), Fix: fixes.fix("c", true), DependencyIDs: []string{"b"}},
	})
	a, _ := m.Rule("a")
	b, _ := m.Rule("b")
	c, _ := m.Rule("c")

	err := m.ResolveRules(context.Background(), []*rules.Rule{a, b, c}, resolve.Always)
	require.NoError(t, err)

	assert.Equal(t, 1, fixes["a"])
	assert.Zero(t, fixes["b"])
	assert.Zero(t, fixes["c"])
	assert.Same(t, a, b.FailedDependency())
	assert.Same(t, b, c.FailedDependency())
	assert.False(t, b.FixExecuted())
}

func TestResolveRules_Cycle(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{
		"x": {Check: staticCheck(false), Fix: fixes.fix("x", true), DependencyIDs: []string{"y"}},
		"y": {Check: staticCheck(false), Fix: fixes.fix("y", true), DependencyIDs: []string{"z"}},
		"z": {Check: staticCheck(false), Fix: fixes.fix("z", true), DependencyIDs: []string{"x"}},
	})

	err := m.ResolveRules(context.Background(), rulesByID(t, m, "x", "y", "z"), resolve.Always)
	var ce *resolve.CycleError
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, fixes)

	err = m.ResolveRules(context.Background(), rulesByID(t, m, "y", "z"), resolve.Never)
	require.NoError(t, err)
	assert.Equal(t, fixCounter{"y": 1, "z": 1}, fixes)
}

func TestResolveRules_AskDeclined(t *testing.T) {
	fixes := fixCounter{}
	events := &eventLog{}
	m := newManager(t, rules.StaticCatalog{
		"a": {Check: staticCheck(false), Fix: fixes.fix("a", true)},
		"b": {Check: staticCheck(false), Fix: fixes.fix("b", true), DependencyIDs: []string{"a"}},
	},
		WithNotifier(events),
		WithConfirm(func(context.Context) (bool, error) { return false, nil }),
	)

	err := m.ResolveRules(context.Background(), rulesByID(t, m, "b"), resolve.Ask)
	assert.ErrorIs(t, err, resolve.ErrFetchCancelled)
	assert.Empty(t, fixes)
	assert.Equal(t, []string{
		"resolve_all_begin", "about_to_prompt", "prompt_closed", "resolve_all_finished",
	}, events.events)
}

func TestResolveRule_FixPanicDoesNotAbortBatch(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{
		"boom": {Check: staticCheck(false), Fix: func(context.Context, rules.Kwargs, []rules.ErrorItem) (bool, error) {
			panic("fix exploded")
		}},
		"fine": {Check: staticCheck(false), Fix: fixes.fix("fine", true)},
	})

	err := m.ResolveRules(context.Background(), m.Rules(), resolve.Never)
	require.NoError(t, err)

	boom, _ := m.Rule("boom")
	assert.True(t, boom.FixExecuted())
	assert.ErrorIs(t, boom.FixRuntimeError(), rules.ErrFixRuntime)
	assert.Equal(t, 1, fixes["fine"])
}

func TestResolveAll_NothingFailing(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{"ok": {Check: staticCheck(true), Fix: fixes.fix("ok", true)}})

	ok, err := m.ResolveAll(context.Background(), ResolveOptions{PreValidate: true, RetryUntilSuccess: true})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, fixes)
}

func TestResolveAll_WithoutValidationReturnsTrue(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{"bad": {Check: staticCheck(false), Fix: fixes.fix("bad", true)}})

	ok, err := m.ResolveAll(context.Background(), ResolveOptions{PreValidate: true})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fixes["bad"])
}

func TestResolveAll_RetryConverges(t *testing.T) {
	var (
		epoch       int
		eFixed      bool
		eFixedEpoch int
		dFixed      bool
	)
	fixes := fixCounter{}
	catalog := rules.StaticCatalog{
		"d": {
			DependencyIDs: []string{"e"},
			Check: func(context.Context, rules.Kwargs) (any, error) {
				epoch++
				return rules.CheckOutcome{IsValid: dFixed}, nil
			},
			Fix: func(context.Context, rules.Kwargs, []rules.ErrorItem) (bool, error) {
				fixes["d"]++
				if eFixed && eFixedEpoch < epoch {
					dFixed = true
					return true, nil
				}
				return false, nil
			},
		},
		"e": {
			Check: func(context.Context, rules.Kwargs) (any, error) {
				return rules.CheckOutcome{IsValid: eFixed}, nil
			},
			Fix: func(context.Context, rules.Kwargs, []rules.ErrorItem) (bool, error) {
				fixes["e"]++
				eFixed = true
				eFixedEpoch = epoch
				return true, nil
			},
		},
	}
	m := newManager(t, catalog, WithPreValidateBeforeFix(false))

	ok, err := m.ResolveAll(context.Background(), ResolveOptions{PreValidate: true, RetryUntilSuccess: true})
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Empty(t, m.Errors())
	assert.Equal(t, 1, fixes["e"])
	// One initial pass plus at most two retries.
	assert.LessOrEqual(t, fixes["d"], 3)
	assert.Equal(t, 2, fixes["d"])
}

func TestResolveAll_RetryStopsAtFixedPoint(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{
		"stuck": {Check: staticCheck(false), Fix: fixes.fix("stuck", true)},
		"ok_1":  {Check: staticCheck(true)},
		"ok_2":  {Check: staticCheck(true)},
	})

	ok, err := m.ResolveAll(context.Background(), ResolveOptions{PreValidate: true, RetryUntilSuccess: true})
	require.NoError(t, err)

	assert.False(t, ok)
	assert.Equal(t, []string{"stuck"}, errorIDs(m))
	assert.Equal(t, 2, fixes["stuck"])
}

func TestResolveAll_RetryBudget(t *testing.T) {
	// Fixing one rule breaks the other, so the failing set alternates.
	bad := map[string]bool{"a": true, "b": true}
	fixes := fixCounter{}
	check := func(id string) rules.CheckFunc {
		return func(context.Context, rules.Kwargs) (any, error) {
			return rules.CheckOutcome{IsValid: !bad[id]}, nil
		}
	}
	fix := func(id, other string) rules.FixFunc {
		return func(context.Context, rules.Kwargs, []rules.ErrorItem) (bool, error) {
			fixes[id]++
			bad[id] = false
			bad[other] = true
			return true, nil
		}
	}
	m := newManager(t, rules.StaticCatalog{
		"a": {Check: check("a"), Fix: fix("a", "b")},
		"b": {Check: check("b"), Fix: fix("b", "a")},
	})

	ok, err := m.ResolveAll(context.Background(), ResolveOptions{PreValidate: true, RetryUntilSuccess: true})
	require.NoError(t, err)

	assert.False(t, ok)
	// Initial pass fixes both, then one fix per retry for two retries.
	assert.Equal(t, fixCounter{"a": 2, "b": 2}, fixes)
}

func TestResolveAll_CycleAmongFailingRules(t *testing.T) {
	fixes := fixCounter{}
	m := newManager(t, rules.StaticCatalog{
		"x": {Check: staticCheck(false), Fix: fixes.fix("x", true), DependencyIDs: []string{"z"}},
		"y": {Check: staticCheck(false), Fix: fixes.fix("y", true), DependencyIDs: []string{"x"}},
		"z": {Check: staticCheck(false), Fix: fixes.fix("z", true), DependencyIDs: []string{"y"}},
	})

	ok, err := m.ResolveAll(context.Background(), ResolveOptions{PreValidate: true, RetryUntilSuccess: true})
	assert.False(t, ok)
	assert.ErrorIs(t, err, resolve.ErrDependencyCycle)
	assert.Empty(t, fixes)
}

// ---- Notifier ----

func TestNotifier_ValidateAllEvents(t *testing.T) {
	events := &eventLog{}
	m := newManager(t, rules.StaticCatalog{"a": {Check: staticCheck(true)}}, WithNotifier(events))

	m.ValidateAll(context.Background())

	assert.Equal(t, []string{
		"validate_all_begin",
		"validate_rule_begin:a",
		"validate_rule_finished:a",
		"validate_all_finished",
	}, events.events)
}

func TestNotifier_ResolveRuleEvents(t *testing.T) {
	events := &eventLog{}
	m := newManager(t, rules.StaticCatalog{
		"a": {Check: staticCheck(false), Fix: fixCounter{}.fix("a", true)},
	}, WithNotifier(events))
	a, _ := m.Rule("a")

	m.ResolveRule(context.Background(), a)

	assert.Equal(t, []string{"resolve_rule_begin:a", "resolve_rule_finished:a"}, events.events)
}
