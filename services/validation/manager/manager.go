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
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// ResolveOptions controls ResolveAll.
type ResolveOptions struct {
	// PreValidate validates every rule first so the failing set is current.
	PreValidate bool

	// PostValidate validates every rule after fixing.
	PostValidate bool

	// RetryUntilSuccess repeats resolution over the failing set. Implies
	// PostValidate.
	RetryUntilSuccess bool
}

// DefaultResolveOptions returns the options used by the CLI.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{RetryUntilSuccess: true}
}

// Manager validates and fixes a registry of rules.
//
// Description:
//
//	Manager owns the failing-rule set. Only ValidateRule adds or removes
//	entries. All rule callables are invoked synchronously, one at a time.
//
// Thread Safety:
//
//	Manager is NOT safe for concurrent use.
type Manager struct {
	registry *rules.Registry
	engine   *resolve.Engine
	logger   *slog.Logger
	notifier Notifier

	accept               func(*rules.Rule) bool
	preValidateBeforeFix bool
	ruleTypes            []rules.RuleType

	errors map[string]*rules.Rule
}

// New creates a manager over the rules of a catalog.
//
// Inputs:
//
//	ctx - Passed to the catalog.
//	catalog - The rule definition source.
//	opts - Settings, filters, logger, notifier and behavior flags.
//
// Outputs:
//
//	*Manager - The manager.
//	error - Non-nil if the registry cannot be built.
func New(ctx context.Context, catalog rules.Catalog, opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	regOpts := []rules.RegistryOption{rules.WithRegistryLogger(o.logger)}
	if len(o.include) > 0 {
		regOpts = append(regOpts, rules.WithInclude(o.include...))
	}
	if len(o.exclude) > 0 {
		regOpts = append(regOpts, rules.WithExclude(o.exclude...))
	}

	registry, err := rules.NewRegistry(ctx, catalog, o.settings, regOpts...)
	if err != nil {
		return nil, fmt.Errorf("building rule registry: %w", err)
	}

	m := &Manager{
		registry:             registry,
		logger:               o.logger,
		notifier:             o.notifier,
		accept:               o.accept,
		preValidateBeforeFix: o.preValidateBeforeFix,
		ruleTypes:            o.ruleTypes,
		errors:               make(map[string]*rules.Rule),
	}

	engineOpts := []resolve.Option{
		resolve.WithLogger(o.logger),
		resolve.WithAccept(m.acceptRule),
	}
	if o.confirm != nil {
		engineOpts = append(engineOpts, resolve.WithConfirm(m.wrapConfirm(o.confirm)))
	}
	m.engine, err = resolve.NewEngine(registry, engineOpts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ---- Accessors ----

// Rules returns the rules in configuration order.
func (m *Manager) Rules() []*rules.Rule { return m.registry.Rules() }

// Rule returns the rule with the given ID.
func (m *Manager) Rule(id string) (*rules.Rule, bool) { return m.registry.Get(id) }

// RuleTypes returns the rule types used for grouping.
func (m *Manager) RuleTypes() []rules.RuleType { return slices.Clone(m.ruleTypes) }

// SetRuleTypes replaces the rule types.
func (m *Manager) SetRuleTypes(types []rules.RuleType) { m.ruleTypes = slices.Clone(types) }

// SetAcceptRule sets the rule filter. Nil accepts every rule.
func (m *Manager) SetAcceptRule(fn func(*rules.Rule) bool) { m.accept = fn }

// PreValidateBeforeFix reports whether fixes re-run the check first.
func (m *Manager) PreValidateBeforeFix() bool { return m.preValidateBeforeFix }

// SetPreValidateBeforeFix controls whether fixes re-run the check first.
func (m *Manager) SetPreValidateBeforeFix(enabled bool) { m.preValidateBeforeFix = enabled }

// Errors returns a copy of the failing rules keyed by ID.
func (m *Manager) Errors() map[string]*rules.Rule { return maps.Clone(m.errors) }

// Reset clears the failing-rule set.
func (m *Manager) Reset() {
	clear(m.errors)
	failingRules.Set(0)
}

func (m *Manager) acceptRule(r *rules.Rule) bool {
	return m.accept == nil || m.accept(r)
}

func (m *Manager) recordError(r *rules.Rule) {
	m.errors[r.ID()] = r
	failingRules.Set(float64(len(m.errors)))
}

func (m *Manager) clearError(r *rules.Rule) {
	delete(m.errors, r.ID())
	failingRules.Set(float64(len(m.errors)))
}

// errorRules returns the failing rules in configuration order.
func (m *Manager) errorRules() []*rules.Rule {
	out := make([]*rules.Rule, 0, len(m.errors))
	for _, r := range m.registry.Rules() {
		if _, ok := m.errors[r.ID()]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) errorIDs() []string {
	return slices.Sorted(maps.Keys(m.errors))
}

func (m *Manager) wrapConfirm(fn resolve.ConfirmFunc) resolve.ConfirmFunc {
	return func(ctx context.Context) (bool, error) {
		m.notifier.AboutToPrompt()
		defer m.notifier.PromptClosed()
		return fn(ctx)
	}
}

// ---- Validate ----

// ValidateAll validates every accepted rule.
//
// Description:
//
//	Clears the failing set and every failed-dependency marker, then runs
//	each rule check in configuration order. Dependency order is not used:
//	checks do not modify data.
//
// Outputs:
//
//	bool - True if no rule is failing afterwards.
func (m *Manager) ValidateAll(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "manager.ValidateAll",
		trace.WithAttributes(attribute.Int("validation.rules", m.registry.Len())),
	)
	defer span.End()

	m.notifier.ValidateAllBegin()
	defer m.notifier.ValidateAllFinished()

	m.Reset()
	for _, r := range m.registry.Rules() {
		r.SetFailedDependency(nil)
		if !m.acceptRule(r) {
			continue
		}
		m.ValidateRule(ctx, r)
	}

	span.SetAttributes(attribute.Int("validation.failing", len(m.errors)))
	return len(m.errors) == 0
}

// ValidateRules validates the given rules in dependency order.
//
// Description:
//
//	Rules whose dependency failed are not checked and stay failing. The
//	failing set is not reset first, so rules outside this call keep their
//	previous state.
//
// Inputs:
//
//	ctx - Checked between rules.
//	targets - The rules to validate.
//	policy - Whether to validate missing dependencies as well.
//
// Outputs:
//
//	error - *resolve.CycleError, resolve.ErrFetchCancelled or a context error.
func (m *Manager) ValidateRules(ctx context.Context, targets []*rules.Rule, policy resolve.FetchPolicy) error {
	ctx, span := tracer.Start(ctx, "manager.ValidateRules",
		trace.WithAttributes(
			attribute.Int("validation.targets", len(targets)),
			attribute.String("validation.policy", policy.String()),
		),
	)
	defer span.End()

	m.notifier.ValidateAllBegin()
	defer m.notifier.ValidateAllFinished()

	err := m.engine.Run(ctx, targets, policy, m.ValidateRule)
	if err != nil {
		m.recordRunError(span, err)
	}
	return err
}

// ValidateRule runs one rule check and updates the failing set.
//
// Description:
//
//	A malformed check result is logged and the rule counts as failing.
//
// Outputs:
//
//	bool - True if the rule is valid.
func (m *Manager) ValidateRule(ctx context.Context, r *rules.Rule) bool {
	if r == nil {
		return false
	}

	m.notifier.ValidateRuleBegin(r)
	defer m.notifier.ValidateRuleFinished(r)

	m.logger.Debug("validating rule", slog.String("rule", r.ID()))

	if _, err := r.ExecCheck(ctx, false); err != nil {
		m.logger.Error("rule check returned a malformed result",
			slog.String("rule", r.ID()),
			slog.String("error", err.Error()),
		)
	}
	ruleChecksTotal.WithLabelValues(r.Validity().String()).Inc()

	if r.Validity() == rules.Valid {
		m.clearError(r)
		return true
	}
	m.recordError(r)
	return false
}

// ---- Resolve ----

// ResolveAll fixes the failing rules.
//
// Description:
//
//	Steps:
//	  1. If PreValidate, validate every rule.
//	  2. If anything is failing, resolve the failing set. All rules are
//	     in scope so dependencies are not fetched.
//	  3. If PostValidate or RetryUntilSuccess, validate every rule.
//	  4. If RetryUntilSuccess, repeat 2 and 3 while validation fails, the
//	     failing set keeps changing and fewer than len(rules) attempts
//	     were made.
//
// Inputs:
//
//	ctx - Checked between rules.
//	opts - Validation and retry flags.
//
// Outputs:
//
//	bool - The result of the last validation. True when no validation
//	       ran after fixing.
//	error - *resolve.CycleError or a context error.
func (m *Manager) ResolveAll(ctx context.Context, opts ResolveOptions) (bool, error) {
	sessionID := uuid.NewString()[:12]
	ctx, span := tracer.Start(ctx, "manager.ResolveAll",
		trace.WithAttributes(
			attribute.String("validation.session_id", sessionID),
			attribute.Bool("validation.pre_validate", opts.PreValidate),
			attribute.Bool("validation.post_validate", opts.PostValidate),
			attribute.Bool("validation.retry", opts.RetryUntilSuccess),
		),
	)
	defer span.End()

	m.notifier.ResolveAllBegin()
	defer m.notifier.ResolveAllFinished()

	m.logger.Info("resolve started",
		slog.String("session_id", sessionID),
		slog.Int("rules", m.registry.Len()),
	)

	success := true
	if opts.PreValidate {
		m.ValidateAll(ctx)
	}
	if len(m.errors) == 0 {
		span.SetStatus(codes.Ok, "")
		return success, nil
	}

	if err := m.resolveFailing(ctx); err != nil {
		m.recordRunError(span, err)
		return false, err
	}
	if opts.PostValidate || opts.RetryUntilSuccess {
		success = m.ValidateAll(ctx)
	}

	maxRetry := 0
	if opts.RetryUntilSuccess {
		maxRetry = m.registry.Len()
	}

	var prev []string
	attempts := 0
	for !success && attempts < maxRetry {
		current := m.errorIDs()
		if prev != nil && slices.Equal(prev, current) {
			break
		}
		prev = current

		m.logger.Debug("resolve retry attempt",
			slog.String("session_id", sessionID),
			slog.Int("attempt", attempts),
			slog.Any("failing", current),
		)
		if err := m.resolveFailing(ctx); err != nil {
			m.recordRunError(span, err)
			return false, err
		}
		success = m.ValidateAll(ctx)
		attempts++
	}
	resolveRetries.Observe(float64(attempts))

	if opts.RetryUntilSuccess && !success {
		m.logger.Warn("failed to resolve after max retry attempts, there may be a rule dependency cycle",
			slog.String("session_id", sessionID),
			slog.Any("failing", m.errorIDs()),
		)
	}

	span.SetAttributes(
		attribute.Int("validation.retries", attempts),
		attribute.Bool("validation.success", success),
	)
	span.SetStatus(codes.Ok, "")
	m.logger.Info("resolve finished",
		slog.String("session_id", sessionID),
		slog.Bool("success", success),
		slog.Int("retries", attempts),
	)
	return success, nil
}

func (m *Manager) resolveFailing(ctx context.Context) error {
	return m.engine.Run(ctx, m.errorRules(), resolve.Never, m.ResolveRule)
}

// ResolveRules fixes the given rules in dependency order.
//
// Inputs:
//
//	ctx - Checked between rules.
//	targets - The rules to fix.
//	policy - Whether to fix missing dependencies first.
//
// Outputs:
//
//	error - *resolve.CycleError, resolve.ErrFetchCancelled or a context error.
func (m *Manager) ResolveRules(ctx context.Context, targets []*rules.Rule, policy resolve.FetchPolicy) error {
	ctx, span := tracer.Start(ctx, "manager.ResolveRules",
		trace.WithAttributes(
			attribute.Int("validation.targets", len(targets)),
			attribute.String("validation.policy", policy.String()),
		),
	)
	defer span.End()

	m.notifier.ResolveAllBegin()
	defer m.notifier.ResolveAllFinished()

	err := m.engine.Run(ctx, targets, policy, m.ResolveRule)
	if err != nil {
		m.recordRunError(span, err)
	}
	return err
}

// ResolveRule runs one rule fix.
//
// Description:
//
//	Fix failures are recorded on the rule and logged. They never stop a
//	batch.
//
// Outputs:
//
//	bool - True if the fix succeeded or the rule was already valid.
func (m *Manager) ResolveRule(ctx context.Context, r *rules.Rule) bool {
	if r == nil {
		return false
	}

	m.notifier.ResolveRuleBegin(r)
	defer m.notifier.ResolveRuleFinished(r)

	m.logger.Debug("resolving rule",
		slog.String("rule", r.ID()),
		slog.Any("dependencies", r.DependencyNames()),
	)

	res, err := r.ExecFix(ctx, m.preValidateBeforeFix, false)
	if err != nil {
		m.logger.Error("rule check returned a malformed result",
			slog.String("rule", r.ID()),
			slog.String("error", err.Error()),
		)
	}
	if fixErr := r.FixRuntimeError(); fixErr != nil && res.Status == rules.FixFailed {
		m.logger.Error("rule fix failed",
			slog.String("rule", r.ID()),
			slog.String("error", fixErr.Error()),
		)
	}
	ruleFixesTotal.WithLabelValues(res.Status.String()).Inc()

	return res.Success()
}

func (m *Manager) recordRunError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, resolve.ErrDependencyCycle) {
		resolveCycles.Inc()
		m.logger.Error("detected cycle in rule dependencies", slog.String("error", err.Error()))
	}
}
