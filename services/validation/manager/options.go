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
	"log/slog"

	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	settings             []rules.Setting
	include              []string
	exclude              []string
	logger               *slog.Logger
	notifier             Notifier
	accept               func(*rules.Rule) bool
	confirm              resolve.ConfirmFunc
	preValidateBeforeFix bool
	ruleTypes            []rules.RuleType
}

func defaultOptions() options {
	return options{
		logger:               slog.Default(),
		notifier:             NopNotifier{},
		preValidateBeforeFix: true,
		ruleTypes:            rules.DefaultRuleTypes(),
	}
}

// WithSettings selects the configured rules and their overrides.
// Without settings every catalog rule is used.
func WithSettings(settings []rules.Setting) Option {
	return func(o *options) { o.settings = settings }
}

// WithInclude keeps only the listed rule IDs.
func WithInclude(ids ...string) Option {
	return func(o *options) { o.include = append(o.include, ids...) }
}

// WithExclude drops the listed rule IDs.
func WithExclude(ids ...string) Option {
	return func(o *options) { o.exclude = append(o.exclude, ids...) }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier sets the event receiver.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithAcceptRule sets the filter applied to rules before validating or
// resolving them.
func WithAcceptRule(fn func(*rules.Rule) bool) Option {
	return func(o *options) { o.accept = fn }
}

// WithConfirm sets the decision function used by the Ask fetch policy.
func WithConfirm(fn resolve.ConfirmFunc) Option {
	return func(o *options) { o.confirm = fn }
}

// WithPreValidateBeforeFix controls whether each fix re-runs the rule
// check first. Default is true.
func WithPreValidateBeforeFix(enabled bool) Option {
	return func(o *options) { o.preValidateBeforeFix = enabled }
}

// WithRuleTypes replaces the default rule types.
func WithRuleTypes(types ...rules.RuleType) Option {
	return func(o *options) { o.ruleTypes = types }
}
