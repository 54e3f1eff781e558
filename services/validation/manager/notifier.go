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

import "github.com/AleutianAI/AleutianValidate/services/validation/rules"

// Notifier receives progress events from a Manager.
//
// Description:
//
//	Begin and Finished events are always paired, including when the
//	operation fails. Implementations must not call back into the Manager.
type Notifier interface {
	ValidateAllBegin()
	ValidateAllFinished()
	ValidateRuleBegin(rule *rules.Rule)
	ValidateRuleFinished(rule *rules.Rule)
	ResolveAllBegin()
	ResolveAllFinished()
	ResolveRuleBegin(rule *rules.Rule)
	ResolveRuleFinished(rule *rules.Rule)

	// AboutToPrompt is sent before the dependency fetch confirmation.
	AboutToPrompt()

	// PromptClosed is sent after the dependency fetch confirmation.
	PromptClosed()
}

// NopNotifier ignores all events.
type NopNotifier struct{}

func (NopNotifier) ValidateAllBegin()                {}
func (NopNotifier) ValidateAllFinished()             {}
func (NopNotifier) ValidateRuleBegin(*rules.Rule)    {}
func (NopNotifier) ValidateRuleFinished(*rules.Rule) {}
func (NopNotifier) ResolveAllBegin()                 {}
func (NopNotifier) ResolveAllFinished()              {}
func (NopNotifier) ResolveRuleBegin(*rules.Rule)     {}
func (NopNotifier) ResolveRuleFinished(*rules.Rule)  {}
func (NopNotifier) AboutToPrompt()                   {}
func (NopNotifier) PromptClosed()                    {}
