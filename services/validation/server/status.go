// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"slices"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// RuleStatus is the JSON view of one rule after a run.
type RuleStatus struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	Validity         string            `json:"validity"`
	Dependencies     []string          `json:"dependencies,omitempty"`
	FailedDependency string            `json:"failed_dependency,omitempty"`
	ErrorCount       int               `json:"error_count"`
	Errors           []rules.ErrorItem `json:"errors,omitempty"`
	Messages         []string          `json:"messages,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// Status is the JSON view of the last completed run.
type Status struct {
	RunID      string       `json:"run_id"`
	Trigger    string       `json:"trigger"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Valid      bool         `json:"valid"`
	Failing    []string     `json:"failing"`
	Rules      []RuleStatus `json:"rules"`
	Error      string       `json:"error,omitempty"`
}

// maxItemsPerRule bounds the error items reported per rule.
const maxItemsPerRule = 100

// Snapshot builds the status of rs.
//
// Description:
//
//	Rules appear in the given order. Failing lists the IDs of invalid
//	rules, sorted, and Valid is true when it is empty. At most
//	maxItemsPerRule error items are copied per rule; ErrorCount always
//	holds the full count.
//
// Inputs:
//
//	rs - The rules, in config order.
//
// Outputs:
//
//	Status - The snapshot. Run metadata is left for the caller.
func Snapshot(rs []*rules.Rule) Status {
	st := Status{
		Failing: make([]string, 0),
		Rules:   make([]RuleStatus, 0, len(rs)),
	}
	for _, r := range rs {
		errs := r.Errors()
		rsStatus := RuleStatus{
			ID:           r.ID(),
			Name:         r.Name(),
			Type:         r.Type().Name(),
			Validity:     r.Validity().String(),
			Dependencies: r.DependencyIDs(),
			ErrorCount:   len(errs),
			Errors:       errs[:min(len(errs), maxItemsPerRule)],
		}
		if dep := r.FailedDependency(); dep != nil {
			rsStatus.FailedDependency = dep.ID()
		}
		if r.Validity() != rules.Valid {
			rsStatus.Messages = r.ErrorMessages()
			rsStatus.Warnings = r.WarningMessages()
		}
		if r.Validity() == rules.Invalid {
			st.Failing = append(st.Failing, r.ID())
		}
		st.Rules = append(st.Rules, rsStatus)
	}
	slices.Sort(st.Failing)
	st.Valid = len(st.Failing) == 0
	return st
}

// State holds the latest Status.
//
// Thread Safety: Safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	status Status
	ready  bool
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

// Update replaces the stored status.
func (s *State) Update(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.ready = true
}

// Current returns the stored status and whether any run has completed.
func (s *State) Current() (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.ready
}
