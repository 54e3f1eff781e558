// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve orders rule processing by dependency.
//
// The Engine takes a set of target rules, optionally pulls in their
// transitive dependencies, and calls a process function on every rule in
// scope exactly once, never before the rule's in-scope dependencies.
//
// # Algorithm
//
//	1. Seed: rules without dependencies are processed immediately, the
//	   rest are queued and their dependency IDs collected.
//	2. Discover: under Always (or a confirmed Ask) collected dependencies
//	   known to the registry are seeded the same way.
//	3. Drain: queued rules are dequeued in FIFO order. A rule waiting on
//	   an unprocessed dependency goes back to the tail. Otherwise it is
//	   processed, blocked by the first failed dependency if there is one.
//
// The drain is bounded by n + n(n-1)/2 dequeues for n queued rules. A
// dependency cycle exceeds the bound and fails the run with a *CycleError
// before any rule on the cycle is processed.
//
// Dependencies outside the run's scope are ignored.
package resolve
