// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"slices"
	"sync"
)

// BufferedExporter collects every entry in memory. Used by tests.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates a BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{entries: make([]LogEntry, 0, 100)}
}

// Export appends the entry.
func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op.
func (e *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of the collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.entries)
}

// RingExporter keeps the most recent entries.
//
// Description:
//
//	The watch command serves the ring over HTTP so recent validation
//	activity can be inspected without tailing stderr.
//
// Thread Safety: Safe for concurrent use.
type RingExporter struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingExporter creates a RingExporter holding up to size entries.
// A size below one is treated as one.
func NewRingExporter(size int) *RingExporter {
	if size < 1 {
		size = 1
	}
	return &RingExporter{entries: make([]LogEntry, size)}
}

// Export stores the entry, overwriting the oldest when full.
func (e *RingExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[e.next] = entry
	e.next = (e.next + 1) % len(e.entries)
	if e.next == 0 {
		e.full = true
	}
	return nil
}

// Flush is a no-op.
func (e *RingExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (e *RingExporter) Close() error { return nil }

// Entries returns the stored entries, oldest first.
func (e *RingExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.full {
		return slices.Clone(e.entries[:e.next])
	}
	out := make([]LogEntry, 0, len(e.entries))
	out = append(out, e.entries[e.next:]...)
	return append(out, e.entries[:e.next]...)
}

var (
	_ LogExporter = (*BufferedExporter)(nil)
	_ LogExporter = (*RingExporter)(nil)
)
