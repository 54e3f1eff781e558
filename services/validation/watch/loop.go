// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Trigger names the reason for a run.
const (
	TriggerStartup = "startup"
	TriggerChange  = "change"
	TriggerManual  = "manual"
)

// RunFunc performs one revalidation.
type RunFunc func(ctx context.Context, trigger string)

// Loop runs revalidations one at a time.
//
// Description:
//
//	Requests made while a run is pending are coalesced into it. Runs start
//	at most once per interval; requests arriving sooner wait for the
//	limiter.
//
// Thread Safety:
//
//	Request is safe for concurrent use. Run must be called once.
type Loop struct {
	run     RunFunc
	limiter *rate.Limiter
	pending chan string
	logger  *slog.Logger
}

// NewLoop creates a loop calling run at most once per interval. A
// non-positive interval disables throttling.
func NewLoop(run RunFunc, interval time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Loop{
		run:     run,
		limiter: rate.NewLimiter(limit, 1),
		pending: make(chan string, 1),
		logger:  logger.With(slog.String("component", "watch_loop")),
	}
}

// Request asks for a run. It returns false when one is already pending.
func (l *Loop) Request(trigger string) bool {
	select {
	case l.pending <- trigger:
		return true
	default:
		return false
	}
}

// OnChange is a ChangeHandler that requests a run.
func (l *Loop) OnChange(paths []string) {
	l.logger.Debug("Files changed", slog.Int("count", len(paths)), slog.Any("paths", paths))
	l.Request(TriggerChange)
}

// Run executes requested runs until ctx is cancelled.
//
// Outputs:
//
//	error - Nil when ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		var trigger string
		select {
		case <-ctx.Done():
			return nil
		case trigger = <-l.pending:
		}

		if err := l.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.run(ctx, trigger)
	}
}
