// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianValidate/pkg/logging"
	"github.com/AleutianAI/AleutianValidate/pkg/telemetry"
	"github.com/AleutianAI/AleutianValidate/pkg/ux"
	"github.com/AleutianAI/AleutianValidate/services/validation/manager"
	"github.com/AleutianAI/AleutianValidate/services/validation/server"
	"github.com/AleutianAI/AleutianValidate/services/validation/watch"
)

// Default values.
const (
	DefaultListenAddr    = ":9090"
	DefaultWatchInterval = 2 * time.Second
	DefaultDebounce      = 200 * time.Millisecond
	DefaultLogBuffer     = 500
)

var (
	watchPaths     []string
	watchListen    string
	watchInterval  time.Duration
	watchDebounce  time.Duration
	watchLogBuffer int
)

func init() {
	f := watchCmd.Flags()
	f.StringArrayVar(&watchPaths, "path", nil,
		"File or directory to watch (repeatable)")
	f.StringVar(&watchListen, "listen", DefaultListenAddr,
		"Address of the status server")
	f.DurationVar(&watchInterval, "interval", DefaultWatchInterval,
		"Minimum time between validation runs")
	f.DurationVar(&watchDebounce, "debounce", DefaultDebounce,
		"Quiet period before a burst of changes triggers a run")
	f.IntVar(&watchLogBuffer, "log-buffer", DefaultLogBuffer,
		"Number of log entries kept for /v1/validation/log")
	_ = watchCmd.MarkFlagRequired("path")
}

// watchArgs are the watch command flags.
type watchArgs struct {
	Paths     []string
	Listen    string
	Interval  time.Duration
	Debounce  time.Duration
	LogBuffer int

	// ready, when set, receives the router once everything is wired.
	ready func(h *gin.Engine)
}

func runWatchCommand(cmd *cobra.Command, _ []string) error {
	opts := optionsFromFlags()
	opts.Out = cmd.OutOrStdout()
	return runWatch(cmd.Context(), opts, watchArgs{
		Paths:     watchPaths,
		Listen:    watchListen,
		Interval:  watchInterval,
		Debounce:  watchDebounce,
		LogBuffer: watchLogBuffer,
	})
}

// runWatch validates on startup and on every change until ctx is
// cancelled.
//
// Description:
//
//	Three goroutines run under one errgroup: the file watcher, the
//	validation loop and the status server. The manager is only used from
//	the loop goroutine. If any of them fails the others are stopped.
//
// Outputs:
//
//	error - Setup errors, or the first goroutine error. Nil after ctx is
//	        cancelled.
func runWatch(ctx context.Context, opts appOptions, args watchArgs) error {
	if len(args.Paths) == 0 {
		return errors.New("at least one --path is required")
	}

	ring := logging.NewRingExporter(args.LogBuffer)
	opts.LogExporter = ring

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	logger := a.logger.Slog()
	state := server.NewState()

	loop := watch.NewLoop(func(ctx context.Context, trigger string) {
		st := validateOnce(ctx, a.manager, trigger, logger)
		state.Update(st)
		printRun(a.printer, st)
	}, args.Interval, logger)

	watcher, err := watch.NewWatcher(args.Paths, loop.OnChange, watch.WatcherOptions{
		Debounce: args.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := server.NewHandlers(state,
		server.WithLogSource(ring),
		server.WithTrigger(func() bool { return loop.Request(watch.TriggerManual) }),
		server.WithLogger(logger),
	)
	router := server.NewRouter(handlers, serviceName(a.cfg), telemetry.MetricsHandler())
	if args.ready != nil {
		args.ready(router)
	}

	a.printer.Title("Watch")
	a.printer.Muted(fmt.Sprintf("Watching %d path(s), status on %s/v1/validation/status",
		len(args.Paths), args.Listen))

	loop.Request(watch.TriggerStartup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, args.Listen, router, logger) })
	return g.Wait()
}

// validateOnce runs ValidateAll and builds the status of the run.
func validateOnce(ctx context.Context, m *manager.Manager, trigger string, logger *slog.Logger) server.Status {
	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "cli.watch.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("validation.run_id", runID),
		attribute.String("validation.trigger", trigger),
	)

	started := time.Now()
	valid := m.ValidateAll(ctx)

	st := server.Snapshot(m.Rules())
	st.RunID = runID
	st.Trigger = trigger
	st.StartedAt = started.UTC()
	st.DurationMS = time.Since(started).Milliseconds()
	if err := ctx.Err(); err != nil {
		st.Error = err.Error()
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanOK(span)
	}

	telemetry.LoggerWithTrace(ctx, logger).Info("Validation run finished",
		slog.String("run_id", runID),
		slog.String("trigger", trigger),
		slog.Bool("valid", valid),
		slog.Int("failing", len(st.Failing)),
		slog.Int64("duration_ms", st.DurationMS),
	)
	return st
}

// printRun prints a one-line result for a watch run.
func printRun(p *ux.Printer, st server.Status) {
	label := st.StartedAt.Local().Format(time.TimeOnly) + " " + st.Trigger
	if st.Valid {
		p.StatusLine(ux.IconSuccess, label, fmt.Sprintf("%d rules valid", len(st.Rules)))
		return
	}
	p.StatusLine(ux.IconError, label, fmt.Sprintf("failing: %v", st.Failing))
}
