// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

var (
	tracer = otel.Tracer("aleutian.validate.resolve")
	meter  = otel.Meter("aleutian.validate.resolve")
)

// ProcessFunc handles one rule and reports whether it succeeded.
//
// A failed rule blocks every rule that depends on it for the rest of the run.
type ProcessFunc func(ctx context.Context, rule *rules.Rule) bool

// AcceptFunc filters the target rules of a run.
type AcceptFunc func(rule *rules.Rule) bool

// Option configures an Engine.
type Option func(*Engine)

// WithAccept sets the predicate applied to target rules. Fetched
// dependencies are not filtered.
func WithAccept(fn AcceptFunc) Option {
	return func(e *Engine) { e.accept = fn }
}

// WithConfirm sets the decision function for the Ask policy.
func WithConfirm(fn ConfirmFunc) Option {
	return func(e *Engine) { e.confirm = fn }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine processes rules in dependency order.
//
// Description:
//
//	Engine runs one resolution pass per Run call. It keeps no state
//	between runs other than lazily created metric instruments.
//
// Thread Safety:
//
//	Engine is safe to share, but the rules it processes are not. Do not
//	run passes over the same rules concurrently.
type Engine struct {
	lookup  rules.Lookup
	accept  AcceptFunc
	confirm ConfirmFunc
	logger  *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce    sync.Once
	rulesProcessed metric.Int64Counter
	cyclesDetected metric.Int64Counter
	runLatency     metric.Float64Histogram
}

// NewEngine creates an engine.
//
// Inputs:
//
//	lookup - Resolves dependency IDs to rules. Must not be nil.
//	opts - Accept predicate, confirm function and logger.
//
// Outputs:
//
//	*Engine - The engine.
//	error - ErrNilLookup if lookup is nil.
func NewEngine(lookup rules.Lookup, opts ...Option) (*Engine, error) {
	if lookup == nil {
		return nil, ErrNilLookup
	}
	e := &Engine{
		lookup: lookup,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution.
func (e *Engine) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.rulesProcessed, err = meter.Int64Counter("validation_resolve_rules_processed_total",
			metric.WithDescription("Number of rules processed by the resolve engine"),
		)
		if err != nil {
			initErrors = append(initErrors, "rules_processed: "+err.Error())
		}

		e.cyclesDetected, err = meter.Int64Counter("validation_resolve_cycles_total",
			metric.WithDescription("Number of runs aborted by a dependency cycle"),
		)
		if err != nil {
			initErrors = append(initErrors, "cycles_detected: "+err.Error())
		}

		e.runLatency, err = meter.Float64Histogram("validation_resolve_duration_seconds",
			metric.WithDescription("Time spent in one resolve pass"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some resolve metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run processes targets and, per policy, their dependencies.
//
// Description:
//
//	Every rule in scope is passed to process exactly once. Before a rule
//	with dependencies is processed its failed-dependency marker is set to
//	the first failed in-scope dependency (by ID), or cleared. Rules
//	without dependencies always have the marker cleared.
//
// Inputs:
//
//	ctx - Checked between rules. Cancellation stops the run.
//	targets - The rules to process. Duplicates are processed once.
//	policy - Whether to pull in dependencies outside targets.
//	process - Called once per rule. Must not be nil.
//
// Outputs:
//
//	error - *CycleError on a dependency cycle, ErrFetchCancelled when the
//	        Ask confirmation was declined, or the context error.
func (e *Engine) Run(ctx context.Context, targets []*rules.Rule, policy FetchPolicy, process ProcessFunc) error {
	if process == nil {
		return ErrNilProcess
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "resolve.Run",
		trace.WithAttributes(
			attribute.Int("resolve.targets", len(targets)),
			attribute.String("resolve.policy", policy.String()),
		),
	)
	defer span.End()

	r := &pass{
		engine:     e,
		process:    process,
		policy:     policy,
		sessionID:  uuid.NewString()[:12],
		inScope:    make(map[string]*rules.Rule),
		processed:  make(map[string]bool),
		pendingSet: make(map[string]bool),
	}
	span.SetAttributes(attribute.String("resolve.session_id", r.sessionID))

	start := time.Now()
	err := r.run(ctx, targets)
	if e.runLatency != nil {
		e.runLatency.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("policy", policy.String())),
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("resolve.processed", len(r.processed)))
	span.SetStatus(codes.Ok, "")
	e.logger.Debug("resolve pass completed",
		slog.String("session_id", r.sessionID),
		slog.Int("processed", len(r.processed)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// pass holds the state of one Run call.
type pass struct {
	engine    *Engine
	process   ProcessFunc
	policy    FetchPolicy
	sessionID string

	inScope    map[string]*rules.Rule
	processed  map[string]bool
	queue      []*rules.Rule
	queued     int
	pending    []string
	pendingSet map[string]bool
}

func (p *pass) run(ctx context.Context, targets []*rules.Rule) error {
	accept := p.engine.accept
	for _, rule := range targets {
		if rule == nil || (accept != nil && !accept(rule)) {
			continue
		}
		if err := p.seed(ctx, rule); err != nil {
			return err
		}
	}

	if p.policy != Never {
		if err := p.discover(ctx); err != nil {
			return err
		}
	}

	return p.drain(ctx)
}

// seed brings a rule into scope. Rules without dependencies are processed
// immediately, the rest are queued.
func (p *pass) seed(ctx context.Context, rule *rules.Rule) error {
	if _, ok := p.inScope[rule.ID()]; ok {
		return nil
	}
	p.inScope[rule.ID()] = rule

	deps := rule.DependencyIDs()
	if len(deps) == 0 {
		rule.SetFailedDependency(nil)
		return p.handle(ctx, rule)
	}

	for _, id := range deps {
		if _, ok := p.inScope[id]; ok || p.pendingSet[id] {
			continue
		}
		p.pendingSet[id] = true
		p.pending = append(p.pending, id)
	}
	p.queue = append(p.queue, rule)
	p.queued++
	return nil
}

// discover seeds pending dependencies until none are left.
func (p *pass) discover(ctx context.Context) error {
	for len(p.pending) > 0 {
		id := p.pending[0]
		p.pending = p.pending[1:]

		if _, ok := p.inScope[id]; ok {
			continue
		}
		dep, ok := p.engine.lookup.Get(id)
		if !ok {
			p.engine.logger.Debug("skipping unknown dependency",
				slog.String("dependency", id),
				slog.String("session_id", p.sessionID),
			)
			continue
		}

		if p.policy == Ask {
			fetch, err := p.confirm(ctx)
			if err != nil {
				return err
			}
			if !fetch {
				p.engine.logger.Info("dependency fetch declined",
					slog.String("session_id", p.sessionID),
				)
				return ErrFetchCancelled
			}
			p.policy = Always
		}

		if err := p.seed(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) confirm(ctx context.Context) (bool, error) {
	if p.engine.confirm == nil {
		return true, nil
	}
	return p.engine.confirm(ctx)
}

// drain processes queued rules once their dependencies are processed.
func (p *pass) drain(ctx context.Context) error {
	maxIters := p.queued + p.queued*(p.queued-1)/2
	iters := 0

	for len(p.queue) > 0 {
		if iters > maxIters {
			return p.cycleError(ctx)
		}
		iters++

		rule := p.queue[0]
		p.queue = p.queue[1:]

		waiting := false
		var failed *rules.Rule
		for _, id := range rule.DependencyIDs() {
			dep, ok := p.inScope[id]
			if !ok {
				if p.policy == Always {
					p.engine.logger.Error("dependency not resolved",
						slog.String("rule", rule.ID()),
						slog.String("dependency", id),
					)
				} else {
					p.engine.logger.Debug("ignoring dependency outside scope",
						slog.String("rule", rule.ID()),
						slog.String("dependency", id),
					)
				}
				continue
			}
			success, done := p.processed[id]
			if !done {
				waiting = true
				break
			}
			if !success && failed == nil {
				failed = dep
			}
		}

		if waiting {
			p.queue = append(p.queue, rule)
			continue
		}

		rule.SetFailedDependency(failed)
		if err := p.handle(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

// handle calls process on a rule and records the outcome.
func (p *pass) handle(ctx context.Context, rule *rules.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	success := p.process(ctx, rule)
	p.processed[rule.ID()] = success

	if p.engine.rulesProcessed != nil {
		p.engine.rulesProcessed.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool("success", success)),
		)
	}

	attrs := []any{
		slog.String("rule", rule.ID()),
		slog.Bool("success", success),
		slog.String("session_id", p.sessionID),
	}
	if dep := rule.FailedDependency(); dep != nil {
		attrs = append(attrs, slog.String("failed_dependency", dep.ID()))
	}
	p.engine.logger.Debug("rule processed", attrs...)
	return nil
}

// cycleError builds the error for an exceeded iteration bound.
func (p *pass) cycleError(ctx context.Context) error {
	if p.engine.cyclesDetected != nil {
		p.engine.cyclesDetected.Add(ctx, 1)
	}

	path := p.findCycle()
	p.engine.logger.Error("detected cycle in rule dependencies",
		slog.String("session_id", p.sessionID),
		slog.Any("cycle", path),
	)
	return NewCycleError(path)
}

// findCycle runs a DFS over the unprocessed rules in scope and returns
// the first cycle found. Falls back to the remaining queue.
func (p *pass) findCycle() []string {
	adj := make(map[string][]string, len(p.queue))
	for _, rule := range p.queue {
		for _, id := range rule.DependencyIDs() {
			if _, ok := p.inScope[id]; !ok {
				continue
			}
			if _, done := p.processed[id]; done {
				continue
			}
			adj[rule.ID()] = append(adj[rule.ID()], id)
		}
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, dep := range adj[node] {
			if !visited[dep] {
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			} else if recStack[dep] {
				start := slices.Index(path, dep)
				cycle := slices.Clone(path[start:])
				return append(cycle, dep)
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
		return nil
	}

	ids := make([]string, 0, len(p.queue))
	for _, rule := range p.queue {
		ids = append(ids, rule.ID())
	}
	slices.Sort(ids)

	for _, id := range ids {
		if !visited[id] {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return ids
}
