// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

// DefaultTimeout bounds a command that declares no timeout.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long output is drained after a command is killed.
const waitDelay = time.Second

const (
	opCheck = "check"
	opFix   = "fix"
)

// Environment variables set for every command.
const (
	EnvRuleID = "DATAVALIDATE_RULE_ID"
	EnvOp     = "DATAVALIDATE_OP"
)

// Runner executes rule commands.
//
// Description:
//
//	Runner owns the process settings shared by every command of a
//	catalog: working directory, default timeout and extra environment.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	workingDir string
	timeout    time.Duration
	env        []string
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkingDir sets the directory commands run in.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) {
		r.workingDir = dir
	}
}

// WithTimeout sets the default command timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithEnv appends KEY=VALUE entries to every command's environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a command runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// payload is the JSON document written to a command's stdin.
type payload struct {
	RuleID string            `json:"rule_id"`
	Kwargs rules.Kwargs      `json:"kwargs"`
	Errors []rules.ErrorItem `json:"errors,omitempty"`
}

// execResult is the captured outcome of a process that exited.
type execResult struct {
	stdout   []byte
	stderr   string
	exitCode int
}

// run executes inv and captures its output.
//
// Description:
//
//	A non-zero exit status is not an error: callers decide what it
//	means. Errors are returned only when the process could not start,
//	timed out, or the context was cancelled.
func (r *Runner) run(ctx context.Context, ruleID, op string, inv *Invocation, in payload) (execResult, error) {
	ctx, span := startCommandSpan(ctx, ruleID, op, inv.Command)
	defer span.End()
	start := time.Now()

	stdin, err := json.Marshal(in)
	if err != nil {
		span.SetStatus(codes.Error, "encoding stdin")
		return execResult{}, fmt.Errorf("encoding stdin for rule %q: %w", ruleID, err)
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, inv.Command, inv.Args...)
	cmd.Dir = r.dir(inv)
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Env = append(cmd.Env, inv.Env...)
	cmd.Env = append(cmd.Env, EnvRuleID+"="+ruleID, EnvOp+"="+op)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if cmdCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		recordCommandMetrics(ctx, op, time.Since(start), -1)
		span.SetStatus(codes.Error, "timeout")
		return execResult{}, NewCommandError(ruleID, inv.Command, ErrCommandTimeout).
			WithOutput(stderr.String())
	}
	if ctx.Err() != nil {
		recordCommandMetrics(ctx, op, time.Since(start), -1)
		return execResult{}, ctx.Err()
	}

	res := execResult{stdout: stdout.Bytes(), stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.exitCode = exitErr.ExitCode()
	default:
		recordCommandMetrics(ctx, op, time.Since(start), -1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "start failed")
		return execResult{}, NewCommandError(ruleID, inv.Command, fmt.Errorf("%w: %v", ErrCommandFailed, err))
	}

	span.SetAttributes(attribute.Int("validation.command.exit_code", res.exitCode))
	recordCommandMetrics(ctx, op, time.Since(start), res.exitCode)

	r.logger.Debug("rule command finished",
		slog.String("rule_id", ruleID),
		slog.String("op", op),
		slog.String("command", inv.Command),
		slog.Int("exit_code", res.exitCode),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// dir resolves the working directory of inv.
func (r *Runner) dir(inv *Invocation) string {
	switch {
	case inv.Dir == "":
		return r.workingDir
	case filepath.IsAbs(inv.Dir) || r.workingDir == "":
		return inv.Dir
	default:
		return filepath.Join(r.workingDir, inv.Dir)
	}
}

// CheckFunc adapts a check invocation to a rule check.
//
// Description:
//
//	In json mode the decoded stdout document is returned unmodified so
//	the rule's sanitizer can reject malformed shapes. A json check that
//	exits non-zero without printing anything is a runtime error.
//
// Inputs:
//
//	ruleID - The rule the command belongs to.
//	inv - The check invocation.
//
// Outputs:
//
//	rules.CheckFunc - The adapted check.
func (r *Runner) CheckFunc(ruleID string, inv *Invocation) rules.CheckFunc {
	return func(ctx context.Context, kwargs rules.Kwargs) (any, error) {
		res, err := r.run(ctx, ruleID, opCheck, inv, payload{RuleID: ruleID, Kwargs: kwargs})
		if err != nil {
			return nil, err
		}

		if inv.Output == OutputExitCode {
			if res.exitCode == 0 {
				return rules.CheckOutcome{IsValid: true}, nil
			}
			return rules.CheckOutcome{IsValid: false, Errors: itemsFromLines(res.stdout)}, nil
		}

		out := bytes.TrimSpace(res.stdout)
		if len(out) == 0 {
			if res.exitCode != 0 {
				return nil, NewCommandError(ruleID, inv.Command,
					fmt.Errorf("%w: exit status %d", ErrCommandFailed, res.exitCode)).
					WithOutput(strings.TrimSpace(res.stderr))
			}
			return nil, NewCommandError(ruleID, inv.Command, ErrEmptyOutput)
		}

		var raw map[string]any
		if err := json.Unmarshal(out, &raw); err != nil {
			return nil, NewCommandError(ruleID, inv.Command, fmt.Errorf("%w: %v", ErrParseOutput, err))
		}
		return raw, nil
	}
}

// FixFunc adapts a fix invocation to a rule fix. Exit status zero is
// success.
func (r *Runner) FixFunc(ruleID string, inv *Invocation) rules.FixFunc {
	return func(ctx context.Context, kwargs rules.Kwargs, errs []rules.ErrorItem) (bool, error) {
		res, err := r.run(ctx, ruleID, opFix, inv, payload{RuleID: ruleID, Kwargs: kwargs, Errors: errs})
		if err != nil {
			return false, err
		}
		if res.exitCode != 0 {
			r.logger.Warn("fix command reported failure",
				slog.String("rule_id", ruleID),
				slog.Int("exit_code", res.exitCode),
				slog.String("stderr", strings.TrimSpace(res.stderr)),
			)
			return false, nil
		}
		return true, nil
	}
}

// itemsFromLines turns each non-empty line into an error item. Lines have
// no length limit.
func itemsFromLines(out []byte) []rules.ErrorItem {
	items := make([]rules.ErrorItem, 0)
	for line := range strings.Lines(string(out)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, rules.ErrorItem{ID: line, Name: line})
	}
	return items
}
