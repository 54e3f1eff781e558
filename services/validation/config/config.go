// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads datavalidate.yaml.
//
// The file selects catalog rules and their overrides, declares command
// rules, and carries the manager, logging and telemetry settings used by
// the CLI. An embedded default is used when no file is found.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianValidate/pkg/validation"
	"github.com/AleutianAI/AleutianValidate/services/validation/command"
	"github.com/AleutianAI/AleutianValidate/services/validation/manager"
	"github.com/AleutianAI/AleutianValidate/services/validation/resolve"
	"github.com/AleutianAI/AleutianValidate/services/validation/rules"
)

const (
	// MaxConfigFileSize is the maximum allowed config file size (1MB).
	MaxConfigFileSize = 1024 * 1024

	// EnvConfigPath names the environment variable holding the config path.
	EnvConfigPath = "DATAVALIDATE_CONFIG"

	// DefaultFileName is the config file name searched for.
	DefaultFileName = "datavalidate.yaml"

	// SourceEmbedded is the Source of the embedded default config.
	SourceEmbedded = "embedded"
)

var (
	// ErrConfigTooLarge indicates the file exceeds MaxConfigFileSize.
	ErrConfigTooLarge = errors.New("config file too large")

	// ErrInvalidConfig indicates the file failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)

//go:embed datavalidate.yaml
var defaultConfigYAML []byte

var (
	configLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validation_config_load_errors_total",
		Help: "Total datavalidate config load errors",
	})

	configLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validation_config_load_duration_seconds",
		Help:    "Duration of datavalidate config loading",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5},
	})
)

var configTracer = otel.Tracer("aleutian.validate.config")

// configValidate is the validator instance for config files.
var configValidate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the root of datavalidate.yaml.
type Config struct {
	Manager   ManagerConfig   `yaml:"manager"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Rules     []RuleConfig    `yaml:"rules" validate:"dive"`
	Commands  []command.Spec  `yaml:"commands" validate:"dive"`

	// Source is the file the config was read from, or SourceEmbedded.
	Source string `yaml:"-"`
}

// ManagerConfig holds orchestration settings. Nil booleans take the
// manager defaults.
type ManagerConfig struct {
	PreValidateBeforeFix *bool         `yaml:"pre_validate_before_fix"`
	FetchDependencies    string        `yaml:"fetch_dependencies" validate:"omitempty,oneof=always never ask true false"`
	PreValidate          *bool         `yaml:"pre_validate"`
	PostValidate         *bool         `yaml:"post_validate"`
	RetryUntilSuccess    *bool         `yaml:"retry_until_success"`
	Include              []string      `yaml:"include" validate:"dive,required"`
	Exclude              []string      `yaml:"exclude" validate:"dive,required"`
	WorkingDir           string        `yaml:"working_dir"`
	CommandTimeout       time.Duration `yaml:"command_timeout" validate:"gte=0"`
}

// LoggingConfig mirrors the logging package configuration.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
	Quiet bool   `yaml:"quiet"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=stdout otlp none"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// RuleConfig selects one catalog rule and overrides its definition.
type RuleConfig struct {
	ID          string         `yaml:"id" validate:"required"`
	Name        *string        `yaml:"name"`
	Description *string        `yaml:"description"`
	DataType    *string        `yaml:"data_type"`
	Required    *bool          `yaml:"required"`
	Checked     *bool          `yaml:"checked"`
	CheckName   *string        `yaml:"check_name"`
	FixName     *string        `yaml:"fix_name"`
	FixTooltip  *string        `yaml:"fix_tooltip"`
	ErrorMsg    *string        `yaml:"error_msg"`
	WarnMsg     *string        `yaml:"warn_msg"`
	Kwargs      map[string]any `yaml:"kwargs"`
	DependsOn   []string       `yaml:"depends_on" validate:"omitempty,dive,required"`
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the config.
//
// Description:
//
//	An explicit path must exist and parse. Without one, the path comes
//	from DATAVALIDATE_CONFIG or the common locations; a discovered file
//	that fails to load is logged and the embedded default is used.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - Explicit config path, or "".
//
// Outputs:
//
//	*Config - The parsed config.
//	error - Non-nil if an explicit path could not be loaded.
func Load(ctx context.Context, path string) (*Config, error) {
	ctx, span := configTracer.Start(ctx, "config.Load")
	defer span.End()

	start := time.Now()
	defer func() {
		configLoadDuration.Observe(time.Since(start).Seconds())
	}()

	if path != "" {
		cfg, err := loadFile(ctx, path)
		if err != nil {
			configLoadErrors.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return cfg, nil
	}

	if found := ExternalPath(); found != "" {
		cfg, err := loadFile(ctx, found)
		if err == nil {
			slog.Info("Loaded datavalidate config", slog.String("path", found))
			return cfg, nil
		}
		configLoadErrors.Inc()
		span.RecordError(err)
		slog.Warn("Failed to load datavalidate config, using embedded default",
			slog.String("path", found),
			slog.String("error", err.Error()),
		)
	}

	return Default(ctx)
}

// Default parses the embedded default config.
func Default(ctx context.Context) (*Config, error) {
	return Parse(ctx, defaultConfigYAML, SourceEmbedded)
}

// ExternalPath returns the config file to use when none is given, or "".
func ExternalPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}

	locations := []string{
		"./" + DefaultFileName,
		"./config/" + DefaultFileName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}
	return ""
}

// loadFile reads and parses a config file with a size limit.
func loadFile(ctx context.Context, path string) (*Config, error) {
	ctx, span := configTracer.Start(ctx, "config.LoadFile",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), MaxConfigFileSize)
	}
	span.SetAttributes(attribute.Int64("file_size", info.Size()))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(ctx, data, absPath)
}

// Parse decodes and validates config YAML.
//
// Description:
//
//	Unknown keys are rejected. An empty document yields a zero Config.
//	Rule IDs must be unique.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - The YAML document.
//	source - Recorded as Config.Source.
//
// Outputs:
//
//	*Config - The parsed config.
//	error - Wraps ErrInvalidConfig for validation failures.
func Parse(ctx context.Context, data []byte, source string) (*Config, error) {
	_, span := configTracer.Start(ctx, "config.Parse")
	defer span.End()

	if len(data) > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, len(data), MaxConfigFileSize)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	span.SetAttributes(
		attribute.Int("rule_count", len(cfg.Rules)),
		attribute.Int("command_count", len(cfg.Commands)),
	)
	return &cfg, nil
}

// Validate checks field constraints and rule ID uniqueness.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for i := range c.Commands {
		if err := c.Commands[i].Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	seen := make(map[string]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		if err := validation.ValidateRuleID(r.ID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if err := validation.ValidateRuleIDs(r.DependsOn); err != nil {
			return fmt.Errorf("%w: rule %q depends_on: %w", ErrInvalidConfig, r.ID, err)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: rule %q listed twice", ErrInvalidConfig, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(c.Commands))
	for _, s := range c.Commands {
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w: command rule %q declared twice", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// =============================================================================
// Conversion
// =============================================================================

// Settings converts the rules section.
//
// Outputs:
//
//	[]rules.Setting - One setting per entry, in file order. Nil when the
//	                  section is empty, which selects every catalog rule.
func (c *Config) Settings() []rules.Setting {
	if len(c.Rules) == 0 {
		return nil
	}
	settings := make([]rules.Setting, 0, len(c.Rules))
	for _, r := range c.Rules {
		settings = append(settings, rules.Setting{
			ID: r.ID,
			Overrides: rules.Overrides{
				Name:          r.Name,
				Description:   r.Description,
				DataType:      r.DataType,
				Required:      r.Required,
				Checked:       r.Checked,
				CheckName:     r.CheckName,
				FixName:       r.FixName,
				FixTooltip:    r.FixTooltip,
				ErrorMsg:      r.ErrorMsg,
				WarnMsg:       r.WarnMsg,
				Kwargs:        rules.Kwargs(r.Kwargs),
				DependencyIDs: r.DependsOn,
			},
		})
	}
	return settings
}

// FetchPolicy parses manager.fetch_dependencies. Empty means ask.
func (c *Config) FetchPolicy() (resolve.FetchPolicy, error) {
	return resolve.ParseFetchPolicy(c.Manager.FetchDependencies)
}

// PreValidateBeforeFixOrDefault returns the setting, defaulting to true.
func (m ManagerConfig) PreValidateBeforeFixOrDefault() bool {
	return boolOr(m.PreValidateBeforeFix, true)
}

// ResolveOptions returns the resolve settings over
// manager.DefaultResolveOptions.
func (m ManagerConfig) ResolveOptions() manager.ResolveOptions {
	opts := manager.DefaultResolveOptions()
	opts.PreValidate = boolOr(m.PreValidate, opts.PreValidate)
	opts.PostValidate = boolOr(m.PostValidate, opts.PostValidate)
	opts.RetryUntilSuccess = boolOr(m.RetryUntilSuccess, opts.RetryUntilSuccess)
	return opts
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
