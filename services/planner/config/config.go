// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates planner service configuration.
//
// Configuration is resolved with priority: environment > file > defaults.
// Files may be YAML or JSON; environment variables use the PLANNER_ prefix.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
)

// validate is the shared validator instance. validator.Validate is
// safe for concurrent use and caches struct metadata internally.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config contains all planner service configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server" yaml:"server"`

	// Planner contains planning and execution settings.
	Planner PlannerConfig `json:"planner" yaml:"planner"`

	// Telemetry contains observability settings.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging contains structured logging settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the listen address (empty binds all interfaces).
	Host string `json:"host" yaml:"host"`

	// Port is the listen port.
	Port int `json:"port" yaml:"port" validate:"min=1,max=65535"`

	// ReadTimeout bounds request header and body reads.
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// DomainPath is the YAML domain file served by the planning API.
	DomainPath string `json:"domain_path" yaml:"domain_path"`

	// WatchDomain reloads the domain file when it changes on disk.
	WatchDomain bool `json:"watch_domain" yaml:"watch_domain"`
}

// PlannerConfig contains planning and execution settings.
//
// These map directly onto the planner Options.
type PlannerConfig struct {
	// MaxRetries is the backtracking retry budget per execution.
	MaxRetries int `json:"max_retries" yaml:"max_retries" validate:"min=0"`

	// MaxDepth bounds solution tree depth during expansion.
	MaxDepth int `json:"max_depth" yaml:"max_depth" validate:"min=1"`

	// MaxPlanLength bounds the number of action leaves in a plan.
	MaxPlanLength int `json:"max_plan_length" yaml:"max_plan_length" validate:"min=1"`

	// Verbose sets planner log detail (0 silent through 3 per-node).
	Verbose int `json:"verbose" yaml:"verbose" validate:"min=0,max=3"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// ServiceName identifies this service in traces and metrics.
	ServiceName string `json:"service_name" yaml:"service_name" validate:"required"`

	// ServiceVersion is the version string for this service.
	ServiceVersion string `json:"service_version" yaml:"service_version"`

	// Environment identifies the deployment environment.
	Environment string `json:"environment" yaml:"environment"`

	// TraceExporter selects the trace exporter: "otlp", "stdout", or "none".
	TraceExporter string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter selects the metric exporter: "prometheus", "stdout", or "none".
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`

	// OTLPEndpoint is the OTLP receiver endpoint for traces.
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS verification for OTLP connections.
	OTLPInsecure bool `json:"otlp_insecure" yaml:"otlp_insecure"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables file logging when set. Supports ~ expansion.
	Dir string `json:"dir" yaml:"dir"`

	// JSON switches stderr output to JSON format.
	JSON bool `json:"json" yaml:"json"`

	// Quiet disables stderr output.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// Default returns the default configuration.
//
// Environment variables override individual defaults where applicable:
//   - PLANNER_ENV: environment name
//   - OTEL_TRACES_EXPORTER: trace exporter type
//   - OTEL_METRICS_EXPORTER: metric exporter type
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
func Default() Config {
	defaults := htn.DefaultOptions()
	return Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8093,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			DomainPath:      "",
			WatchDomain:     false,
		},
		Planner: PlannerConfig{
			MaxRetries:    defaults.MaxRetries,
			MaxDepth:      defaults.MaxDepth,
			MaxPlanLength: defaults.MaxPlanLength,
			Verbose:       defaults.Verbose,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "aleutianplan",
			ServiceVersion: "1.0.0",
			Environment:    getEnvOr("PLANNER_ENV", "development"),
			TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", "none"),
			MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", "prometheus"),
			OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPInsecure:   true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
			JSON:  false,
			Quiet: false,
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML or JSON config file (optional, can be empty).
//     A missing file is not an error; defaults apply.
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file exists but is invalid, or if the merged
//     configuration fails validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// PlannerOptions converts the planner section to planner Options.
//
// The returned Options carry no logger; callers attach one before use.
func (c Config) PlannerOptions() *htn.Options {
	opts := htn.DefaultOptions()
	opts.MaxRetries = c.Planner.MaxRetries
	opts.MaxDepth = c.Planner.MaxDepth
	opts.MaxPlanLength = c.Planner.MaxPlanLength
	opts.Verbose = c.Planner.Verbose
	return opts
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(cfg *Config) {
	// Server
	if v := os.Getenv("PLANNER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PLANNER_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = i
		}
	}
	if v := os.Getenv("PLANNER_DOMAIN_PATH"); v != "" {
		cfg.Server.DomainPath = v
	}
	if v := os.Getenv("PLANNER_WATCH_DOMAIN"); v != "" {
		cfg.Server.WatchDomain = v == "true" || v == "1"
	}
	if v := os.Getenv("PLANNER_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Planner
	if v := os.Getenv("PLANNER_MAX_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Planner.MaxRetries = i
		}
	}
	if v := os.Getenv("PLANNER_MAX_DEPTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Planner.MaxDepth = i
		}
	}
	if v := os.Getenv("PLANNER_MAX_PLAN_LENGTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Planner.MaxPlanLength = i
		}
	}
	if v := os.Getenv("PLANNER_VERBOSE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Planner.Verbose = i
		}
	}

	// Telemetry
	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := os.Getenv("OTEL_METRICS_EXPORTER"); v != "" {
		cfg.Telemetry.MetricExporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	// Logging
	if v := os.Getenv("PLANNER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PLANNER_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("PLANNER_LOG_JSON"); v != "" {
		cfg.Logging.JSON = v == "true" || v == "1"
	}
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
