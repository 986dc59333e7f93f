// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package htn

import "log/slog"

// Options configures Plan and Execute.
//
// Verbosity is diagnostic only: it changes what gets logged, never what gets
// planned or executed.
type Options struct {
	// Verbose is the diagnostic verbosity, 0 (quiet) to 3 (trace every
	// method attempt and action result).
	Verbose int `json:"verbose" yaml:"verbose" validate:"gte=0,lte=3"`

	// MaxRetries bounds backtracking attempts during execution. Zero means
	// the first execution failure is surfaced immediately.
	MaxRetries int `json:"max_retries" yaml:"max_retries" validate:"gte=0"`

	// MaxDepth limits decomposition depth to prevent runaway recursion.
	MaxDepth int `json:"max_depth" yaml:"max_depth" validate:"gt=0"`

	// MaxPlanLength limits the number of primitive actions in a plan.
	MaxPlanLength int `json:"max_plan_length" yaml:"max_plan_length" validate:"gt=0"`

	// Logger receives structured diagnostics. Nil falls back to
	// slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultOptions returns the default configuration: three retries, generous
// expansion limits, info-level logging.
func DefaultOptions() *Options {
	return &Options{
		Verbose:       0,
		MaxRetries:    3,
		MaxDepth:      50,
		MaxPlanLength: 500,
	}
}

// normalize fills zero values with defaults and resolves the logger.
func (o *Options) normalize() *Options {
	out := *DefaultOptions()
	if o != nil {
		out = *o
	}
	if out.MaxDepth <= 0 {
		out.MaxDepth = DefaultOptions().MaxDepth
	}
	if out.MaxPlanLength <= 0 {
		out.MaxPlanLength = DefaultOptions().MaxPlanLength
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
