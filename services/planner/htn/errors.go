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

import "errors"

// Package-level error definitions.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNilContext        = errors.New("context must not be nil")
	ErrUnknownNode       = errors.New("unknown node id")
	ErrNoMethods         = errors.New("no applicable method")
	ErrUnknownAction     = errors.New("action not registered in domain")
	ErrCommandBlacklist  = errors.New("command is blacklisted")
	ErrRetriesExhausted  = errors.New("backtracking retries exhausted")
	ErrMaxDepthExceeded  = errors.New("max decomposition depth exceeded")
	ErrMaxLengthExceeded = errors.New("max plan length exceeded")
)

// PlanningError reports a node that could not be expanded: every registered
// method was blacklisted, errored, or absent.
type PlanningError struct {
	Node NodeID
	Task Todo
	Err  error
}

func (e *PlanningError) Error() string {
	return "planning failed for " + e.Task.String() + ": " + e.Err.Error()
}

func (e *PlanningError) Unwrap() error { return e.Err }

// ExecutionError reports a primitive action whose function failed or
// panicked. It is always a value, never an uncaught fault.
type ExecutionError struct {
	Action Todo
	Err    error
}

func (e *ExecutionError) Error() string {
	return "execution failed for " + e.Action.String() + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }
