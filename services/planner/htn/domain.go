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

import "github.com/AleutianAI/AleutianPlan/services/planner/state"

// ActionFunc is the single primitive-action signature. It receives the
// current state and the action arguments and returns the successor state.
// Implementations must not mutate the input state; return a clone with the
// action's effects applied, or an error to signal failure.
type ActionFunc func(s *state.State, args []string) (*state.State, error)

// TaskMethodFunc decomposes a compound task into an ordered todo list.
// An empty, non-error result means the task needs no further work.
type TaskMethodFunc func(s *state.State, args []string) ([]Todo, error)

// UnigoalMethodFunc decomposes a single goal. An empty, non-error result
// means the goal already holds.
type UnigoalMethodFunc func(s *state.State, subject, value string) ([]Todo, error)

// MultigoalMethodFunc decomposes a multigoal (the full ordered goal list).
type MultigoalMethodFunc func(s *state.State, goals []Goal) ([]Todo, error)

// TaskMethod is a named task-decomposition method. Declaration order across
// a lookup result is the selection order; the name is the unit of
// blacklisting during backtracking.
type TaskMethod struct {
	Name string
	Fn   TaskMethodFunc
}

// UnigoalMethod is a named unigoal-decomposition method.
type UnigoalMethod struct {
	Name string
	Fn   UnigoalMethodFunc
}

// MultigoalMethod is a named multigoal-decomposition method.
type MultigoalMethod struct {
	Name string
	Fn   MultigoalMethodFunc
}

// Domain is the planner's view of an action/method registry. Lookups are
// read-only and must be deterministic: the same name always yields the same
// methods in the same order within one planning session. Names are the one
// canonical key type; resolve aliases before registration, never at lookup.
type Domain interface {
	// LookupAction resolves a primitive action implementation by name.
	LookupAction(name string) (ActionFunc, bool)

	// LookupTaskMethods returns the ordered methods for a task name.
	// An empty slice means the task is unknown.
	LookupTaskMethods(task string) []TaskMethod

	// LookupUnigoalMethods returns the ordered methods registered for a
	// goal predicate.
	LookupUnigoalMethods(predicate string) []UnigoalMethod

	// LookupMultigoalMethods returns the ordered multigoal methods.
	LookupMultigoalMethods() []MultigoalMethod
}
