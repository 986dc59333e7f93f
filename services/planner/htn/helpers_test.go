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

import (
	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// testDomain is a minimal in-memory Domain for planner tests.
type testDomain struct {
	actions          map[string]ActionFunc
	taskMethods      map[string][]TaskMethod
	unigoalMethods   map[string][]UnigoalMethod
	multigoalMethods []MultigoalMethod
}

func newTestDomain() *testDomain {
	return &testDomain{
		actions:        make(map[string]ActionFunc),
		taskMethods:    make(map[string][]TaskMethod),
		unigoalMethods: make(map[string][]UnigoalMethod),
	}
}

func (d *testDomain) LookupAction(name string) (ActionFunc, bool) {
	fn, ok := d.actions[name]
	return fn, ok
}

func (d *testDomain) LookupTaskMethods(task string) []TaskMethod {
	return d.taskMethods[task]
}

func (d *testDomain) LookupUnigoalMethods(predicate string) []UnigoalMethod {
	return d.unigoalMethods[predicate]
}

func (d *testDomain) LookupMultigoalMethods() []MultigoalMethod {
	return d.multigoalMethods
}

// setFactAction returns an action that clones the state and records a fact.
func setFactAction(predicate, subject, value string) ActionFunc {
	return func(s *state.State, args []string) (*state.State, error) {
		next := s.Clone()
		next.SetFact(predicate, subject, value)
		return next, nil
	}
}

// noopAction returns an action that succeeds without changing any fact.
func noopAction() ActionFunc {
	return func(s *state.State, args []string) (*state.State, error) {
		return s.Clone(), nil
	}
}

// decompose returns a task method function producing a fixed todo list.
func decompose(todos ...Todo) TaskMethodFunc {
	return func(s *state.State, args []string) ([]Todo, error) {
		return todos, nil
	}
}
