// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import (
	"errors"

	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// Legacy action/method shapes are adapted here, at the registration
// boundary, so the planner and executor only ever see the fixed
// htn.ActionFunc / htn.TaskMethodFunc signatures.

// ErrActionFailed is the error produced for boolean failure sentinels.
var ErrActionFailed = errors.New("action reported failure")

// StateOnlyAction adapts an argument-less action body.
func StateOnlyAction(fn func(s *state.State) (*state.State, error)) htn.ActionFunc {
	return func(s *state.State, _ []string) (*state.State, error) {
		return fn(s)
	}
}

// BoolAction adapts an action that signals failure with a boolean sentinel
// instead of an error. A false return becomes ErrActionFailed; the state is
// returned unchanged on success (these legacy bodies mutate a clone they
// are handed, so the adapter clones before the call).
func BoolAction(fn func(s *state.State, args []string) bool) htn.ActionFunc {
	return func(s *state.State, args []string) (*state.State, error) {
		next := s.Clone()
		if !fn(next, args) {
			return nil, ErrActionFailed
		}
		return next, nil
	}
}

// EffectAction builds an action from a precondition/effect list: every
// precondition must hold in the input state, then the effects are applied
// to a clone. This is the compiled form used by the YAML loader and is also
// handy for tests.
func EffectAction(preconditions, effects []htn.Goal) htn.ActionFunc {
	return func(s *state.State, _ []string) (*state.State, error) {
		for _, p := range preconditions {
			if !p.Satisfied(s) {
				return nil, errors.New("precondition not met: " + p.String())
			}
		}
		next := s.Clone()
		for _, e := range effects {
			next.SetFact(e.Predicate, e.Subject, e.Value)
		}
		return next, nil
	}
}

// StateOnlyTaskMethod adapts an argument-less task method body.
func StateOnlyTaskMethod(fn func(s *state.State) ([]htn.Todo, error)) htn.TaskMethodFunc {
	return func(s *state.State, _ []string) ([]htn.Todo, error) {
		return fn(s)
	}
}

// GoalPairUnigoalMethod adapts a unigoal method written against a (subject,
// value) pair struct rather than two arguments.
func GoalPairUnigoalMethod(fn func(s *state.State, g htn.Goal) ([]htn.Todo, error), predicate string) htn.UnigoalMethodFunc {
	return func(s *state.State, subject, value string) ([]htn.Todo, error) {
		return fn(s, htn.Goal{Predicate: predicate, Subject: subject, Value: value})
	}
}
