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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

func TestStateOnlyAction(t *testing.T) {
	fn := StateOnlyAction(func(s *state.State) (*state.State, error) {
		next := s.Clone()
		next.SetFact("done", "x", "true")
		return next, nil
	})

	out, err := fn(state.New("s"), []string{"ignored"})
	require.NoError(t, err)
	v, _ := out.GetFact("done", "x")
	assert.Equal(t, "true", v)
}

func TestBoolAction(t *testing.T) {
	succeed := BoolAction(func(s *state.State, args []string) bool {
		s.SetFact("done", "x", "true")
		return true
	})
	fail := BoolAction(func(s *state.State, args []string) bool {
		return false
	})

	in := state.New("s")
	out, err := succeed(in, nil)
	require.NoError(t, err)
	v, _ := out.GetFact("done", "x")
	assert.Equal(t, "true", v)
	_, ok := in.GetFact("done", "x")
	assert.False(t, ok, "legacy body must mutate a clone, not the input")

	_, err = fail(in, nil)
	assert.ErrorIs(t, err, ErrActionFailed)
}

func TestEffectAction(t *testing.T) {
	fn := EffectAction(
		[]htn.Goal{{Predicate: "ready", Subject: "kitchen", Value: "true"}},
		[]htn.Goal{{Predicate: "hot", Subject: "meal", Value: "true"}},
	)

	t.Run("precondition unmet fails", func(t *testing.T) {
		_, err := fn(state.New("s"), nil)
		assert.Error(t, err)
	})

	t.Run("effects applied to a clone", func(t *testing.T) {
		in := state.New("s")
		in.SetFact("ready", "kitchen", "true")

		out, err := fn(in, nil)
		require.NoError(t, err)
		v, _ := out.GetFact("hot", "meal")
		assert.Equal(t, "true", v)
		_, ok := in.GetFact("hot", "meal")
		assert.False(t, ok)
	})
}

func TestGoalPairUnigoalMethod(t *testing.T) {
	var seen htn.Goal
	fn := GoalPairUnigoalMethod(func(s *state.State, g htn.Goal) ([]htn.Todo, error) {
		seen = g
		return nil, nil
	}, "pos")

	_, err := fn(state.New("s"), "a", "table")
	require.NoError(t, err)
	assert.Equal(t, htn.Goal{Predicate: "pos", Subject: "a", Value: "table"}, seen)
}
