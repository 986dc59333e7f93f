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
	"context"
	"testing"

	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

func buildNestedTree(t *testing.T) *Tree {
	t.Helper()
	dom := newTestDomain()
	dom.actions["heat"] = noopAction()
	dom.actions["plate"] = noopAction()
	dom.actions["serve"] = noopAction()
	dom.taskMethods["cook"] = []TaskMethod{
		{Name: "cook_stove", Fn: decompose(NewAction("heat"), NewTask("finish"))},
	}
	dom.taskMethods["finish"] = []TaskMethod{
		{Name: "finish_std", Fn: decompose(NewAction("plate"))},
	}

	tr, err := Plan(context.Background(), dom, state.New("initial"),
		[]Todo{NewTask("cook"), NewAction("serve")}, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	return tr
}

func TestLinearize_DepthFirstOrder(t *testing.T) {
	tr := buildNestedTree(t)

	got := Linearize(tr)
	want := []string{"heat", "plate", "serve"}
	if len(got) != len(want) {
		t.Fatalf("expected %d actions, got %d", len(want), len(got))
	}
	for i, a := range got {
		if a.Task.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], a.Task.Name)
		}
	}
}

func TestLinearize_Deterministic(t *testing.T) {
	tr := buildNestedTree(t)

	first := Linearize(tr)
	for i := 0; i < 10; i++ {
		again := Linearize(tr)
		if len(again) != len(first) {
			t.Fatalf("run %d: length changed %d -> %d", i, len(first), len(again))
		}
		for j := range again {
			if again[j].Node != first[j].Node || !again[j].Task.Equal(first[j].Task) {
				t.Fatalf("run %d: entry %d changed: %+v -> %+v", i, j, first[j], again[j])
			}
		}
	}
}

func TestLinearize_SkipsSatisfiedTerminals(t *testing.T) {
	st := state.New("initial")
	st.SetFact("pos", "a", "table")

	dom := newTestDomain()
	dom.unigoalMethods["pos"] = []UnigoalMethod{
		{Name: "move_to", Fn: func(s *state.State, subject, value string) ([]Todo, error) {
			return nil, nil
		}},
	}

	tr, err := Plan(context.Background(), dom, st, []Todo{NewGoal("pos", "a", "table")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := Linearize(tr); len(got) != 0 {
		t.Errorf("satisfied goal terminals are not executable, got %d actions", len(got))
	}
}

func TestLinearize_NilAndEmpty(t *testing.T) {
	if got := Linearize(nil); got != nil && len(got) != 0 {
		t.Error("nil tree should linearize to nothing")
	}

	tr := NewTree(state.New("initial"))
	if got := Linearize(tr); len(got) != 0 {
		t.Error("unexpanded tree should linearize to nothing")
	}
}
