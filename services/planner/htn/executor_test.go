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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

func mustPlan(t *testing.T, dom Domain, st *state.State, todos []Todo, opts *Options) *Tree {
	t.Helper()
	tr, err := Plan(context.Background(), dom, st, todos, opts)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	return tr
}

// A goal already satisfied in the initial state executes zero actions.
func TestExecute_SatisfiedGoalRunsNothing(t *testing.T) {
	st := state.New("initial")
	st.SetFact("pos", "a", "table")

	dom := newTestDomain()
	dom.unigoalMethods["pos"] = []UnigoalMethod{
		{Name: "move_to", Fn: func(s *state.State, subject, value string) ([]Todo, error) {
			if v, ok := s.GetFact("pos", subject); ok && v == value {
				return nil, nil
			}
			return []Todo{NewAction("move", subject, value)}, nil
		}},
	}

	tr := mustPlan(t, dom, st, []Todo{NewGoal("pos", "a", "table")}, nil)
	res, err := Execute(context.Background(), dom, st, tr, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || len(res.Trace) != 0 {
		t.Errorf("expected success with zero actions, got success=%v trace=%d", res.Success, len(res.Trace))
	}
}

// A task decomposes to two actions and both succeed.
func TestExecute_TwoActionTrace(t *testing.T) {
	dom := newTestDomain()
	dom.actions["heat"] = setFactAction("hot", "meal", "true")
	dom.actions["serve"] = setFactAction("served", "meal", "true")
	dom.taskMethods["cook"] = []TaskMethod{
		{Name: "cook_stove", Fn: decompose(NewAction("heat"), NewAction("serve"))},
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewTask("cook")}, nil)
	res, err := Execute(context.Background(), dom, nil, tr, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(res.Trace) != 2 {
		t.Fatalf("expected trace of 2, got %d", len(res.Trace))
	}
	if res.Trace[0].Action.Name != "heat" || res.Trace[1].Action.Name != "serve" {
		t.Errorf("trace order wrong: %s, %s", res.Trace[0].Action, res.Trace[1].Action)
	}
	if v, _ := res.FinalState.GetFact("hot", "meal"); v != "true" {
		t.Error("final state missing heat effect")
	}
	if v, _ := res.FinalState.GetFact("served", "meal"); v != "true" {
		t.Error("final state missing serve effect")
	}
	if res.RetriesUsed != 0 {
		t.Errorf("expected no retries, got %d", res.RetriesUsed)
	}
}

// The first method's action fails, the second method recovers after one
// retry, and the failed attempt is not replayed.
func TestExecute_BacktrackToSecondMethod(t *testing.T) {
	heatAttempts := 0
	dom := newTestDomain()
	dom.actions["heat"] = func(s *state.State, args []string) (*state.State, error) {
		heatAttempts++
		return nil, errors.New("burner is broken")
	}
	dom.actions["microwave"] = setFactAction("hot", "meal", "true")
	dom.actions["serve"] = setFactAction("served", "meal", "true")
	dom.taskMethods["cook"] = []TaskMethod{
		{Name: "cook_stove", Fn: decompose(NewAction("heat"), NewAction("serve"))},
		{Name: "cook_microwave", Fn: decompose(NewAction("microwave"), NewAction("serve"))},
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewTask("cook")}, nil)
	cookID := tr.Node(tr.Root()).Children[0]
	if got := tr.Node(cookID).MethodTried; got != "cook_stove" {
		t.Fatalf("planning should pick the first method, got %q", got)
	}

	res, err := Execute(context.Background(), dom, nil, tr, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.RetriesUsed != 1 {
		t.Errorf("expected exactly 1 retry, got %d", res.RetriesUsed)
	}
	if heatAttempts != 1 {
		t.Errorf("failed attempt replayed: heat ran %d times", heatAttempts)
	}

	cook := tr.Node(cookID)
	if !cook.MethodBlacklisted("cook_stove") {
		t.Error("cook_stove should be blacklisted at the cook node")
	}
	if cook.MethodTried != "cook_microwave" {
		t.Errorf("expected cook_microwave after repair, got %q", cook.MethodTried)
	}

	if len(res.Trace) != 2 ||
		res.Trace[0].Action.Name != "microwave" ||
		res.Trace[1].Action.Name != "serve" {
		t.Errorf("unexpected trace: %+v", res.Trace)
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("tree invalid after backtracking: %v", err)
	}
}

// A bare top-level action with no owning method fails every time; once max
// retries are spent the executor surfaces exhaustion.
func TestExecute_UnattributableFailureExhaustsRetries(t *testing.T) {
	dom := newTestDomain()
	dom.actions["doom"] = func(s *state.State, args []string) (*state.State, error) {
		return nil, errors.New("always fails")
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewAction("doom")}, nil)
	res, err := Execute(context.Background(), dom, nil, tr, nil)

	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if res.Success {
		t.Error("partial success must not be reported as success")
	}
	if res.RetriesUsed != DefaultOptions().MaxRetries {
		t.Errorf("expected %d retries used, got %d", DefaultOptions().MaxRetries, res.RetriesUsed)
	}
	if !tr.Commands.Contains(NewAction("doom")) {
		t.Error("failing command should be globally blacklisted")
	}
	if res.FailureReason == "" {
		t.Error("expected a human-readable failure reason")
	}
}

func TestExecute_MaxRetriesZeroSurfacesImmediately(t *testing.T) {
	calls := 0
	dom := newTestDomain()
	dom.actions["flaky"] = func(s *state.State, args []string) (*state.State, error) {
		calls++
		return nil, errors.New("nope")
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewAction("flaky")}, nil)
	opts := DefaultOptions()
	opts.MaxRetries = 0

	res, err := Execute(context.Background(), dom, nil, tr, opts)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected immediate exhaustion, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
	if res.RetriesUsed != 0 {
		t.Errorf("expected zero retries used, got %d", res.RetriesUsed)
	}
	if tr.Commands.Len() != 0 {
		t.Error("no backtracking attempt may happen with max_retries=0")
	}
}

func TestExecute_ResumeDoesNotReplayCompletedWork(t *testing.T) {
	setupRuns := 0
	dom := newTestDomain()
	dom.actions["setup"] = func(s *state.State, args []string) (*state.State, error) {
		setupRuns++
		next := s.Clone()
		next.SetFact("ready", "kitchen", "true")
		return next, nil
	}
	dom.actions["bad"] = func(s *state.State, args []string) (*state.State, error) {
		return nil, errors.New("broken")
	}
	dom.actions["good"] = setFactAction("done", "meal", "true")
	dom.taskMethods["cook"] = []TaskMethod{
		{Name: "m_bad", Fn: decompose(NewAction("bad"))},
		{Name: "m_good", Fn: decompose(NewAction("good"))},
	}

	tr := mustPlan(t, dom, state.New("initial"),
		[]Todo{NewAction("setup"), NewTask("cook")}, nil)
	res, err := Execute(context.Background(), dom, nil, tr, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if setupRuns != 1 {
		t.Errorf("completed prior action replayed: setup ran %d times", setupRuns)
	}
	if len(res.Trace) != 2 {
		t.Fatalf("expected trace [setup good], got %d entries", len(res.Trace))
	}
	if res.Trace[0].Action.Name != "setup" || res.Trace[1].Action.Name != "good" {
		t.Errorf("unexpected trace order: %s, %s", res.Trace[0].Action, res.Trace[1].Action)
	}
	// Chronology preserved: the setup effect is visible in the final state.
	if v, _ := res.FinalState.GetFact("ready", "kitchen"); v != "true" {
		t.Error("effect of completed prior action lost across backtracking")
	}
}

func TestExecute_BacktrackingTouchesOnlyAttributedSubtree(t *testing.T) {
	dom := newTestDomain()
	dom.actions["a"] = noopAction()
	dom.actions["bad"] = func(s *state.State, args []string) (*state.State, error) {
		return nil, errors.New("broken")
	}
	dom.actions["alt"] = noopAction()
	dom.actions["z"] = noopAction()
	dom.taskMethods["left"] = []TaskMethod{
		{Name: "left_only", Fn: decompose(NewAction("a"))},
	}
	dom.taskMethods["mid"] = []TaskMethod{
		{Name: "mid_bad", Fn: decompose(NewAction("bad"))},
		{Name: "mid_alt", Fn: decompose(NewAction("alt"))},
	}
	dom.taskMethods["right"] = []TaskMethod{
		{Name: "right_only", Fn: decompose(NewAction("z"))},
	}

	tr := mustPlan(t, dom, state.New("initial"),
		[]Todo{NewTask("left"), NewTask("mid"), NewTask("right")}, nil)

	root := tr.Node(tr.Root())
	leftID, midID, rightID := root.Children[0], root.Children[1], root.Children[2]
	leftBefore := tr.Node(leftID)
	rightBefore := tr.Node(rightID)
	leftChildren := append([]NodeID(nil), leftBefore.Children...)
	rightChildren := append([]NodeID(nil), rightBefore.Children...)

	if _, err := Execute(context.Background(), dom, nil, tr, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Siblings above and beside the repaired node are untouched: same node
	// values, same children ids, same method attribution.
	if tr.Node(leftID) != leftBefore || tr.Node(rightID) != rightBefore {
		t.Error("sibling node identity changed")
	}
	for i, c := range leftChildren {
		if leftBefore.Children[i] != c {
			t.Error("left sibling children rewired")
		}
	}
	for i, c := range rightChildren {
		if rightBefore.Children[i] != c {
			t.Error("right sibling children rewired")
		}
	}
	if leftBefore.MethodTried != "left_only" || rightBefore.MethodTried != "right_only" {
		t.Error("sibling method attribution changed")
	}
	if got := tr.Node(midID).MethodTried; got != "mid_alt" {
		t.Errorf("expected repaired node on mid_alt, got %q", got)
	}
}

func TestExecute_PanickingActionIsAnErrorValue(t *testing.T) {
	dom := newTestDomain()
	dom.actions["explode"] = func(s *state.State, args []string) (*state.State, error) {
		panic("kaboom")
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewAction("explode")}, nil)
	opts := DefaultOptions()
	opts.MaxRetries = 0

	_, err := Execute(context.Background(), dom, nil, tr, opts)
	if err == nil {
		t.Fatal("expected error from panicking action")
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("panic must surface as an ordinary execution failure, got %v", err)
	}
}

func TestExecute_NilStateResultIsFailure(t *testing.T) {
	dom := newTestDomain()
	dom.actions["void"] = func(s *state.State, args []string) (*state.State, error) {
		return nil, nil
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewAction("void")}, nil)
	opts := DefaultOptions()
	opts.MaxRetries = 0

	if _, err := Execute(context.Background(), dom, nil, tr, opts); err == nil {
		t.Fatal("a nil successor state without error is a failure sentinel")
	}
}

func TestExecute_UnknownActionFails(t *testing.T) {
	dom := newTestDomain()
	dom.actions["known"] = noopAction()

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewAction("known")}, nil)
	// Simulate a domain losing the action between plan and execute.
	delete(dom.actions, "known")

	opts := DefaultOptions()
	opts.MaxRetries = 0
	_, err := Execute(context.Background(), dom, nil, tr, opts)
	if err == nil {
		t.Fatal("expected failure for unresolvable action")
	}
}

func TestExecute_NoAlternativeMethodIsUnrecoverable(t *testing.T) {
	dom := newTestDomain()
	dom.actions["bad"] = func(s *state.State, args []string) (*state.State, error) {
		return nil, errors.New("broken")
	}
	dom.taskMethods["cook"] = []TaskMethod{
		{Name: "only", Fn: decompose(NewAction("bad"))},
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewTask("cook")}, nil)
	res, err := Execute(context.Background(), dom, nil, tr, nil)

	if err == nil {
		t.Fatal("expected unrecoverable error when no alternative method exists")
	}
	var pe *PlanningError
	if !errors.As(err, &pe) {
		t.Errorf("expected wrapped PlanningError, got %v", err)
	}
	if res == nil || res.Success {
		t.Error("result must report failure with partial trace")
	}
}

func TestExecute_Idempotence(t *testing.T) {
	// Re-linearizing a tree that executed without failures reproduces the
	// executed action sequence exactly.
	dom := newTestDomain()
	dom.actions["heat"] = noopAction()
	dom.actions["serve"] = noopAction()
	dom.taskMethods["cook"] = []TaskMethod{
		{Name: "m", Fn: decompose(NewAction("heat"), NewAction("serve"))},
	}

	tr := mustPlan(t, dom, state.New("initial"), []Todo{NewTask("cook")}, nil)
	res, err := Execute(context.Background(), dom, nil, tr, nil)
	if err != nil {
		t.Fatal(err)
	}

	linear := Linearize(tr)
	if len(linear) != len(res.Trace) {
		t.Fatalf("linearization length %d != trace length %d", len(linear), len(res.Trace))
	}
	for i := range linear {
		if !linear[i].Task.Equal(res.Trace[i].Action) {
			t.Errorf("position %d: %s != %s", i, linear[i].Task, res.Trace[i].Action)
		}
	}
}
