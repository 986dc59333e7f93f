// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import "testing"

func TestState_GetSetFact(t *testing.T) {
	s := New("initial")

	if _, ok := s.GetFact("pos", "a"); ok {
		t.Fatal("expected missing fact")
	}

	s.SetFact("pos", "a", "table")
	v, ok := s.GetFact("pos", "a")
	if !ok || v != "table" {
		t.Errorf("expected pos(a)=table, got %q ok=%v", v, ok)
	}

	s.SetFact("pos", "a", "b")
	v, _ = s.GetFact("pos", "a")
	if v != "b" {
		t.Errorf("expected overwrite to b, got %q", v)
	}

	if s.Len() != 1 {
		t.Errorf("expected 1 fact, got %d", s.Len())
	}
}

func TestState_DeleteFact(t *testing.T) {
	s := New("initial")
	s.SetFact("pos", "a", "table")
	s.DeleteFact("pos", "a")

	if _, ok := s.GetFact("pos", "a"); ok {
		t.Error("expected fact removed")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty state, got %d facts", s.Len())
	}

	// Deleting a missing fact is a no-op.
	s.DeleteFact("pos", "never")
}

func TestState_Clone(t *testing.T) {
	s := New("initial")
	s.SetFact("pos", "a", "table")
	s.SetFact("hot", "a", "false")

	c := s.Clone()
	if !s.Equal(c) {
		t.Fatal("clone should equal original")
	}

	c.SetFact("pos", "a", "b")
	v, _ := s.GetFact("pos", "a")
	if v != "table" {
		t.Error("mutating clone leaked into original")
	}
	if s.Equal(c) {
		t.Error("expected clone divergence after mutation")
	}
}

func TestState_Equal(t *testing.T) {
	a := New("a")
	b := New("b")
	if !a.Equal(b) {
		t.Error("two empty states should be equal regardless of name")
	}

	a.SetFact("pos", "x", "1")
	if a.Equal(b) {
		t.Error("states with different facts should not be equal")
	}

	b.SetFact("pos", "x", "1")
	if !a.Equal(b) {
		t.Error("states with identical facts should be equal")
	}
}

func TestState_String(t *testing.T) {
	s := New("s")
	s.SetFact("pos", "b", "table")
	s.SetFact("pos", "a", "b")

	got := s.String()
	want := "s{pos(a)=b, pos(b)=table}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	// Deterministic across calls.
	if s.String() != got {
		t.Error("String should be deterministic")
	}
}

func TestState_Facts(t *testing.T) {
	s := New("s")
	s.SetFact("pos", "b", "table")
	s.SetFact("pos", "a", "b")
	s.SetFact("clear", "a", "true")

	facts := s.Facts()
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}

	want := []Fact{
		{Predicate: "clear", Subject: "a", Value: "true"},
		{Predicate: "pos", Subject: "a", Value: "b"},
		{Predicate: "pos", Subject: "b", Value: "table"},
	}
	for i, f := range facts {
		if f != want[i] {
			t.Errorf("facts[%d] = %+v, want %+v", i, f, want[i])
		}
	}

	// Snapshot: later mutation does not alter the returned slice.
	s.SetFact("pos", "c", "floor")
	if len(facts) != 3 {
		t.Error("Facts() result should be a snapshot")
	}
}
