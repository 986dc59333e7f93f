// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state provides the world-state value consumed by the HTN planner.
//
// A State is a collection of facts keyed by (predicate, subject), each
// holding a single string value. Goal satisfaction checks use exact equality
// on the looked-up value. States are treated as values: mutation happens on
// an owned copy obtained via Clone, never in place on a shared snapshot.
package state

import (
	"fmt"
	"sort"
	"strings"
)

// State holds world facts as predicate -> subject -> value.
//
// Thread Safety: Not safe for concurrent mutation. The planner and executor
// are single-threaded over a given State; share snapshots read-only.
type State struct {
	// Name labels the state for diagnostics (e.g., "initial", "after heat").
	Name string

	facts map[string]map[string]string
}

// New creates an empty state with the given diagnostic name.
func New(name string) *State {
	return &State{
		Name:  name,
		facts: make(map[string]map[string]string),
	}
}

// GetFact returns the value recorded for (predicate, subject).
//
// Outputs:
//
//	string - The fact value, "" if absent.
//	bool - True if the fact is present.
func (s *State) GetFact(predicate, subject string) (string, bool) {
	subjects, ok := s.facts[predicate]
	if !ok {
		return "", false
	}
	v, ok := subjects[subject]
	return v, ok
}

// SetFact records value for (predicate, subject), overwriting any prior value.
func (s *State) SetFact(predicate, subject, value string) {
	subjects, ok := s.facts[predicate]
	if !ok {
		subjects = make(map[string]string)
		s.facts[predicate] = subjects
	}
	subjects[subject] = value
}

// DeleteFact removes the (predicate, subject) fact if present.
func (s *State) DeleteFact(predicate, subject string) {
	if subjects, ok := s.facts[predicate]; ok {
		delete(subjects, subject)
		if len(subjects) == 0 {
			delete(s.facts, predicate)
		}
	}
}

// Len returns the total number of facts.
func (s *State) Len() int {
	n := 0
	for _, subjects := range s.facts {
		n += len(subjects)
	}
	return n
}

// Clone returns an independent deep copy of the state.
//
// The copy shares no map structure with the receiver; mutating either side
// never affects the other. This is the mechanism behind the copy-on-write
// discipline used by actions and by node snapshots.
func (s *State) Clone() *State {
	c := New(s.Name)
	for predicate, subjects := range s.facts {
		inner := make(map[string]string, len(subjects))
		for subject, value := range subjects {
			inner[subject] = value
		}
		c.facts[predicate] = inner
	}
	return c
}

// Fact is one (predicate, subject, value) triple, as returned by Facts.
type Fact struct {
	Predicate string `json:"predicate"`
	Subject   string `json:"subject"`
	Value     string `json:"value"`
}

// Facts returns all facts sorted by predicate then subject.
//
// The slice is a snapshot; mutating the state afterwards does not
// affect it. Used for serialization and diagnostics.
func (s *State) Facts() []Fact {
	facts := make([]Fact, 0, s.Len())
	for predicate, subjects := range s.facts {
		for subject, value := range subjects {
			facts = append(facts, Fact{Predicate: predicate, Subject: subject, Value: value})
		}
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Predicate != facts[j].Predicate {
			return facts[i].Predicate < facts[j].Predicate
		}
		return facts[i].Subject < facts[j].Subject
	})
	return facts
}

// Equal reports structural equality of facts. Names are ignored.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Len() != other.Len() {
		return false
	}
	for predicate, subjects := range s.facts {
		for subject, value := range subjects {
			ov, ok := other.GetFact(predicate, subject)
			if !ok || ov != value {
				return false
			}
		}
	}
	return true
}

// String renders the facts in deterministic order for logs and tests.
func (s *State) String() string {
	var keys []string
	for predicate, subjects := range s.facts {
		for subject := range subjects {
			keys = append(keys, predicate+"\x00"+subject)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString("{")
	for i, k := range keys {
		parts := strings.SplitN(k, "\x00", 2)
		v, _ := s.GetFact(parts[0], parts[1])
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s(%s)=%s", parts[0], parts[1], v)
	}
	b.WriteString("}")
	return b.String()
}
