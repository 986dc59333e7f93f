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
	"strings"

	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// TodoKind discriminates the Todo tagged union.
type TodoKind string

const (
	// TodoAction is a directly executable primitive action.
	TodoAction TodoKind = "action"

	// TodoTask is a named compound task decomposed by task methods.
	TodoTask TodoKind = "task"

	// TodoGoal is a single (predicate, subject, value) goal.
	TodoGoal TodoKind = "goal"

	// TodoMultigoal is an ordered conjunction of goals.
	TodoMultigoal TodoKind = "multigoal"

	// TodoRoot is the synthetic task wrapping the top-level todo list.
	// Only the tree root carries it.
	TodoRoot TodoKind = "root"
)

// Goal is a single (predicate, subject, value) triple. It is satisfied when
// the state holds exactly that value for (predicate, subject).
type Goal struct {
	Predicate string `json:"predicate" yaml:"predicate"`
	Subject   string `json:"subject" yaml:"subject"`
	Value     string `json:"value" yaml:"value"`
}

// Satisfied reports whether the goal holds in the given state.
func (g Goal) Satisfied(s *state.State) bool {
	v, ok := s.GetFact(g.Predicate, g.Subject)
	return ok && v == g.Value
}

// String renders the goal as predicate(subject)=value.
func (g Goal) String() string {
	return g.Predicate + "(" + g.Subject + ")=" + g.Value
}

// Todo is the unit of work handed to the planner: an action, a task, a goal,
// or a multigoal. Immutable once created; treat the struct as a value.
//
// The union is encoded by Kind:
//
//   - TodoAction, TodoTask: Name and Args are set.
//   - TodoGoal: Goal is set.
//   - TodoMultigoal: Goals is set (order is meaningful).
//   - TodoRoot: nothing else is set; only the tree root uses it.
type Todo struct {
	Kind  TodoKind `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Args  []string `json:"args,omitempty"`
	Goal  Goal     `json:"goal,omitempty"`
	Goals []Goal   `json:"goals,omitempty"`
}

// NewAction creates an action todo.
func NewAction(name string, args ...string) Todo {
	return Todo{Kind: TodoAction, Name: name, Args: args}
}

// NewTask creates a compound-task todo.
func NewTask(name string, args ...string) Todo {
	return Todo{Kind: TodoTask, Name: name, Args: args}
}

// NewGoal creates a unigoal todo.
func NewGoal(predicate, subject, value string) Todo {
	return Todo{Kind: TodoGoal, Goal: Goal{Predicate: predicate, Subject: subject, Value: value}}
}

// NewMultigoal creates a multigoal todo. Goal order is preserved everywhere;
// an empty list is vacuously satisfied.
func NewMultigoal(goals ...Goal) Todo {
	return Todo{Kind: TodoMultigoal, Goals: goals}
}

func newRootTodo() Todo {
	return Todo{Kind: TodoRoot, Name: "root"}
}

// Equal reports deep equality of two todos, including argument and goal order.
func (t Todo) Equal(other Todo) bool {
	if t.Kind != other.Kind || t.Name != other.Name {
		return false
	}
	if len(t.Args) != len(other.Args) || len(t.Goals) != len(other.Goals) {
		return false
	}
	for i := range t.Args {
		if t.Args[i] != other.Args[i] {
			return false
		}
	}
	if t.Goal != other.Goal {
		return false
	}
	for i := range t.Goals {
		if t.Goals[i] != other.Goals[i] {
			return false
		}
	}
	return true
}

// Key returns a canonical identity string for the todo. For actions this is
// the command-blacklist key: the name plus the exact argument list, so the
// same action with different arguments is a different command.
func (t Todo) Key() string {
	var b strings.Builder
	b.WriteString(string(t.Kind))
	b.WriteString(":")
	switch t.Kind {
	case TodoGoal:
		b.WriteString(t.Goal.String())
	case TodoMultigoal:
		for i, g := range t.Goals {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(g.String())
		}
	default:
		b.WriteString(t.Name)
		b.WriteString("(")
		b.WriteString(strings.Join(t.Args, ","))
		b.WriteString(")")
	}
	return b.String()
}

// String renders the todo for logs and tree dumps.
func (t Todo) String() string {
	switch t.Kind {
	case TodoGoal:
		return "goal " + t.Goal.String()
	case TodoMultigoal:
		parts := make([]string, len(t.Goals))
		for i, g := range t.Goals {
			parts[i] = g.String()
		}
		return "multigoal [" + strings.Join(parts, ", ") + "]"
	case TodoRoot:
		return "root"
	default:
		return string(t.Kind) + " " + t.Name + "(" + strings.Join(t.Args, ",") + ")"
	}
}

// MultigoalSatisfied reports whether every goal of a multigoal todo holds in
// the given state. An empty goal list is vacuously satisfied. Returns false
// for non-multigoal todos.
func (t Todo) MultigoalSatisfied(s *state.State) bool {
	if t.Kind != TodoMultigoal {
		return false
	}
	for _, g := range t.Goals {
		if !g.Satisfied(s) {
			return false
		}
	}
	return true
}

// UnsatisfiedGoals returns the multigoal's goals not holding in state, in
// their original relative order.
func (t Todo) UnsatisfiedGoals(s *state.State) []Goal {
	var out []Goal
	for _, g := range t.Goals {
		if !g.Satisfied(s) {
			out = append(out, g)
		}
	}
	return out
}
