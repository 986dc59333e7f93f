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
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// Declarative domain files describe actions as precondition/effect lists and
// methods as ordered subtask lists. The loader compiles them into a Registry
// so file-defined domains and code-defined domains are indistinguishable to
// the planner.
//
// Subtask arguments support positional substitution: "$0", "$1", ... expand
// to the invoking task's arguments; unigoal method subtasks additionally
// see "$subject" and "$value".

// FactSpec is a (predicate, subject, value) triple in a domain or problem
// file.
type FactSpec struct {
	Predicate string `json:"predicate" yaml:"predicate" validate:"required"`
	Subject   string `json:"subject,omitempty" yaml:"subject"`
	Value     string `json:"value,omitempty" yaml:"value"`
}

func (f FactSpec) goal() htn.Goal {
	return htn.Goal{Predicate: f.Predicate, Subject: f.Subject, Value: f.Value}
}

// ActionSpec declares a primitive action.
type ActionSpec struct {
	Name          string     `json:"name" yaml:"name" validate:"required"`
	Preconditions []FactSpec `json:"preconditions,omitempty" yaml:"preconditions" validate:"dive"`
	Effects       []FactSpec `json:"effects,omitempty" yaml:"effects" validate:"dive"`
}

// SubtaskSpec references one todo inside a method body. Exactly one of
// Action, Task, Goal, or Multigoal must be set.
type SubtaskSpec struct {
	Action    string     `json:"action,omitempty" yaml:"action,omitempty"`
	Task      string     `json:"task,omitempty" yaml:"task,omitempty"`
	Args      []string   `json:"args,omitempty" yaml:"args,omitempty"`
	Goal      *FactSpec  `json:"goal,omitempty" yaml:"goal,omitempty"`
	Multigoal []FactSpec `json:"multigoal,omitempty" yaml:"multigoal,omitempty"`
}

// TaskMethodSpec declares one decomposition method for a task. File order
// across methods of the same task is the planner's selection order.
type TaskMethodSpec struct {
	Task          string        `json:"task" yaml:"task" validate:"required"`
	Name          string        `json:"name" yaml:"name" validate:"required"`
	Preconditions []FactSpec    `json:"preconditions,omitempty" yaml:"preconditions" validate:"dive"`
	Subtasks      []SubtaskSpec `json:"subtasks,omitempty" yaml:"subtasks"`
}

// UnigoalMethodSpec declares one decomposition method for a goal predicate.
type UnigoalMethodSpec struct {
	Predicate     string        `json:"predicate" yaml:"predicate" validate:"required"`
	Name          string        `json:"name" yaml:"name" validate:"required"`
	Preconditions []FactSpec    `json:"preconditions,omitempty" yaml:"preconditions" validate:"dive"`
	Subtasks      []SubtaskSpec `json:"subtasks,omitempty" yaml:"subtasks"`
}

// DomainFile is the root of a declarative domain document.
type DomainFile struct {
	Name           string              `json:"name" yaml:"name" validate:"required"`
	Actions        []ActionSpec        `json:"actions,omitempty" yaml:"actions" validate:"dive"`
	TaskMethods    []TaskMethodSpec    `json:"task_methods,omitempty" yaml:"task_methods" validate:"dive"`
	UnigoalMethods []UnigoalMethodSpec `json:"unigoal_methods,omitempty" yaml:"unigoal_methods" validate:"dive"`
}

// ProblemFile is the root of a problem document: initial facts plus the
// todo list handed to Plan.
type ProblemFile struct {
	Name  string        `json:"name" yaml:"name" validate:"required"`
	Facts []FactSpec    `json:"facts,omitempty" yaml:"facts" validate:"dive"`
	Todos []SubtaskSpec `json:"todos,omitempty" yaml:"todos"`
}

// Loader parses and compiles domain and problem files.
//
// Thread Safety: Safe for concurrent use; the validator is stateless after
// construction.
type Loader struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		validate: validator.New(),
		logger:   logger,
	}
}

// LoadDomain reads, validates, and compiles a domain file.
func (l *Loader) LoadDomain(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain file: %w", err)
	}
	return l.LoadDomainBytes(data)
}

// LoadDomainBytes compiles a domain document from memory.
func (l *Loader) LoadDomainBytes(data []byte) (*Registry, error) {
	var file DomainFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing domain file: %w", err)
	}
	if err := l.validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid domain file: %w", err)
	}

	b := NewBuilder(file.Name)
	for _, a := range file.Actions {
		pre := factGoals(a.Preconditions)
		eff := factGoals(a.Effects)
		b.Action(a.Name, EffectAction(pre, eff))
	}
	for _, m := range file.TaskMethods {
		b.TaskMethod(m.Task, m.Name, compileTaskMethod(m))
	}
	for _, m := range file.UnigoalMethods {
		b.UnigoalMethod(m.Predicate, m.Name, compileUnigoalMethod(m))
	}

	reg, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("compiling domain %q: %w", file.Name, err)
	}
	l.logger.Debug("domain compiled",
		slog.String("domain", file.Name),
		slog.Int("actions", len(file.Actions)),
		slog.Int("task_methods", len(file.TaskMethods)),
		slog.Int("unigoal_methods", len(file.UnigoalMethods)),
	)
	return reg, nil
}

// LoadProblem reads a problem file and returns the initial state and todos.
func (l *Loader) LoadProblem(path string) (*state.State, []htn.Todo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading problem file: %w", err)
	}
	return l.LoadProblemBytes(data)
}

// LoadProblemBytes parses a problem document from memory.
func (l *Loader) LoadProblemBytes(data []byte) (*state.State, []htn.Todo, error) {
	var file ProblemFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing problem file: %w", err)
	}
	if err := l.validate.Struct(&file); err != nil {
		return nil, nil, fmt.Errorf("invalid problem file: %w", err)
	}

	st := state.New(file.Name)
	for _, f := range file.Facts {
		st.SetFact(f.Predicate, f.Subject, f.Value)
	}
	todos, err := compileSubtasks(file.Todos, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid todo list: %w", err)
	}
	return st, todos, nil
}

// CompileTodos converts subtask specs to planner todos without variable
// substitution. Used by callers that receive todo lists over the wire
// rather than from a method body.
func CompileTodos(specs []SubtaskSpec) ([]htn.Todo, error) {
	return compileSubtasks(specs, nil)
}

func factGoals(specs []FactSpec) []htn.Goal {
	out := make([]htn.Goal, len(specs))
	for i, f := range specs {
		out[i] = f.goal()
	}
	return out
}

func compileTaskMethod(spec TaskMethodSpec) htn.TaskMethodFunc {
	return func(s *state.State, args []string) ([]htn.Todo, error) {
		vars := positionalVars(args)
		for _, p := range spec.Preconditions {
			g := substituteGoal(p.goal(), vars)
			if !g.Satisfied(s) {
				return nil, errors.New("precondition not met: " + g.String())
			}
		}
		return compileSubtasks(spec.Subtasks, vars)
	}
}

func compileUnigoalMethod(spec UnigoalMethodSpec) htn.UnigoalMethodFunc {
	return func(s *state.State, subject, value string) ([]htn.Todo, error) {
		vars := map[string]string{"subject": subject, "value": value}
		// A unigoal method on an already satisfied goal decomposes to
		// nothing, matching the planner's "empty means achieved" rule.
		if (htn.Goal{Predicate: spec.Predicate, Subject: subject, Value: value}).Satisfied(s) {
			return nil, nil
		}
		for _, p := range spec.Preconditions {
			g := substituteGoal(p.goal(), vars)
			if !g.Satisfied(s) {
				return nil, errors.New("precondition not met: " + g.String())
			}
		}
		return compileSubtasks(spec.Subtasks, vars)
	}
}

// compileSubtasks turns subtask references into todos, applying variable
// substitution and rejecting ambiguous entries.
func compileSubtasks(specs []SubtaskSpec, vars map[string]string) ([]htn.Todo, error) {
	out := make([]htn.Todo, 0, len(specs))
	for i, s := range specs {
		set := 0
		if s.Action != "" {
			set++
		}
		if s.Task != "" {
			set++
		}
		if s.Goal != nil {
			set++
		}
		if len(s.Multigoal) > 0 {
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("subtask %d: exactly one of action, task, goal, multigoal required", i)
		}

		switch {
		case s.Action != "":
			out = append(out, htn.NewAction(s.Action, substituteAll(s.Args, vars)...))
		case s.Task != "":
			out = append(out, htn.NewTask(s.Task, substituteAll(s.Args, vars)...))
		case s.Goal != nil:
			out = append(out, htn.Todo{Kind: htn.TodoGoal, Goal: substituteGoal(s.Goal.goal(), vars)})
		default:
			goals := make([]htn.Goal, len(s.Multigoal))
			for j, f := range s.Multigoal {
				goals[j] = substituteGoal(f.goal(), vars)
			}
			out = append(out, htn.NewMultigoal(goals...))
		}
	}
	return out, nil
}

func positionalVars(args []string) map[string]string {
	vars := make(map[string]string, len(args))
	for i, a := range args {
		vars[strconv.Itoa(i)] = a
	}
	return vars
}

// substitute expands a "$name" token against vars; anything else passes
// through unchanged. Substitution is whole-token only.
func substitute(s string, vars map[string]string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	if v, ok := vars[s[1:]]; ok {
		return v
	}
	return s
}

func substituteAll(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = substitute(a, vars)
	}
	return out
}

func substituteGoal(g htn.Goal, vars map[string]string) htn.Goal {
	return htn.Goal{
		Predicate: g.Predicate,
		Subject:   substitute(g.Subject, vars),
		Value:     substitute(g.Value, vars),
	}
}
