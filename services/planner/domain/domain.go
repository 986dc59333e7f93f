// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain provides the action/method registry consumed by the HTN
// planner.
//
// A Registry is an explicit, immutable value: there is no process-global
// registration, and nothing can be added after Build. Names are resolved to
// one canonical key exactly once, at registration; lookups never
// re-interpret keys.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
)

// Package-level error definitions.
var (
	ErrEmptyName      = errors.New("name must not be empty")
	ErrDuplicateEntry = errors.New("duplicate registration")
	ErrUnknownAlias   = errors.New("alias target not registered")
)

// canonicalKey resolves a user-supplied name to the single key type used
// for every lookup: trimmed, lower-cased.
func canonicalKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Registry is an immutable action/method registry implementing htn.Domain.
//
// Thread Safety: Safe for concurrent use after Build; all state is
// read-only.
type Registry struct {
	// Name labels the domain in logs.
	Name string

	actions          map[string]htn.ActionFunc
	taskMethods      map[string][]htn.TaskMethod
	unigoalMethods   map[string][]htn.UnigoalMethod
	multigoalMethods []htn.MultigoalMethod
}

// LookupAction resolves a primitive action implementation by name.
func (r *Registry) LookupAction(name string) (htn.ActionFunc, bool) {
	fn, ok := r.actions[canonicalKey(name)]
	return fn, ok
}

// LookupTaskMethods returns the ordered methods for a task name.
func (r *Registry) LookupTaskMethods(task string) []htn.TaskMethod {
	return r.taskMethods[canonicalKey(task)]
}

// LookupUnigoalMethods returns the ordered methods for a goal predicate.
func (r *Registry) LookupUnigoalMethods(predicate string) []htn.UnigoalMethod {
	return r.unigoalMethods[canonicalKey(predicate)]
}

// LookupMultigoalMethods returns the ordered multigoal methods.
func (r *Registry) LookupMultigoalMethods() []htn.MultigoalMethod {
	return r.multigoalMethods
}

// ActionNames returns the registered action names, sorted.
func (r *Registry) ActionNames() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TaskNames returns the task names with at least one method, sorted.
func (r *Registry) TaskNames() []string {
	names := make([]string, 0, len(r.taskMethods))
	for n := range r.taskMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builder accumulates registrations and produces a Registry. Method
// declaration order is preserved: the planner tries methods in the order
// they were added here.
//
// Thread Safety: Not safe for concurrent use. Build once, share the result.
type Builder struct {
	name string
	reg  *Registry
	errs []error
}

// NewBuilder creates a builder for a named domain.
func NewBuilder(name string) *Builder {
	return &Builder{
		name: name,
		reg: &Registry{
			Name:           name,
			actions:        make(map[string]htn.ActionFunc),
			taskMethods:    make(map[string][]htn.TaskMethod),
			unigoalMethods: make(map[string][]htn.UnigoalMethod),
		},
	}
}

// Action registers a primitive action. Duplicate names are a Build error.
func (b *Builder) Action(name string, fn htn.ActionFunc) *Builder {
	key := canonicalKey(name)
	if key == "" {
		b.errs = append(b.errs, fmt.Errorf("action: %w", ErrEmptyName))
		return b
	}
	if _, exists := b.reg.actions[key]; exists {
		b.errs = append(b.errs, fmt.Errorf("action %q: %w", key, ErrDuplicateEntry))
		return b
	}
	b.reg.actions[key] = fn
	return b
}

// ActionAlias registers an alternate name for an already registered action.
// The alias resolves at registration time; lookups see two keys bound to
// the same function.
func (b *Builder) ActionAlias(alias, target string) *Builder {
	fn, ok := b.reg.actions[canonicalKey(target)]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("alias %q -> %q: %w", alias, target, ErrUnknownAlias))
		return b
	}
	return b.Action(alias, fn)
}

// TaskMethod appends a decomposition method for a task. Declaration order
// is selection order. Duplicate method names within one task are a Build
// error (the name is the unit of blacklisting).
func (b *Builder) TaskMethod(task, method string, fn htn.TaskMethodFunc) *Builder {
	key := canonicalKey(task)
	if key == "" || strings.TrimSpace(method) == "" {
		b.errs = append(b.errs, fmt.Errorf("task method %q/%q: %w", task, method, ErrEmptyName))
		return b
	}
	for _, m := range b.reg.taskMethods[key] {
		if m.Name == method {
			b.errs = append(b.errs, fmt.Errorf("task %q method %q: %w", key, method, ErrDuplicateEntry))
			return b
		}
	}
	b.reg.taskMethods[key] = append(b.reg.taskMethods[key], htn.TaskMethod{Name: method, Fn: fn})
	return b
}

// UnigoalMethod appends a decomposition method for a goal predicate.
func (b *Builder) UnigoalMethod(predicate, method string, fn htn.UnigoalMethodFunc) *Builder {
	key := canonicalKey(predicate)
	if key == "" || strings.TrimSpace(method) == "" {
		b.errs = append(b.errs, fmt.Errorf("unigoal method %q/%q: %w", predicate, method, ErrEmptyName))
		return b
	}
	for _, m := range b.reg.unigoalMethods[key] {
		if m.Name == method {
			b.errs = append(b.errs, fmt.Errorf("predicate %q method %q: %w", key, method, ErrDuplicateEntry))
			return b
		}
	}
	b.reg.unigoalMethods[key] = append(b.reg.unigoalMethods[key], htn.UnigoalMethod{Name: method, Fn: fn})
	return b
}

// MultigoalMethod appends a domain-wide multigoal method.
func (b *Builder) MultigoalMethod(method string, fn htn.MultigoalMethodFunc) *Builder {
	if strings.TrimSpace(method) == "" {
		b.errs = append(b.errs, fmt.Errorf("multigoal method: %w", ErrEmptyName))
		return b
	}
	for _, m := range b.reg.multigoalMethods {
		if m.Name == method {
			b.errs = append(b.errs, fmt.Errorf("multigoal method %q: %w", method, ErrDuplicateEntry))
			return b
		}
	}
	b.reg.multigoalMethods = append(b.reg.multigoalMethods, htn.MultigoalMethod{Name: method, Fn: fn})
	return b
}

// Build returns the immutable registry, or the accumulated registration
// errors. The builder must not be reused after Build.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	reg := b.reg
	b.reg = nil
	return reg, nil
}
