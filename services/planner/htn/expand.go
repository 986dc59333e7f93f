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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// Plan builds a fully expanded solution tree for the todo list.
//
// Description:
//
//	Creates a tree whose root wraps the todo list, attaches one child per
//	todo, and expands every node depth-first until each leaf is either a
//	primitive action or a goal/multigoal recognized as satisfied. Method
//	selection is first-applicable: methods are tried in declared order and
//	the first non-blacklisted method that does not error wins.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	dom - Action/method registry. Must not be nil.
//	initial - Initial world state. Must not be nil; Plan works on a clone.
//	todos - Top-level todo list. May be empty (trivial success).
//	opts - Options; nil uses DefaultOptions().
//
// Outputs:
//
//	*Tree - The expanded solution tree.
//	error - PlanningError when a node exhausts its methods, or a limit /
//	  cancellation error.
func Plan(ctx context.Context, dom Domain, initial *state.State, todos []Todo, opts *Options) (*Tree, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if dom == nil || initial == nil {
		return nil, ErrInvalidInput
	}
	o := opts.normalize()
	initInstruments(o.Logger)

	ctx, span := tracer.Start(ctx, "htn.Plan",
		trace.WithAttributes(attribute.Int("htn.todo_count", len(todos))),
	)
	defer span.End()

	t := NewTree(initial.Clone())
	t.ExpandRoot(todos)
	span.SetAttributes(attribute.String("htn.session_id", t.SessionID))

	e := &expander{domain: dom, opts: o, logger: o.Logger.With(slog.String("session_id", t.SessionID))}
	if err := e.expandAll(ctx, t, t.Root()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("htn.node_count", t.Len()))
	span.SetStatus(codes.Ok, "")
	if o.Verbose >= 1 {
		e.logger.Info("plan built",
			slog.Int("nodes", t.Len()),
			slog.Int("actions", len(Linearize(t))),
		)
	}
	return t, nil
}

// expander applies the node-expansion rules of the planner. The executor
// reuses the same expander for re-expansion after backtracking, so method
// re-selection follows exactly the planning-time rules.
type expander struct {
	domain Domain
	opts   *Options
	logger *slog.Logger
}

// expandAll expands the subtree rooted at from, depth-first in child order,
// until every leaf is terminal.
func (e *expander) expandAll(ctx context.Context, t *Tree, from NodeID) error {
	primitives := countActionLeaves(t)

	stack := []NodeID{from}
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		wasPrimitive := t.Node(id) != nil && t.Node(id).Primitive
		if err := e.expandNode(ctx, t, id); err != nil {
			return err
		}

		n := t.Node(id)
		if n == nil {
			continue
		}
		if n.Primitive && !wasPrimitive && n.Task.Kind == TodoAction {
			primitives++
			if primitives > e.opts.MaxPlanLength {
				return fmt.Errorf("%w: %d", ErrMaxLengthExceeded, e.opts.MaxPlanLength)
			}
		}

		// Reverse push so children are processed left to right.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return nil
}

// expandNode applies the single-node expansion rules. Expanding a node that
// is already expanded or primitive is a no-op.
func (e *expander) expandNode(ctx context.Context, t *Tree, id NodeID) error {
	n := t.Node(id)
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if n.Expanded || n.Primitive {
		return nil
	}
	if n.Depth > e.opts.MaxDepth {
		return fmt.Errorf("%w: node %d at depth %d", ErrMaxDepthExceeded, id, n.Depth)
	}

	if inst.expansions != nil {
		inst.expansions.Add(ctx, 1)
	}

	switch n.Task.Kind {
	case TodoRoot:
		// The root is expanded by ExpandRoot; nothing to do here.
		n.Expanded = true
		return nil

	case TodoAction:
		n.Expanded = true
		n.Primitive = true
		return nil

	case TodoGoal:
		g := n.Task.Goal
		candidates := unigoalCandidates(e.domain.LookupUnigoalMethods(g.Predicate), n.State, g)
		return e.tryMethods(ctx, t, n, candidates)

	case TodoTask:
		candidates := taskCandidates(e.domain.LookupTaskMethods(n.Task.Name), n.State, n.Task.Args)
		return e.tryMethods(ctx, t, n, candidates)

	case TodoMultigoal:
		if n.Task.MultigoalSatisfied(n.State) {
			n.Expanded = true
			n.Primitive = true
			if e.opts.Verbose >= 2 {
				e.logger.Debug("multigoal already satisfied", slog.String("node", n.Task.String()))
			}
			return nil
		}
		methods := e.domain.LookupMultigoalMethods()
		if len(methods) == 0 {
			// Default expansion: one child goal per unsatisfied triple,
			// in the multigoal's original relative order. No method name is
			// recorded: there is no alternative to blacklist, so failure
			// attribution walks past this node.
			for _, g := range n.Task.UnsatisfiedGoals(n.State) {
				t.addNode(n.ID, Todo{Kind: TodoGoal, Goal: g}, n.State)
			}
			n.Expanded = true
			return nil
		}
		return e.tryMethods(ctx, t, n, multigoalCandidates(methods, n.State, n.Task.Goals))

	default:
		return fmt.Errorf("%w: unknown todo kind %q", ErrInvalidInput, n.Task.Kind)
	}
}

// candidate is one decomposition method, closed over its arguments.
type candidate struct {
	name   string
	invoke func() ([]Todo, error)
}

func taskCandidates(methods []TaskMethod, s *state.State, args []string) []candidate {
	out := make([]candidate, len(methods))
	for i, m := range methods {
		fn := m.Fn
		out[i] = candidate{name: m.Name, invoke: func() ([]Todo, error) {
			return safeDecompose(func() ([]Todo, error) { return fn(s, args) })
		}}
	}
	return out
}

func unigoalCandidates(methods []UnigoalMethod, s *state.State, g Goal) []candidate {
	out := make([]candidate, len(methods))
	for i, m := range methods {
		fn := m.Fn
		out[i] = candidate{name: m.Name, invoke: func() ([]Todo, error) {
			return safeDecompose(func() ([]Todo, error) { return fn(s, g.Subject, g.Value) })
		}}
	}
	return out
}

func multigoalCandidates(methods []MultigoalMethod, s *state.State, goals []Goal) []candidate {
	out := make([]candidate, len(methods))
	for i, m := range methods {
		fn := m.Fn
		out[i] = candidate{name: m.Name, invoke: func() ([]Todo, error) {
			return safeDecompose(func() ([]Todo, error) { return fn(s, goals) })
		}}
	}
	return out
}

// tryMethods implements first-applicable-method selection: candidates are
// consulted in declared order, skipping this node's blacklist; an erroring
// candidate is blacklisted at the node and the next one is tried. The first
// success wins, even if it later fails downstream (backtracking handles
// that). Exhaustion is a planning failure for the node.
func (e *expander) tryMethods(ctx context.Context, t *Tree, n *Node, candidates []candidate) error {
	for _, c := range candidates {
		if n.MethodBlacklisted(c.name) {
			continue
		}
		if inst.methodAttempts != nil {
			inst.methodAttempts.Add(ctx, 1)
		}
		if e.opts.Verbose >= 2 {
			e.logger.Debug("trying method",
				slog.String("node", n.Task.String()),
				slog.String("method", c.name),
			)
		}

		subtodos, err := c.invoke()
		if err != nil {
			n.BlacklistMethod(c.name)
			if e.opts.Verbose >= 1 {
				e.logger.Warn("method failed, blacklisted at node",
					slog.String("node", n.Task.String()),
					slog.String("method", c.name),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if len(subtodos) == 0 {
			// Already achieved; the node is a satisfied terminal.
			n.Expanded = true
			n.Primitive = true
			return nil
		}

		for _, todo := range subtodos {
			t.addNode(n.ID, todo, n.State)
		}
		n.Expanded = true
		n.MethodTried = c.name
		return nil
	}

	t.Commands.RecordMethodExhaustion(n.Task.Key())
	return &PlanningError{Node: n.ID, Task: n.Task, Err: ErrNoMethods}
}

// safeDecompose converts a method panic into an ordinary error so a broken
// method is just another blacklisting candidate, never a process fault.
func safeDecompose(fn func() ([]Todo, error)) (todos []Todo, err error) {
	defer func() {
		if r := recover(); r != nil {
			todos = nil
			err = fmt.Errorf("method panicked: %v", r)
		}
	}()
	return fn()
}

// countActionLeaves counts primitive action leaves currently in the tree.
func countActionLeaves(t *Tree) int {
	n := 0
	for _, id := range t.Subtree(t.Root()) {
		node := t.Node(id)
		if node.Primitive && node.Task.Kind == TodoAction {
			n++
		}
	}
	return n
}
