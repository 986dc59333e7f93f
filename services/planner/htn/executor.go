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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// TraceEntry records one successfully executed action and the state it
// produced. The trace is chronological and is never rewritten: backtracking
// reorders future work, not completed work.
type TraceEntry struct {
	Action   Todo
	State    *state.State
	Duration time.Duration
}

// Result is the outcome of Execute. On failure it still carries the partial
// trace, so the caller can see exactly how far execution progressed.
type Result struct {
	SessionID     string
	Success       bool
	FinalState    *state.State
	Trace         []TraceEntry
	RetriesUsed   int
	FailureReason string
}

// Execute runs the solution tree's linearized plan against world state,
// repairing the tree on action failure.
//
// Description:
//
//	Drives the linearize -> execute -> backtrack -> re-linearize -> resume
//	loop. On an action failure the executor walks up from the failing node
//	to the nearest ancestor with a tried method, blacklists that method at
//	that node only, discards the subtree, re-expands it with planning-time
//	rules, and resumes without replaying completed actions. When no
//	ancestor owns the branch, the exact command is blacklisted globally
//	instead. Recovery is bounded by Options.MaxRetries.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	dom - Action/method registry. Must not be nil.
//	initial - World state to execute against. Nil uses the tree root's
//	  planning snapshot.
//	t - A tree produced by Plan. Must not be nil. Repaired in place.
//	opts - Options; nil uses DefaultOptions().
//
// Outputs:
//
//	*Result - Always non-nil when error is nil; on error it is still
//	  returned when partial progress was made.
//	error - ErrRetriesExhausted (wrapped) when the retry budget is spent,
//	  or an unrecoverable planning/structural error.
func Execute(ctx context.Context, dom Domain, initial *state.State, t *Tree, opts *Options) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if dom == nil || t == nil {
		return nil, ErrInvalidInput
	}
	o := opts.normalize()
	initInstruments(o.Logger)

	ctx, span := tracer.Start(ctx, "htn.Execute",
		trace.WithAttributes(
			attribute.String("htn.session_id", t.SessionID),
			attribute.Int("htn.node_count", t.Len()),
			attribute.Int("htn.max_retries", o.MaxRetries),
		),
	)
	defer span.End()

	if initial == nil {
		initial = t.Node(t.Root()).State
	}

	e := &executor{
		domain: dom,
		opts:   o,
		logger: o.Logger.With(slog.String("session_id", t.SessionID)),
	}
	res, err := e.run(ctx, t, initial.Clone())

	span.SetAttributes(attribute.Int("htn.retries_used", res.RetriesUsed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res, err
}

type executor struct {
	domain Domain
	opts   *Options
	logger *slog.Logger
}

// failedAction captures the first failure of one execution pass.
type failedAction struct {
	action LinearAction
	err    error
}

func (e *executor) run(ctx context.Context, t *Tree, cur *state.State) (*Result, error) {
	res := &Result{SessionID: t.SessionID}

	// Nodes whose action already executed successfully. Discarded subtrees
	// receive fresh ids, so a regenerated action is never skipped by
	// accident, and completed siblings are never replayed.
	executed := make(map[NodeID]bool)

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			res.FailureReason = "cancelled"
			return res, ctx.Err()
		default:
		}

		actions := Linearize(t)
		if inst.planLength != nil {
			inst.planLength.Record(ctx, int64(len(actions)))
		}

		fail := e.executePass(ctx, t, actions, &cur, executed, res)
		if fail == nil {
			res.Success = true
			res.FinalState = cur
			if e.opts.Verbose >= 1 {
				e.logger.Info("execution completed",
					slog.Int("actions", len(res.Trace)),
					slog.Int("retries", res.RetriesUsed),
					slog.Duration("duration", time.Since(start)),
				)
			}
			return res, nil
		}

		execErr := &ExecutionError{Action: fail.action.Task, Err: fail.err}
		if res.RetriesUsed >= e.opts.MaxRetries {
			res.FailureReason = fmt.Sprintf("retries exhausted after %d attempts: %v", res.RetriesUsed, execErr)
			return res, fmt.Errorf("%w: %v", ErrRetriesExhausted, execErr)
		}

		if err := e.backtrack(ctx, t, fail, executed); err != nil {
			res.FailureReason = err.Error()
			return res, err
		}
		res.RetriesUsed++
	}
}

// executePass executes the linearized sequence in order, skipping already
// completed nodes, and returns the first failure (nil when the pass ran to
// completion).
func (e *executor) executePass(
	ctx context.Context,
	t *Tree,
	actions []LinearAction,
	cur **state.State,
	executed map[NodeID]bool,
	res *Result,
) *failedAction {
	for _, a := range actions {
		if executed[a.Node] {
			continue
		}
		select {
		case <-ctx.Done():
			return &failedAction{action: a, err: ctx.Err()}
		default:
		}

		if t.Commands.Contains(a.Task) {
			return &failedAction{action: a, err: fmt.Errorf("%w: %s", ErrCommandBlacklist, a.Task.Key())}
		}

		fn, ok := e.domain.LookupAction(a.Task.Name)
		if !ok {
			return &failedAction{action: a, err: fmt.Errorf("%w: %s", ErrUnknownAction, a.Task.Name)}
		}

		actionStart := time.Now()
		next, err := invokeAction(fn, *cur, a.Task.Args)
		duration := time.Since(actionStart)

		if inst.actionLatency != nil {
			inst.actionLatency.Record(ctx, duration.Seconds(),
				metric.WithAttributes(attribute.String("action", a.Task.Name)),
			)
		}

		if err != nil {
			if inst.actionFailures != nil {
				inst.actionFailures.Add(ctx, 1,
					metric.WithAttributes(attribute.String("action", a.Task.Name)),
				)
			}
			if e.opts.Verbose >= 1 {
				e.logger.Warn("action failed",
					slog.String("action", a.Task.String()),
					slog.Duration("duration", duration),
					slog.String("error", err.Error()),
				)
			}
			return &failedAction{action: a, err: err}
		}

		*cur = next
		executed[a.Node] = true
		res.Trace = append(res.Trace, TraceEntry{Action: a.Task, State: next, Duration: duration})

		if e.opts.Verbose >= 3 {
			e.logger.Debug("action completed",
				slog.String("action", a.Task.String()),
				slog.Duration("duration", duration),
				slog.String("state", next.String()),
			)
		}
	}
	return nil
}

// backtrack repairs the tree after an action failure: local method blacklist
// and subtree regeneration when an owning method exists, global command
// blacklist otherwise.
func (e *executor) backtrack(ctx context.Context, t *Tree, fail *failedAction, executed map[NodeID]bool) error {
	if inst.backtracks != nil {
		inst.backtracks.Add(ctx, 1)
	}
	span := trace.SpanFromContext(ctx)

	anc := t.AttributableAncestor(fail.action.Node)
	if anc == NoNode {
		t.Commands.Add(fail.action.Task)
		e.logger.Warn("no owning method for failed action, command blacklisted globally",
			slog.String("action", fail.action.Task.Key()),
			slog.Int("blacklisted_commands", t.Commands.Len()),
		)
		span.AddEvent("command_blacklisted", trace.WithAttributes(
			attribute.String("action", fail.action.Task.Key()),
		))
		return nil
	}

	node := t.Node(anc)
	method := node.MethodTried
	node.BlacklistMethod(method)

	// Actions inside the abandoned subtree lose their completion marks;
	// their ids disappear with the subtree, and the regenerated branch is
	// planned fresh from the node's pre-expansion snapshot.
	for _, id := range t.Subtree(anc) {
		delete(executed, id)
	}
	if err := t.DiscardSubtree(anc); err != nil {
		return err
	}

	e.logger.Info("backtracking: method blacklisted at node, regenerating subtree",
		slog.Int("node", int(anc)),
		slog.String("task", node.Task.String()),
		slog.String("method", method),
		slog.String("failed_action", fail.action.Task.String()),
	)
	span.AddEvent("backtrack", trace.WithAttributes(
		attribute.Int("node", int(anc)),
		attribute.String("method", method),
	))

	exp := &expander{domain: e.domain, opts: e.opts, logger: e.logger}
	if err := exp.expandAll(ctx, t, anc); err != nil {
		return fmt.Errorf("backtracking cannot make progress: %w", err)
	}
	return nil
}

// invokeAction runs the action body, normalizing every failure shape into an
// error value: explicit errors pass through, a nil successor state without
// an error is a failure sentinel, and panics are recovered. Action failure
// is always data the executor can inspect, never a process-ending fault.
func invokeAction(fn ActionFunc, s *state.State, args []string) (out *state.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	out, err = fn(s, args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("action returned no state")
	}
	return out, nil
}
