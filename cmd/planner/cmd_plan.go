// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/pkg/logging"
	"github.com/AleutianAI/AleutianPlan/services/planner/domain"
	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

var (
	planShowTree bool
	planJSON     bool

	planCmd = &cobra.Command{
		Use:   "plan <domain.yaml> <problem.yaml>",
		Short: "Build a plan and print the action sequence",
		Long: `Loads a declarative domain and a problem file, expands the problem's
todo list into a solution tree, and prints the linearized plan.`,
		Args: cobra.ExactArgs(2),
		RunE: runPlanCommand,
	}
)

func init() {
	planCmd.Flags().BoolVar(&planShowTree, "tree", false, "also print the solution tree")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "emit the plan as JSON")
}

// planProblem loads the domain and problem files and expands the todos
// into a solution tree. Shared by the plan and run commands.
func planProblem(ctx context.Context, domainPath, problemPath string, logger *logging.Logger) (*htn.Tree, *domain.Registry, *state.State, error) {
	loader := domain.NewLoader(logger.Slog())

	reg, err := loader.LoadDomain(domainPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading domain: %w", err)
	}
	initial, todos, err := loader.LoadProblem(problemPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading problem: %w", err)
	}

	opts := cfg.PlannerOptions()
	opts.Logger = logger.Slog()

	tree, err := htn.Plan(ctx, reg, initial, todos, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("planning: %w", err)
	}
	return tree, reg, initial, nil
}

func runPlanCommand(cmd *cobra.Command, args []string) error {
	logger, err := newLogger("planner")
	if err != nil {
		return err
	}
	defer logger.Close()

	tree, _, _, err := planProblem(cmd.Context(), args[0], args[1], logger)
	if err != nil {
		return err
	}

	plan := htn.Linearize(tree)

	if planJSON {
		out := make([]map[string]any, len(plan))
		for i, la := range plan {
			out[i] = map[string]any{"name": la.Task.Name, "args": la.Task.Args}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"session_id": tree.SessionID,
			"plan":       out,
		})
	}

	fmt.Printf("session %s: %d actions\n", tree.SessionID, len(plan))
	for i, la := range plan {
		fmt.Printf("  %2d. %s\n", i+1, la.Task)
	}
	if planShowTree {
		fmt.Println()
		fmt.Print(tree.Render())
	}
	return nil
}
