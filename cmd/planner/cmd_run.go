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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
)

var (
	runMaxRetries int
	runJSON       bool

	runCmd = &cobra.Command{
		Use:   "run <domain.yaml> <problem.yaml>",
		Short: "Plan and execute, printing the action trace",
		Long: `Plans the problem's todo list, then executes the resulting plan
against the initial state. Failed actions trigger backtracking within
the retry budget; the trace shows only actions that actually ran.`,
		Args: cobra.ExactArgs(2),
		RunE: runRunCommand,
	}
)

func init() {
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", -1, "override the backtracking retry budget")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit the execution report as JSON")
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	logger, err := newLogger("planner")
	if err != nil {
		return err
	}
	defer logger.Close()

	tree, reg, initial, err := planProblem(cmd.Context(), args[0], args[1], logger)
	if err != nil {
		return err
	}

	opts := cfg.PlannerOptions()
	opts.Logger = logger.Slog()
	if runMaxRetries >= 0 {
		opts.MaxRetries = runMaxRetries
	}

	res, execErr := htn.Execute(cmd.Context(), reg, initial, tree, opts)
	if execErr != nil && res == nil {
		return fmt.Errorf("executing: %w", execErr)
	}

	if runJSON {
		trace := make([]map[string]any, len(res.Trace))
		for i, te := range res.Trace {
			trace[i] = map[string]any{
				"name":        te.Action.Name,
				"args":        te.Action.Args,
				"duration_ms": float64(te.Duration.Microseconds()) / 1000.0,
			}
		}
		report := map[string]any{
			"session_id":   res.SessionID,
			"success":      res.Success,
			"retries_used": res.RetriesUsed,
			"trace":        trace,
		}
		if !res.Success {
			report["failure_reason"] = res.FailureReason
		}
		if res.FinalState != nil {
			report["final_state"] = res.FinalState.Facts()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("session %s\n", res.SessionID)
		for i, te := range res.Trace {
			fmt.Printf("  %2d. %s (%.2fms)\n", i+1, te.Action, float64(te.Duration.Microseconds())/1000.0)
		}
		if res.Success {
			fmt.Printf("success: %d actions, %d retries\n", len(res.Trace), res.RetriesUsed)
		} else {
			fmt.Printf("failed after %d retries: %s\n", res.RetriesUsed, res.FailureReason)
		}
	}

	if !res.Success {
		os.Exit(1)
	}
	return nil
}
