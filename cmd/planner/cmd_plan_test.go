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
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianPlan/pkg/logging"
	"github.com/AleutianAI/AleutianPlan/services/planner/config"
	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
)

const cliDomainYAML = `
name: blocks
actions:
  - name: pickup
    effects:
      - predicate: holding
        subject: arm
        value: "true"
task_methods:
  - task: fetch
    name: pickup_direct
    subtasks:
      - action: pickup
        args: ["$0"]
`

const cliProblemYAML = `
name: fetch_block
facts:
  - predicate: pos
    subject: a
    value: table
todos:
  - task: fetch
    args: ["a"]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlanProblem(t *testing.T) {
	cfg = config.Default()
	dir := t.TempDir()
	domainPath := writeFile(t, dir, "domain.yaml", cliDomainYAML)
	problemPath := writeFile(t, dir, "problem.yaml", cliProblemYAML)

	logger := logging.New(logging.Config{Quiet: true})
	defer logger.Close()

	tree, reg, initial, err := planProblem(context.Background(), domainPath, problemPath, logger)
	if err != nil {
		t.Fatalf("planProblem() error = %v", err)
	}
	if reg == nil || initial == nil {
		t.Fatal("expected registry and initial state")
	}

	plan := htn.Linearize(tree)
	if len(plan) != 1 {
		t.Fatalf("expected 1 action, got %d", len(plan))
	}
	if plan[0].Task.Name != "pickup" || plan[0].Task.Args[0] != "a" {
		t.Errorf("unexpected action %v", plan[0].Task)
	}
}

func TestPlanProblem_MissingFiles(t *testing.T) {
	cfg = config.Default()
	logger := logging.New(logging.Config{Quiet: true})
	defer logger.Close()

	_, _, _, err := planProblem(context.Background(), "/nope/domain.yaml", "/nope/problem.yaml", logger)
	if err == nil {
		t.Fatal("expected error for missing domain file")
	}
}
