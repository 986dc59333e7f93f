// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package htn implements a Hierarchical Task Network planner and re-entrant
// executor.
//
// Planning decomposes a todo list (actions, tasks, goals, multigoals) into a
// solution tree whose leaves are primitive actions, using domain-supplied
// decomposition methods with first-applicable-method selection. Execution
// linearizes the tree depth-first and runs the actions against world state.
//
// When an action fails at run time the executor performs HTN backtracking:
// it finds the nearest ancestor whose decomposition method produced the
// failing branch, blacklists that method at that node only, regenerates just
// the affected subtree, and resumes execution without replaying completed
// work. Actions with no owning method fall back to a session-global command
// blacklist. Recovery is bounded by a retry budget.
//
// The tree is an arena of nodes addressed by stable integer ids that are
// never reused within a session, so regenerated subtrees are always
// distinguishable from the branches they replaced. Control flow is
// single-threaded and synchronous throughout; one logical owner drives a
// tree at a time.
package htn
