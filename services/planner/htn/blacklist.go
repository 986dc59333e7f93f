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
	"sort"
	"time"
)

// CommandBlacklist is the session-global exclusion set for primitive
// commands, keyed by exact (name, args) identity. It is the recovery path of
// last resort: a command lands here only when no ancestor method can be
// blamed for its failure.
//
// Method blacklists are a different mechanism with different scope: they
// live per node (Node.BlacklistedMethods) and drive backtracking. The two
// sets are independent; see MethodExhaustions for the domain-wide method
// diagnostic counters.
type CommandBlacklist struct {
	commands map[string]blacklistEntry

	// MethodExhaustions counts, per method name, how many nodes exhausted
	// that method during the session. Diagnostic only: the per-node sets
	// remain authoritative for selection.
	MethodExhaustions map[string]int
}

type blacklistEntry struct {
	Task     Todo
	Failures int
	AddedAt  time.Time
}

// NewCommandBlacklist creates an empty blacklist.
func NewCommandBlacklist() *CommandBlacklist {
	return &CommandBlacklist{
		commands:          make(map[string]blacklistEntry),
		MethodExhaustions: make(map[string]int),
	}
}

// Add blacklists the exact command. Repeated adds bump the failure counter.
func (b *CommandBlacklist) Add(task Todo) {
	key := task.Key()
	e, ok := b.commands[key]
	if !ok {
		e = blacklistEntry{Task: task, AddedAt: time.Now()}
	}
	e.Failures++
	b.commands[key] = e
}

// Contains reports whether the exact command is blacklisted.
func (b *CommandBlacklist) Contains(task Todo) bool {
	_, ok := b.commands[task.Key()]
	return ok
}

// Failures returns how many times the command was reported failed.
func (b *CommandBlacklist) Failures(task Todo) int {
	return b.commands[task.Key()].Failures
}

// Len returns the number of blacklisted commands.
func (b *CommandBlacklist) Len() int { return len(b.commands) }

// Keys returns the blacklisted command keys in sorted order, for logs.
func (b *CommandBlacklist) Keys() []string {
	keys := make([]string, 0, len(b.commands))
	for k := range b.commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordMethodExhaustion notes that a node ran out of candidates for the
// given method name.
func (b *CommandBlacklist) RecordMethodExhaustion(method string) {
	b.MethodExhaustions[method]++
}
