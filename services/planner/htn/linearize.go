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

// LinearAction is one executable step of a linearized plan: the primitive
// action todo plus the id of the tree node it came from, so execution
// failures can be attributed without searching by task equality.
type LinearAction struct {
	Node NodeID `json:"node"`
	Task Todo   `json:"task"`
}

// Linearize extracts the ordered primitive-action sequence from the tree.
//
// Description:
//
//	Pre-order depth-first traversal following Children order; primitive
//	action leaves are emitted in the order visited. Satisfied goal and
//	multigoal terminals contribute nothing executable. The function is pure
//	and deterministic: iteration follows Children, never an unordered map,
//	so the same tree value always yields the same sequence.
func Linearize(t *Tree) []LinearAction {
	if t == nil {
		return nil
	}
	out := make([]LinearAction, 0)
	var walk func(NodeID)
	walk = func(id NodeID) {
		n := t.Node(id)
		if n == nil {
			return
		}
		if n.Primitive && n.Task.Kind == TodoAction {
			out = append(out, LinearAction{Node: id, Task: n.Task})
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}
