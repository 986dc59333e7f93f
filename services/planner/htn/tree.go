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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlan/services/planner/state"
)

// NodeID addresses a node in the tree arena. IDs are stable integers,
// allocated monotonically and never reused within a planning session, so a
// regenerated subtree is always distinguishable from the one it replaced.
type NodeID int

// NoNode is the nil node id (the root's parent).
const NoNode NodeID = -1

// rootMethod is the sentinel method name recorded on the root after its
// expansion into one child per todo. It is never eligible for blacklisting
// and is skipped when attributing a failure to an ancestor method.
const rootMethod = "<root-expansion>"

// Node is one entry of the solution tree.
//
// Structural fields (Parent, Children) are maintained exclusively by Tree
// methods; callers may read them freely but must not rewire them directly.
type Node struct {
	// ID uniquely identifies this node within its tree.
	ID NodeID

	// Task is the todo this node decomposes or executes.
	Task Todo

	// Parent is the owning node, NoNode for the root.
	Parent NodeID

	// Children holds child ids in decomposition order. The order is the
	// authoritative execution order and is never re-sorted.
	Children []NodeID

	// State is the world snapshot as of reaching this node, taken before
	// any expansion. Re-expansion during backtracking starts from it.
	State *state.State

	// Depth is the distance from the root.
	Depth int

	// Expanded is true once children (or terminal status) are decided.
	Expanded bool

	// Primitive marks a terminal leaf: a directly executable action, or a
	// goal/multigoal recognized as already satisfied.
	Primitive bool

	// MethodTried names the decomposition method that produced Children.
	// Empty while unexpanded, for primitives, and after a branch is
	// abandoned by backtracking.
	MethodTried string

	// BlacklistedMethods holds method names forbidden at this node only.
	BlacklistedMethods map[string]bool
}

// BlacklistMethod forbids a method name at this node for the rest of the
// session.
func (n *Node) BlacklistMethod(name string) {
	if n.BlacklistedMethods == nil {
		n.BlacklistedMethods = make(map[string]bool)
	}
	n.BlacklistedMethods[name] = true
}

// MethodBlacklisted reports whether the method is forbidden at this node.
func (n *Node) MethodBlacklisted(name string) bool {
	return n.BlacklistedMethods[name]
}

// Tree is the solution tree: an arena of nodes addressed by stable ids,
// plus the global command blacklist shared across the whole session.
//
// Thread Safety: Not safe for concurrent use. One logical thread of control
// owns a tree at a time; planning and execution are single-threaded.
type Tree struct {
	// SessionID labels one planning/execution session in logs and traces.
	SessionID string

	// CreatedAt is the tree creation time, Unix milliseconds UTC.
	CreatedAt int64

	root   NodeID
	nodes  map[NodeID]*Node
	nextID NodeID

	// Commands holds the global command blacklist and its diagnostics.
	Commands *CommandBlacklist
}

// NewTree creates a tree containing only a root node wrapping the todo list,
// unexpanded. Call ExpandRoot (or Plan, which does it for you) to attach one
// child per todo.
//
// Inputs:
//
//	initial - World state snapshot for the root. Must not be nil.
//
// Outputs:
//
//	*Tree - The created tree, never nil.
func NewTree(initial *state.State) *Tree {
	t := &Tree{
		SessionID: uuid.NewString()[:12],
		CreatedAt: time.Now().UnixMilli(),
		nodes:     make(map[NodeID]*Node),
		Commands:  NewCommandBlacklist(),
	}
	t.root = t.addNode(NoNode, newRootTodo(), initial)
	return t
}

// Root returns the root node id.
func (t *Tree) Root() NodeID { return t.root }

// Node returns the node for id, or nil if the id is unknown (e.g., it
// belonged to a discarded subtree).
func (t *Tree) Node(id NodeID) *Node { return t.nodes[id] }

// Len returns the number of live nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// addNode allocates a fresh id and links the node under parent.
func (t *Tree) addNode(parent NodeID, task Todo, st *state.State) NodeID {
	id := t.nextID
	t.nextID++

	n := &Node{
		ID:     id,
		Task:   task,
		Parent: parent,
		State:  st,
	}
	if p := t.nodes[parent]; p != nil {
		n.Depth = p.Depth + 1
		p.Children = append(p.Children, id)
	}
	t.nodes[id] = n
	return id
}

// AddChild appends a child with the given task under parent, inheriting the
// state snapshot passed in. Returns the new id.
func (t *Tree) AddChild(parent NodeID, task Todo, st *state.State) (NodeID, error) {
	if t.nodes[parent] == nil {
		return NoNode, fmt.Errorf("%w: %d", ErrUnknownNode, parent)
	}
	return t.addNode(parent, task, st), nil
}

// ExpandRoot attaches one child per todo, in list order, and marks the root
// expanded with the sentinel root method. An empty todo list leaves the root
// expanded with zero children.
func (t *Tree) ExpandRoot(todos []Todo) {
	root := t.nodes[t.root]
	if root.Expanded {
		return
	}
	for _, todo := range todos {
		t.addNode(t.root, todo, root.State)
	}
	root.Expanded = true
	root.MethodTried = rootMethod
}

// DiscardSubtree removes every descendant of id and resets the node to
// unexpanded: children cleared, method attribution cleared. The node's own
// state snapshot and blacklist are kept, so a subsequent expansion excludes
// the abandoned method and starts from the pre-expansion state.
//
// Nodes outside the subtree are untouched.
func (t *Tree) DiscardSubtree(id NodeID) error {
	n := t.nodes[id]
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	for _, c := range n.Children {
		t.removeRecursive(c)
	}
	n.Children = nil
	n.Expanded = false
	n.Primitive = false
	n.MethodTried = ""
	return nil
}

func (t *Tree) removeRecursive(id NodeID) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	for _, c := range n.Children {
		t.removeRecursive(c)
	}
	delete(t.nodes, id)
}

// Subtree returns ids of id and all its descendants in pre-order.
func (t *Tree) Subtree(id NodeID) []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(cur NodeID) {
		n := t.nodes[cur]
		if n == nil {
			return
		}
		out = append(out, cur)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(id)
	return out
}

// FindByTask returns the first node (pre-order) whose task equals the given
// todo exactly, NoNode if absent. Used by the executor to attribute an
// action failure when it only knows the failed command.
func (t *Tree) FindByTask(task Todo) NodeID {
	for _, id := range t.Subtree(t.root) {
		if t.nodes[id].Task.Equal(task) {
			return id
		}
	}
	return NoNode
}

// AttributableAncestor walks the parent chain from id upward and returns the
// nearest ancestor carrying a real method attribution. Ancestors without a
// tried method and the synthetic root are skipped. Returns NoNode when no
// ancestor owns the branch (e.g., a bare action inserted at top level).
func (t *Tree) AttributableAncestor(id NodeID) NodeID {
	n := t.nodes[id]
	if n == nil {
		return NoNode
	}
	for cur := n.Parent; cur != NoNode; {
		p := t.nodes[cur]
		if p == nil {
			return NoNode
		}
		if p.MethodTried != "" && p.MethodTried != rootMethod {
			return cur
		}
		cur = p.Parent
	}
	return NoNode
}

// Validate checks structural integrity: every non-root node's parent exists
// and lists it exactly once, the root has no parent, and the tree is
// acyclic (guaranteed by the parent walk terminating at the root).
func (t *Tree) Validate() error {
	for id, n := range t.nodes {
		if id == t.root {
			if n.Parent != NoNode {
				return fmt.Errorf("root %d has parent %d", id, n.Parent)
			}
			continue
		}
		p := t.nodes[n.Parent]
		if p == nil {
			return fmt.Errorf("node %d: parent %d not in tree", id, n.Parent)
		}
		seen := 0
		for _, c := range p.Children {
			if c == id {
				seen++
			}
		}
		if seen != 1 {
			return fmt.Errorf("node %d appears %d times in parent %d children", id, seen, n.Parent)
		}
	}
	for _, n := range t.nodes {
		for _, c := range n.Children {
			child := t.nodes[c]
			if child == nil {
				return fmt.Errorf("node %d: child %d not in tree", n.ID, c)
			}
			if child.Parent != n.ID {
				return fmt.Errorf("node %d: child %d claims parent %d", n.ID, c, child.Parent)
			}
		}
		if n.Primitive && len(n.Children) > 0 {
			return fmt.Errorf("primitive node %d has children", n.ID)
		}
	}
	return nil
}

// Render returns an indented dump of the tree for diagnostics.
func (t *Tree) Render() string {
	var b strings.Builder
	var walk func(NodeID, int)
	walk = func(id NodeID, depth int) {
		n := t.nodes[id]
		if n == nil {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, "[%d] %s", n.ID, n.Task)
		if n.Primitive {
			b.WriteString(" (primitive)")
		}
		if n.MethodTried != "" {
			fmt.Fprintf(&b, " via %s", n.MethodTried)
		}
		if len(n.BlacklistedMethods) > 0 {
			fmt.Fprintf(&b, " [blacklisted: %d]", len(n.BlacklistedMethods))
		}
		b.WriteString("\n")
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(t.root, 0)
	return b.String()
}
