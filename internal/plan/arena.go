// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plan

import (
	"fmt"
	"strings"

	"coreql/pkg/cqlerr"
)

// Arena owns every Node of one plan; Nodes reference each other only by
// NodeID, so a rewrite can replace a Node's contents in place without
// invalidating other nodes' edges to it (spec §4.4/§9).
type Arena struct {
	nodes []Node // index 0 is reserved/invalid
	root  NodeID
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{nodes: make([]Node, 1)} // nodes[0] reserved
}

// Add inserts n, assigns it a fresh NodeID, and returns that ID.
func (a *Arena) Add(n Node) NodeID {
	id := NodeID(len(a.nodes))
	n.ID = id
	a.nodes = append(a.nodes, n)
	return id
}

// Node returns a pointer to the Node addressed by id, for in-place
// mutation by optimizer strategies. Panics on an invalid id since every
// caller obtains ids from the Arena itself.
func (a *Arena) Node(id NodeID) *Node {
	if id <= 0 || int(id) >= len(a.nodes) {
		panic(fmt.Sprintf("plan: invalid NodeID %d", id))
	}
	return &a.nodes[id]
}

// SetRoot records the plan's root node.
func (a *Arena) SetRoot(id NodeID) { a.root = id }

// Root returns the plan's root node id.
func (a *Arena) Root() NodeID { return a.root }

// Edges returns the (parent, child, slot) triples implied by every node's
// Children slice.
func (a *Arena) Edges() []Edge {
	var edges []Edge
	for i := 1; i < len(a.nodes); i++ {
		n := &a.nodes[i]
		for slot, c := range n.Children {
			edges = append(edges, Edge{Parent: n.ID, Child: c, Slot: slot})
		}
	}
	return edges
}

// Walk visits every node reachable from root in pre-order, calling visit
// once per node. visit returning false stops the walk.
func (a *Arena) Walk(root NodeID, visit func(*Node) bool) {
	if root == 0 {
		return
	}
	n := a.Node(root)
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		a.Walk(c, visit)
	}
}

// Explain renders the plan rooted at a.Root() as an indented text tree,
// annotated with rule-application counters when counters is non-nil
// (normally supplied by the optimizer after running its pipeline). A Scan
// line shows the relation, the column mask and any temporal range; a
// filter pushed into the Scan is not shown.
func (a *Arena) Explain(counters map[string]int) string {
	var b strings.Builder
	a.explainNode(&b, a.root, 0)
	if len(counters) > 0 {
		b.WriteString("\nRule applications:\n")
		for _, name := range sortedKeys(counters) {
			fmt.Fprintf(&b, "  %s: %d\n", name, counters[name])
		}
	}
	return b.String()
}

func (a *Arena) explainNode(b *strings.Builder, id NodeID, depth int) {
	if id == 0 {
		return
	}
	n := a.Node(id)
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(describe(n))
	b.WriteByte('\n')
	for _, c := range n.Children {
		a.explainNode(b, c, depth+1)
	}
}

func describe(n *Node) string {
	switch n.Kind {
	case ScanKind:
		cols := "*"
		if len(n.ColumnMask) > 0 {
			cols = strings.Join(n.ColumnMask, ",")
		}
		rng := ""
		if n.TemporalRange != nil {
			rng = fmt.Sprintf(" for=%s", n.TemporalRange.String())
		}
		return fmt.Sprintf("Scan(%s cols=[%s]%s)", n.Relation, cols, rng)
	case JoinKind:
		return fmt.Sprintf("Join(%s)", n.JoinVariant)
	case LimitKind:
		return fmt.Sprintf("Limit(%d fused=%v)", n.Count, n.FuseLimit)
	case OffsetKind:
		return fmt.Sprintf("Offset(%d)", n.Count)
	case CteKind:
		return fmt.Sprintf("Cte(%s)", n.CteName)
	case SubqueryAliasKind:
		return fmt.Sprintf("SubqueryAlias(%s)", n.SubAlias)
	default:
		return n.Kind.String()
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// ValidateAcyclic reports an InternalError if the plan rooted at root
// contains a cycle; the arena's append-only NodeID scheme makes cycles
// impossible to construct accidentally, but a defensive check is cheap
// and guards against a future rewrite that mutates Children incorrectly.
func (a *Arena) ValidateAcyclic(root NodeID) error {
	visiting := make(map[NodeID]bool)
	var visit func(NodeID) error
	visit = func(id NodeID) error {
		if id == 0 {
			return nil
		}
		if visiting[id] {
			return cqlerr.New(cqlerr.InternalError, "plan: cycle detected at node %d", id)
		}
		visiting[id] = true
		for _, c := range a.Node(id).Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		visiting[id] = false
		return nil
	}
	return visit(root)
}
