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

// Phase 5: specialized fusions (SPEC_FULL §4.5).

package optimizer

import "coreql/internal/plan"

// DistinctPushdownIntoUnnest moves a DISTINCT below a non-OUTER UNNEST,
// deduping the driving rows before they're expanded rather than after.
// This is only sound when distinctness doesn't depend on the unnested
// column itself; the planner has no per-column key tracking to verify
// that in general, so this fires on the shape alone. Queries that rely
// on the unnested value to distinguish otherwise-identical rows should
// avoid relying on this rewrite.
type DistinctPushdownIntoUnnest struct{}

func (DistinctPushdownIntoUnnest) Name() string { return "DistinctPushdownIntoUnnest" }

func (DistinctPushdownIntoUnnest) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.DistinctKind {
		return false
	}
	child := a.Node(n.Children[0])
	if child.Kind != plan.UnnestKind || child.Outer {
		return false
	}
	grandchild := child.Children[0]
	pushedDistinct := a.Add(plan.Node{Kind: plan.DistinctKind, Children: []plan.NodeID{grandchild}})
	savedID := n.ID
	*n = *child
	n.ID = savedID
	n.Children = []plan.NodeID{pushedDistinct}
	return true
}

// SortLimitFusion recognizes `LIMIT k` (optionally with an intervening
// `OFFSET m`) directly above a Sort and fuses them: the physical builder
// reads Sort.FuseLimit/Sort.Count to run a bounded heap-select (top-k)
// instead of a full sort (SPEC_FULL §4.6).
type SortLimitFusion struct{}

func (SortLimitFusion) Name() string { return "SortLimitFusion" }

func (SortLimitFusion) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.LimitKind {
		return false
	}
	child := a.Node(n.Children[0])
	switch child.Kind {
	case plan.SortKind:
		return fuseSortLimit(child, n.Count, 0)
	case plan.OffsetKind:
		if len(child.Children) == 0 {
			return false
		}
		grandchild := a.Node(child.Children[0])
		if grandchild.Kind != plan.SortKind {
			return false
		}
		return fuseSortLimit(grandchild, n.Count, child.Count)
	}
	return false
}

func fuseSortLimit(sort *plan.Node, limit, offset int64) bool {
	k := offset + limit
	if sort.FuseLimit && sort.Count == k {
		return false
	}
	sort.FuseLimit = true
	sort.Count = k
	return true
}

// LimitPushdown carries a LIMIT (plus any OFFSET) down through pure
// passthrough Project nodes into Scan.PushedLimit, provided nothing that
// could change the row count — a Filter, Join, or Aggregate — sits in
// between. (A Sort in between is handled by SortLimitFusion instead.)
type LimitPushdown struct{}

func (LimitPushdown) Name() string { return "LimitPushdown" }

func (LimitPushdown) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.LimitKind {
		return false
	}
	return pushLimitDown(a, n.Children[0], n.Count)
}

func pushLimitDown(a *plan.Arena, id plan.NodeID, k int64) bool {
	n := a.Node(id)
	switch n.Kind {
	case plan.ProjectKind:
		return pushLimitDown(a, n.Children[0], k)
	case plan.OffsetKind:
		return pushLimitDown(a, n.Children[0], k+n.Count)
	case plan.ScanKind:
		if n.PushedLimit != nil && *n.PushedLimit <= k {
			return false
		}
		n.PushedLimit = &k
		return true
	default:
		return false
	}
}
