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

// Phase 3: projection pushdown (SPEC_FULL §4.5).

package optimizer

import "coreql/internal/plan"

// ProjectionPushdown propagates the set of columns actually consumed by
// the plan down to every Scan, narrowing Scan.ColumnMask so the
// connector (or the physical Scan operator) never reads a column nobody
// asked for. It runs the whole-tree propagation once, from the root,
// since "what a Scan needs" depends on every ancestor between it and the
// root — not just its immediate parent, which is all a single-node
// Strategy.Apply otherwise sees.
type ProjectionPushdown struct{}

func (ProjectionPushdown) Name() string { return "ProjectionPushdown" }

func (ProjectionPushdown) Apply(a *plan.Arena, id plan.NodeID) bool {
	if id != a.Root() {
		return false
	}
	changed := false
	propagateColumns(a, id, map[string]bool{}, &changed)
	return changed
}

// propagateColumns walks down from id, carrying the set of column names
// something above id needs out of it. need == nil means "unrestricted"
// (a `SELECT *` or equivalent is in play above this point) and disables
// masking for every Scan beneath it.
func propagateColumns(a *plan.Arena, id plan.NodeID, need map[string]bool, changed *bool) {
	if id == 0 {
		return
	}
	n := a.Node(id)

	switch n.Kind {
	case plan.ScanKind:
		if need == nil {
			if n.ColumnMask != nil {
				n.ColumnMask = nil
				*changed = true
			}
			return
		}
		mask := sortedSetKeys(need)
		if !equalStringSlices(n.ColumnMask, mask) {
			n.ColumnMask = mask
			*changed = true
		}

	case plan.ProjectKind:
		hasStar := false
		childNeed := map[string]bool{}
		for _, p := range n.Projections {
			if p.Star {
				hasStar = true
				continue
			}
			columnsIn(p.Expr, childNeed)
		}
		if hasStar {
			propagateColumns(a, n.Children[0], nil, changed)
		} else {
			propagateColumns(a, n.Children[0], childNeed, changed)
		}

	case plan.FilterKind:
		childNeed := cloneSet(need)
		if childNeed != nil {
			columnsIn(n.Predicate, childNeed)
		}
		propagateColumns(a, n.Children[0], childNeed, changed)

	case plan.JoinKind:
		childNeed := cloneSet(need)
		if childNeed != nil {
			columnsIn(n.On, childNeed)
			// An Unnest leaf's list expression is evaluated against the
			// other child's rows, so its columns are needed from there.
			for _, c := range n.Children {
				if cn := a.Node(c); cn.Kind == plan.UnnestKind {
					columnsIn(cn.UnnestExpr, childNeed)
				}
			}
		}
		// Both sides see the combined requirement: without a resolved
		// schema per relation we can't split the set by side, so a column
		// needed by only one side is also requested from the other; a
		// Scan drops mask names its relation does not have.
		propagateColumns(a, n.Children[0], cloneSet(childNeed), changed)
		propagateColumns(a, n.Children[1], cloneSet(childNeed), changed)

	case plan.AggregateKind:
		childNeed := map[string]bool{}
		for _, g := range n.GroupBy {
			columnsIn(g, childNeed)
		}
		for _, agg := range n.Aggs {
			columnsIn(agg.Expr, childNeed)
		}
		propagateColumns(a, n.Children[0], childNeed, changed)

	case plan.SortKind:
		childNeed := cloneSet(need)
		if childNeed != nil {
			for _, o := range n.OrderBy {
				columnsIn(o.Expr, childNeed)
			}
		}
		propagateColumns(a, n.Children[0], childNeed, changed)

	case plan.UnnestKind:
		// A leaf (plan.Build gives it no children); the columns its list
		// expression reads are requested from its join sibling above.

	default:
		// Limit/Offset/Distinct/Union/Intersect/Except/Cte/SubqueryAlias/
		// Explain: the requirement passes through unchanged.
		for _, c := range n.Children {
			propagateColumns(a, c, cloneSet(need), changed)
		}
	}
}

func cloneSet(s map[string]bool) map[string]bool {
	if s == nil {
		return nil
	}
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func sortedSetKeys(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
