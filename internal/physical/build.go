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

package physical

import (
	"fmt"
	"reflect"

	"coreql/internal/connector"
	"coreql/internal/plan"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
)

// BuildParams carries everything the Builder needs beyond the plan itself.
// It intentionally mirrors a subset of engine.QueryContext rather than
// importing that package directly — internal/engine imports
// internal/physical to drive a query, so the reverse import would cycle.
type BuildParams struct {
	Connectors             *connector.Registry
	Stats                  *stats.Collector
	MaxNestedLoopRows      int64
	BloomFalsePositiveRate float64
	Parallelism            int
}

// Build walks the logical plan rooted at rootID and instantiates the
// matching Operator tree. Callers that need to special-case EXPLAIN
// (rendering plan.Arena.Explain text instead of running the query)
// should check the node's Kind themselves before calling Build, then pass
// the Explain node's single child as rootID for EXPLAIN ANALYZE.
func Build(a *plan.Arena, rootID plan.NodeID, p BuildParams) (Operator, error) {
	b := &builder{arena: a, params: p}
	return b.build(rootID)
}

type builder struct {
	arena  *plan.Arena
	params BuildParams
}

func (b *builder) build(id plan.NodeID) (Operator, error) {
	n := b.arena.Node(id)
	switch n.Kind {
	case plan.ScanKind:
		return b.buildScan(n)
	case plan.ProjectKind:
		return b.buildProject(n)
	case plan.FilterKind:
		return b.buildFilter(n)
	case plan.JoinKind:
		return b.buildJoin(n)
	case plan.AggregateKind:
		return b.buildAggregate(n)
	case plan.SortKind:
		return b.buildSort(n)
	case plan.LimitKind:
		return b.buildLimit(n)
	case plan.OffsetKind:
		return b.buildOffset(n)
	case plan.DistinctKind:
		return b.buildDistinct(n)
	case plan.UnionKind:
		return b.buildUnionAll(n)
	case plan.IntersectKind:
		return b.buildSetOp(n, intersectMode)
	case plan.ExceptKind:
		return b.buildSetOp(n, exceptMode)
	case plan.CteKind, plan.SubqueryAliasKind:
		// Column resolution is purely by name (spec §4.3 ColumnRef has no
		// resolved table identity past the logical layer), so a CTE
		// reference or a subquery alias needs no operator of its own: it
		// exists only to give the planner something to point at. A CTE
		// referenced twice rebuilds its subtree once per reference rather
		// than sharing one materialized instance (see DESIGN.md).
		return b.build(n.Children[0])
	case plan.UnnestKind:
		// A bare Unnest leaf (no FROM source to correlate against, e.g.
		// `SELECT * FROM UNNEST(@list)`) has no surrounding row to expand
		// against; build it as a CrossJoinUnnest over a single-row
		// constant input.
		return b.buildBareUnnest(n)
	case plan.ExplainKind:
		return b.build(n.Children[0])
	default:
		return nil, cqlerr.New(cqlerr.InternalError, "physical: unbuildable node kind %s", n.Kind)
	}
}

func (b *builder) buildScan(n *plan.Node) (Operator, error) {
	conn, ok := b.params.Connectors.Lookup(n.Relation)
	if !ok {
		return nil, cqlerr.New(cqlerr.UnresolvedName, "physical: no connector registered for relation %q", n.Relation)
	}
	parallelism := b.params.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return NewScan(n.Relation, conn, n.TemporalRange, n.ColumnMask, n.PushedFilter, n.PushedLimit, parallelism, b.params.Stats), nil
}

func (b *builder) buildProject(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	items := projectItemsFromSelectList(n.Projections)
	return NewProject(input, items, b.params.Stats), nil
}

// projectItemsFromSelectList converts a SELECT list's surface form into
// ProjectItems, synthesizing a display name for unaliased expressions the
// same way the demo CLI's column headers are derived.
func projectItemsFromSelectList(items []ast.SelectItem) []ProjectItem {
	out := make([]ProjectItem, len(items))
	for i, it := range items {
		if it.Star {
			out[i] = ProjectItem{Star: true, Table: it.Table}
			continue
		}
		name := it.Alias
		if name == "" {
			name = displayName(it.Expr)
		}
		out[i] = ProjectItem{Expr: it.Expr, Name: name}
	}
	return out
}

// displayName synthesizes a column header for an unaliased expression,
// the same fallback a SQL client falls back to for `SELECT a + 1`.
func displayName(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.ColumnRef:
		return t.Name
	case *ast.AggregateFn:
		return aggDisplayName(t)
	default:
		return "expr"
	}
}

func aggDisplayName(fn *ast.AggregateFn) string {
	if len(fn.Args) == 1 {
		if col, ok := fn.Args[0].(*ast.ColumnRef); ok {
			return fn.Name + "_" + col.Name
		}
	}
	return fn.Name
}

func (b *builder) buildFilter(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	return NewFilter(input, n.Predicate, b.params.Stats), nil
}

func (b *builder) buildSort(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	if n.FuseLimit {
		return NewHeapSortLimit(input, n.OrderBy, n.Count, b.params.Stats), nil
	}
	return NewSort(input, n.OrderBy, b.params.Stats), nil
}

func (b *builder) buildLimit(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	return NewLimit(input, n.Count, b.params.Stats), nil
}

func (b *builder) buildOffset(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	return NewOffset(input, n.Count, b.params.Stats), nil
}

func (b *builder) buildDistinct(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	return NewDistinct(input, b.params.Stats), nil
}

func (b *builder) buildUnionAll(n *plan.Node) (Operator, error) {
	left, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := b.build(n.Children[1])
	if err != nil {
		return nil, err
	}
	return NewUnionAll(left, right, b.params.Stats), nil
}

func (b *builder) buildSetOp(n *plan.Node, mode setOpMode) (Operator, error) {
	left, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := b.build(n.Children[1])
	if err != nil {
		return nil, err
	}
	return NewSetOp(left, right, mode, b.params.Stats), nil
}

// buildAggregate wires up the Aggregate operator directly: its GroupBy
// and Aggs fields carry the entire SELECT list (not just the aggregate
// calls), so the Builder reads it once to name every output column —
// honoring a SELECT alias over the GROUP BY column's own name or the
// aggregate's synthesized display name — and returns Aggregate itself
// rather than wrapping it in a reordering Project. An optional HAVING is
// lowered to a FilterKind node whose sole child is this AggregateKind
// node (plan/build.go), so its predicate is evaluated directly against
// these names; wrapping a rename/reorder Project here would put it on
// the wrong side of that Filter and break HAVING clauses that reference
// a GROUP BY column or an aggregate's alias.
func (b *builder) buildAggregate(n *plan.Node) (Operator, error) {
	input, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}

	groupNames := make([]string, len(n.GroupBy))
	for i, g := range n.GroupBy {
		groupNames[i] = groupKeyDisplayName(g, i)
	}
	for _, item := range n.Aggs {
		if item.Alias == "" {
			continue
		}
		if gi := groupIndexOf(n.GroupBy, item.Expr); gi >= 0 {
			groupNames[gi] = item.Alias
		}
	}

	var aggs []AggSpec
	for _, item := range n.Aggs {
		fn, ok := item.Expr.(*ast.AggregateFn)
		if !ok {
			continue
		}
		name := item.Alias
		if name == "" {
			name = aggDisplayName(fn)
		}
		aggs = append(aggs, AggSpec{Fn: fn, Name: name})
	}

	return NewAggregate(input, n.GroupBy, groupNames, aggs, b.params.Stats), nil
}

// groupKeyDisplayName derives the internal column name the Aggregate
// operator stores a GROUP BY key under: the bare column name for a plain
// ColumnRef, or a synthesized "group_i" for an arbitrary expression.
func groupKeyDisplayName(e ast.Expr, i int) string {
	if col, ok := e.(*ast.ColumnRef); ok {
		return col.Name
	}
	return fmt.Sprintf("group_%d", i)
}

// groupIndexOf finds which GROUP BY expression a non-aggregate SELECT
// item structurally matches (e.g. `SELECT region, COUNT(*) ... GROUP BY
// region`), by deep AST equality. Returns -1 if no match is found — a
// SELECT item that is neither an aggregate nor a GROUP BY key is not
// valid SQL, but buildAggregate just leaves such an item out (it gets no
// output column) rather than failing, so a permissive caller isn't
// blocked on full SQL validation here.
func groupIndexOf(groupBy []ast.Expr, e ast.Expr) int {
	for i, g := range groupBy {
		if reflect.DeepEqual(g, e) {
			return i
		}
	}
	return -1
}

// buildBareUnnest handles `FROM UNNEST(...)` with no other FROM item to
// correlate against: the logical builder still produces a zero-child
// UnnestKind node (see plan/build.go's buildTableExpr), so the operator
// is driven from SingleRow's one synthetic row rather than a real scan.
// buildBareUnnest handles `FROM UNNEST(...)` with no other FROM source to
// correlate against: SingleRow manufactures a one-row stream to expand, and
// the CrossJoinUnnest result is wrapped in a Project that keeps only the
// unnested column, so SingleRow's placeholder seed column never reaches the
// caller.
func (b *builder) buildBareUnnest(n *plan.Node) (Operator, error) {
	columnName := n.SubAlias
	if columnName == "" {
		columnName = "value"
	}
	expanded := NewCrossJoinUnnest(NewSingleRow(), n.UnnestExpr, columnName, n.Outer, b.params.Stats)
	items := []ProjectItem{{Expr: &ast.ColumnRef{Name: columnName}, Name: columnName}}
	return NewProject(expanded, items, b.params.Stats), nil
}

func (b *builder) buildJoin(n *plan.Node) (Operator, error) {
	if unnest, outerChild, ok := b.unnestLateralShape(n); ok {
		outer, err := b.build(outerChild)
		if err != nil {
			return nil, err
		}
		columnName := unnest.SubAlias
		if columnName == "" {
			columnName = "value"
		}
		return NewCrossJoinUnnest(outer, unnest.UnnestExpr, columnName, unnest.Outer, b.params.Stats), nil
	}

	left, err := b.build(n.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := b.build(n.Children[1])
	if err != nil {
		return nil, err
	}

	switch n.JoinVariant {
	case plan.RightOuterJoin, plan.FullOuterJoin:
		// NestedLoopJoin materializes Children[1] and streams Children[0]
		// uniformly across every variant; RIGHT/FULL OUTER need the
		// materialized (right) side preserved, which is exactly what it
		// already does (see its matSeen/drainRightPreserved handling).
		return NewNestedLoopJoin(right, left, n.JoinVariant, n.On, b.params.Stats), nil
	case plan.CrossJoin:
		return NewNestedLoopJoin(right, left, n.JoinVariant, n.On, b.params.Stats), nil
	}

	// InnerJoin, LeftOuterJoin, LeftSemiJoin, LeftAntiJoin: prefer a hash
	// join whenever the ON clause yields at least one usable equi-key;
	// fall back to nested loop for a predicate hash join can't use.
	buildIsRight := n.JoinVariant != plan.InnerJoin
	keys, residual, ok := splitJoinPredicate(n.On, buildIsRight)
	if !ok || len(keys) == 0 {
		// InnerJoin's Children may have been reordered by BuildSideReorder
		// for a cost-based build-side preference; that preference is
		// meaningless to a nested loop, which always materializes
		// Children[1] and streams Children[0].
		return NewNestedLoopJoin(right, left, n.JoinVariant, n.On, b.params.Stats), nil
	}

	var buildOp, probeOp Operator
	if buildIsRight {
		buildOp, probeOp = right, left
	} else {
		buildOp, probeOp = left, right
	}
	return NewHashJoin(buildOp, probeOp, keys, n.JoinVariant, residual, b.params.BloomFalsePositiveRate, b.params.Stats), nil
}

// unnestLateralShape detects the CrossJoin-with-an-Unnest-leaf-child
// shape the logical builder produces for a second `UNNEST(...)` FROM
// item (plan/build.go's buildFrom wraps every extra FROM item in a
// CrossJoin; an UnnestKind node is built as a bare leaf with no children
// of its own). Its UnnestExpr is correlated against the other child's row
// context and cannot be evaluated as an independent stream, so the two
// children collapse into a single CrossJoinUnnest over the other side.
func (b *builder) unnestLateralShape(n *plan.Node) (*plan.Node, plan.NodeID, bool) {
	if n.JoinVariant != plan.CrossJoin {
		return nil, 0, false
	}
	right := b.arena.Node(n.Children[1])
	if right.Kind == plan.UnnestKind {
		return right, n.Children[0], true
	}
	left := b.arena.Node(n.Children[0])
	if left.Kind == plan.UnnestKind {
		return left, n.Children[1], true
	}
	return nil, 0, false
}

// splitJoinPredicate flattens on (an AND-tree of conjuncts) into equi-join
// keys plus a residual predicate re-checked per candidate pair. Column
// ownership isn't tracked past the logical layer (spec's ColumnRef has no
// resolved table identity), so rather than inspecting which relation a
// ColumnRef belongs to, this relies on the convention every ON clause in
// this engine is written in: `<left-operand-relation>.col =
// <right-operand-relation>.col`, matching the AST's own left-to-right
// operand order. buildIsRight tells it whether to flip Left/Right when
// assembling each EquiKey, since HashJoin's EquiKey.Left is always
// evaluated against the build side and EquiKey.Right against the probe
// side (a build/probe distinction, not a left-table/right-table one) —
// see hashjoin.go.
//
// BuildSideReorder keeps a single top-level equality's Left/Right
// consistent with its Children swap, but does not rewrite a multi-key
// AND conjunction the same way; this only affects InnerJoin (the only
// variant it reorders), where buildIsRight is false and no flip is
// needed regardless.
func splitJoinPredicate(on ast.Expr, buildIsRight bool) ([]EquiKey, ast.Expr, bool) {
	if on == nil {
		return nil, nil, false
	}
	conjuncts := flattenAnd(on)
	var keys []EquiKey
	var residualParts []ast.Expr
	for _, c := range conjuncts {
		bin, ok := c.(*ast.BinaryOp)
		if !ok || bin.Kind != ast.OpEq {
			residualParts = append(residualParts, c)
			continue
		}
		_, lok := bin.Left.(*ast.ColumnRef)
		_, rok := bin.Right.(*ast.ColumnRef)
		if !lok || !rok {
			residualParts = append(residualParts, c)
			continue
		}
		if buildIsRight {
			keys = append(keys, EquiKey{Left: bin.Right, Right: bin.Left})
		} else {
			keys = append(keys, EquiKey{Left: bin.Left, Right: bin.Right})
		}
	}
	return keys, rebuildAnd(residualParts), true
}

func flattenAnd(e ast.Expr) []ast.Expr {
	bin, ok := e.(*ast.BinaryOp)
	if !ok || bin.Kind != ast.OpAnd {
		return []ast.Expr{e}
	}
	return append(flattenAnd(bin.Left), flattenAnd(bin.Right)...)
}

func rebuildAnd(parts []ast.Expr) ast.Expr {
	if len(parts) == 0 {
		return nil
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = &ast.BinaryOp{Kind: ast.OpAnd, Left: out, Right: p}
	}
	return out
}
