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
	"coreql/internal/temporal"
	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
)

// SupportsTemporal reports whether relationName's connector advertises
// temporal partitioning, the fact the binder needs to decide whether an
// absent FOR clause implies FOR TODAY.
type SupportsTemporal func(relationName string) bool

// Builder lowers an ast.Statement into a plan.Arena, enforcing the
// canonical FROM -> WHERE -> GROUP BY -> HAVING -> SELECT -> DISTINCT ->
// ORDER BY -> OFFSET -> LIMIT execution order regardless of SQL surface
// order (spec §4.4).
type Builder struct {
	arena   *Arena
	binder  *temporal.Binder
	support SupportsTemporal
	ctes    map[string]NodeID
}

// NewBuilder constructs a Builder using binder to resolve FOR clauses and
// support to answer each relation's temporal-partitioning capability.
func NewBuilder(binder *temporal.Binder, support SupportsTemporal) *Builder {
	return &Builder{arena: NewArena(), binder: binder, support: support, ctes: map[string]NodeID{}}
}

// Build lowers stmt into a fresh Arena and returns it with its root set.
func Build(stmt ast.Statement, binder *temporal.Binder, support SupportsTemporal) (*Arena, error) {
	b := NewBuilder(binder, support)
	root, err := b.buildStatement(stmt)
	if err != nil {
		return nil, err
	}
	b.arena.SetRoot(root)
	return b.arena, nil
}

func (b *Builder) buildStatement(stmt ast.Statement) (NodeID, error) {
	switch s := stmt.(type) {
	case *ast.Select:
		return b.buildSelect(s)
	case *ast.SetOp:
		return b.buildSetOp(s)
	case *ast.With:
		for _, cte := range s.CTEs {
			inner, err := b.buildStatement(cte.Query)
			if err != nil {
				return 0, err
			}
			id := b.arena.Add(Node{Kind: CteKind, CteName: cte.Name, Children: []NodeID{inner}})
			b.ctes[cte.Name] = id
		}
		return b.buildStatement(s.Body)
	case *ast.Explain:
		inner, err := b.buildStatement(s.Stmt)
		if err != nil {
			return 0, err
		}
		return b.arena.Add(Node{Kind: ExplainKind, Analyze: s.Analyze, Children: []NodeID{inner}}), nil
	default:
		return 0, cqlerr.New(cqlerr.InternalError, "plan: unknown statement type %T", stmt)
	}
}

func (b *Builder) buildSetOp(s *ast.SetOp) (NodeID, error) {
	left, err := b.buildStatement(s.Left)
	if err != nil {
		return 0, err
	}
	right, err := b.buildStatement(s.Right)
	if err != nil {
		return 0, err
	}
	var kind Kind
	switch s.Kind {
	case ast.Union:
		kind = UnionKind
	case ast.Intersect:
		kind = IntersectKind
	case ast.Except:
		kind = ExceptKind
	default:
		return 0, cqlerr.New(cqlerr.InternalError, "plan: unknown SetOpKind %d", s.Kind)
	}
	id := b.arena.Add(Node{Kind: kind, Children: []NodeID{left, right}})
	if kind == UnionKind && !s.All {
		id = b.arena.Add(Node{Kind: DistinctKind, Children: []NodeID{id}})
	}
	return id, nil
}

func (b *Builder) buildSelect(s *ast.Select) (NodeID, error) {
	cur, err := b.buildFrom(s.From)
	if err != nil {
		return 0, err
	}

	if s.Where != nil {
		cur = b.arena.Add(Node{Kind: FilterKind, Predicate: s.Where, Children: []NodeID{cur}})
	}

	if len(s.GroupBy) > 0 || hasAggregate(s.Projections) {
		aggs := make([]ast.SelectItem, 0, len(s.Projections))
		for _, item := range s.Projections {
			aggs = append(aggs, item)
		}
		cur = b.arena.Add(Node{Kind: AggregateKind, GroupBy: s.GroupBy, Aggs: aggs, Children: []NodeID{cur}})
		if s.Having != nil {
			cur = b.arena.Add(Node{Kind: FilterKind, Predicate: s.Having, Children: []NodeID{cur}})
		}
	} else {
		cur = b.arena.Add(Node{Kind: ProjectKind, Projections: s.Projections, Children: []NodeID{cur}})
	}

	if s.Distinct {
		cur = b.arena.Add(Node{Kind: DistinctKind, Children: []NodeID{cur}})
	}

	if len(s.OrderBy) > 0 {
		cur = b.arena.Add(Node{Kind: SortKind, OrderBy: s.OrderBy, Children: []NodeID{cur}})
	}

	if s.Offset != nil {
		cur = b.arena.Add(Node{Kind: OffsetKind, Count: *s.Offset, Children: []NodeID{cur}})
	}

	if s.Limit != nil {
		cur = b.arena.Add(Node{Kind: LimitKind, Count: *s.Limit, Children: []NodeID{cur}})
	}

	return cur, nil
}

// hasAggregate reports whether any top-level projection contains an
// AggregateFn, the trigger for building an Aggregate node even without an
// explicit GROUP BY (e.g. `SELECT COUNT(*) FROM t`).
func hasAggregate(items []ast.SelectItem) bool {
	for _, item := range items {
		if containsAggregate(item.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(e ast.Expr) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *ast.AggregateFn:
		return true
	case *ast.ScalarFn:
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case *ast.UnaryOp:
		return containsAggregate(n.Arg)
	case *ast.Case:
		for _, w := range n.Whens {
			if containsAggregate(w.When) || containsAggregate(w.Then) {
				return true
			}
		}
		return containsAggregate(n.Else)
	case *ast.Cast:
		return containsAggregate(n.Expr)
	case *ast.Try:
		return containsAggregate(n.Expr)
	}
	return false
}

func (b *Builder) buildFrom(from []ast.TableExpr) (NodeID, error) {
	if len(from) == 0 {
		return 0, cqlerr.New(cqlerr.InvalidInput, "plan: SELECT requires a FROM clause")
	}
	cur, err := b.buildTableExpr(from[0])
	if err != nil {
		return 0, err
	}
	for _, te := range from[1:] {
		right, err := b.buildTableExpr(te)
		if err != nil {
			return 0, err
		}
		cur = b.arena.Add(Node{Kind: JoinKind, JoinVariant: CrossJoin, Children: []NodeID{cur, right}})
	}
	return cur, nil
}

func (b *Builder) buildTableExpr(te ast.TableExpr) (NodeID, error) {
	switch t := te.(type) {
	case *ast.TableRef:
		if cte, ok := b.ctes[t.Name]; ok {
			return cte, nil
		}
		n := Node{Kind: ScanKind, Relation: t.Name, Alias: t.Alias}
		rng, ok, err := b.binder.Bind(t, b.support(t.Name))
		if err != nil {
			return 0, err
		}
		if ok {
			n.TemporalRange = &rng
		}
		return b.arena.Add(n), nil

	case *ast.SubqueryAlias:
		inner, err := b.buildStatement(t.Query)
		if err != nil {
			return 0, err
		}
		return b.arena.Add(Node{Kind: SubqueryAliasKind, SubAlias: t.Alias, Children: []NodeID{inner}}), nil

	case *ast.UnnestExpr:
		return b.arena.Add(Node{Kind: UnnestKind, UnnestExpr: t.List, Outer: t.Outer, SubAlias: t.Alias}), nil

	case *ast.Join:
		left, err := b.buildTableExpr(t.Left)
		if err != nil {
			return 0, err
		}
		right, err := b.buildTableExpr(t.Right)
		if err != nil {
			return 0, err
		}
		return b.arena.Add(Node{
			Kind:        JoinKind,
			JoinVariant: astJoinVariant(t.Kind),
			On:          t.On,
			Children:    []NodeID{left, right},
		}), nil

	default:
		return 0, cqlerr.New(cqlerr.InternalError, "plan: unknown TableExpr type %T", te)
	}
}

func astJoinVariant(k ast.JoinKind) JoinVariant {
	switch k {
	case ast.InnerJoin:
		return InnerJoin
	case ast.LeftOuterJoin:
		return LeftOuterJoin
	case ast.RightOuterJoin:
		return RightOuterJoin
	case ast.FullOuterJoin:
		return FullOuterJoin
	case ast.LeftSemiJoin:
		return LeftSemiJoin
	case ast.LeftAntiJoin:
		return LeftAntiJoin
	case ast.CrossJoin:
		return CrossJoin
	default:
		return InnerJoin
	}
}
