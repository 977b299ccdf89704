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

// Package plan is the logical plan representation: a DAG of Nodes held in
// an Arena and addressed by stable NodeID, so a rewrite can replace a
// node's contents without invalidating other nodes' references to it.
package plan

import (
	"coreql/internal/temporal"
	"coreql/pkg/ast"
)

// NodeID addresses a Node within its owning Arena. The zero value is never
// a valid node (Arena reserves index 0 as "no node").
type NodeID int32

// Kind is the closed set of logical node kinds (spec §4.4).
type Kind uint8

const (
	InvalidKind Kind = iota
	ScanKind
	ProjectKind
	FilterKind
	JoinKind
	AggregateKind
	SortKind
	LimitKind
	OffsetKind
	DistinctKind
	UnionKind
	IntersectKind
	ExceptKind
	CteKind
	SubqueryAliasKind
	UnnestKind
	ExplainKind
)

func (k Kind) String() string {
	switch k {
	case ScanKind:
		return "Scan"
	case ProjectKind:
		return "Project"
	case FilterKind:
		return "Filter"
	case JoinKind:
		return "Join"
	case AggregateKind:
		return "Aggregate"
	case SortKind:
		return "Sort"
	case LimitKind:
		return "Limit"
	case OffsetKind:
		return "Offset"
	case DistinctKind:
		return "Distinct"
	case UnionKind:
		return "Union"
	case IntersectKind:
		return "Intersect"
	case ExceptKind:
		return "Except"
	case CteKind:
		return "Cte"
	case SubqueryAliasKind:
		return "SubqueryAlias"
	case UnnestKind:
		return "Unnest"
	case ExplainKind:
		return "Explain"
	default:
		return "Invalid"
	}
}

// JoinVariant mirrors ast.JoinKind at the plan layer; kept distinct so the
// planner can normalize (e.g. CROSS JOIN + equi-filter -> InnerJoin)
// without mutating the AST.
type JoinVariant uint8

const (
	InnerJoin JoinVariant = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	LeftSemiJoin
	LeftAntiJoin
	CrossJoin
)

func (j JoinVariant) String() string {
	switch j {
	case InnerJoin:
		return "Inner"
	case LeftOuterJoin:
		return "LeftOuter"
	case RightOuterJoin:
		return "RightOuter"
	case FullOuterJoin:
		return "FullOuter"
	case LeftSemiJoin:
		return "LeftSemi"
	case LeftAntiJoin:
		return "LeftAnti"
	case CrossJoin:
		return "Cross"
	default:
		return "Unknown"
	}
}

// Edge is a (parent, child, slot) triple; slot disambiguates a child's
// position when a node has more than one (e.g. Join's Left=0/Right=1).
type Edge struct {
	Parent NodeID
	Child  NodeID
	Slot   int
}

// Node is one logical operator in the plan DAG. Not every field is
// meaningful for every Kind; the optimizer and physical builder switch on
// Kind to know which fields to read.
type Node struct {
	ID   NodeID
	Kind Kind

	// Scan
	Relation      string
	Alias         string
	TemporalRange *temporal.Range
	ColumnMask    []string // required columns, narrowed by projection pushdown
	PushedFilter  ast.Expr // connector-interpretable subset pushed into scan
	PushedLimit   *int64

	// Project
	Projections []ast.SelectItem

	// Filter
	Predicate  ast.Expr
	Correlated bool // predicate references a subquery; pushdown must not separate it from its correlation context

	// Join
	JoinVariant JoinVariant
	On          ast.Expr

	// Aggregate
	GroupBy []ast.Expr
	Aggs    []ast.SelectItem

	// Sort / HeapSort fusion
	OrderBy   []ast.OrderItem
	FuseLimit bool // set by optimizer phase 5 when Sort+Limit fused

	// Limit / Offset
	Count int64

	// Cte
	CteName string

	// SubqueryAlias
	SubAlias string

	// Unnest
	UnnestExpr ast.Expr
	UnnestList bool
	Outer      bool

	// Explain
	Analyze bool

	// children, in slot order; most nodes have 1 (Filter, Project, ...),
	// Join/set-ops have 2, Scan/Cte-leaf have 0.
	Children []NodeID

	// fingerprint holds a structural hash of Predicate/On once
	// CacheFingerprint is called; 0 means uncomputed. Nothing in this
	// module calls CacheFingerprint, so it stays 0.
	fingerprint uint64
}

// fingerprintValid reports whether Fingerprint has been computed.
func (n *Node) fingerprintValid() bool { return n.fingerprint != 0 }

// CacheFingerprint stores a structural fingerprint for this node's
// expression (Predicate or On). Neither the optimizer nor internal/expr
// calls it or reads it back; the fused kernels in internal/expr recognize
// their shapes by walking the expression itself.
func (n *Node) CacheFingerprint(fp uint64) { n.fingerprint = fp }

// Fingerprint returns the cached fingerprint and whether one has been set.
func (n *Node) Fingerprint() (uint64, bool) { return n.fingerprint, n.fingerprintValid() }
