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

// Package ast describes the shape of the parsed statement this engine
// consumes. SQL tokenization/parsing is an external collaborator (spec
// §1); this package is the boundary contract, not a parser — every node
// here is expected to be produced by something else and handed to
// internal/temporal and internal/plan as a plain value.
package ast

// Statement is any top-level node the planner can lower: Select, SetOp
// (UNION/INTERSECT/EXCEPT), With (CTE), or Explain wrapping one of the above.
type Statement interface{ statementNode() }

// Select is `SELECT [DISTINCT] select-list FROM from-clause [FOR ...]
// [WHERE ...] [GROUP BY ...] [HAVING ...] [ORDER BY ...] [OFFSET n] [LIMIT n]`.
type Select struct {
	Distinct    bool
	Projections []SelectItem
	From        []TableExpr
	Where       Expr
	GroupBy     []Expr
	Having      Expr
	OrderBy     []OrderItem
	Offset      *int64
	Limit       *int64
}

func (*Select) statementNode() {}

// SelectItem is one projected expression, optionally aliased.
type SelectItem struct {
	Expr  Expr
	Alias string // "" if unaliased; "*" items use Star instead
	Star  bool   // true for `*` or `table.*`
	Table string // qualifier for `table.*`; empty for bare `*`
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SetOp is UNION/UNION ALL/INTERSECT/EXCEPT combining two statements.
type SetOp struct {
	Kind  SetOpKind
	All   bool
	Left  Statement
	Right Statement
}

func (*SetOp) statementNode() {}

type SetOpKind uint8

const (
	Union SetOpKind = iota
	Intersect
	Except
)

// With is a `WITH name AS (stmt), ... body` CTE wrapper.
type With struct {
	CTEs []CTE
	Body Statement
}

func (*With) statementNode() {}

type CTE struct {
	Name  string
	Query Statement
}

// Explain wraps a statement for plan-only (or plan+execute, if Analyze)
// output instead of row results.
type Explain struct {
	Analyze bool
	Stmt    Statement
}

func (*Explain) statementNode() {}

// --- FROM clause: table expressions and joins -------------------------------

// TableExpr is a FROM-clause entry: a base table reference, a subquery
// alias, an UNNEST, or a Join combining two of these.
type TableExpr interface{ tableExprNode() }

// TableRef is a base relation reference, e.g. `$planets p FOR '2020-01-01'`.
type TableRef struct {
	Name  string
	Alias string
	For   *ForClause // nil if no temporal clause was present
}

func (*TableRef) tableExprNode() {}

// SubqueryAlias is `( subquery ) AS alias`.
type SubqueryAlias struct {
	Query Statement
	Alias string
}

func (*SubqueryAlias) tableExprNode() {}

// UnnestExpr is `UNNEST(list_expr) [AS alias]`; Outer marks OUTER UNNEST.
type UnnestExpr struct {
	List  Expr
	Alias string
	Outer bool
}

func (*UnnestExpr) tableExprNode() {}

// Join combines two table expressions under a join kind and predicate.
type Join struct {
	Kind predicateJoinKind
	Left TableExpr
	Right TableExpr
	On   Expr // nil for CROSS JOIN
}

func (*Join) tableExprNode() {}

type predicateJoinKind = JoinKind

// JoinKind enumerates the join algebra spec.md's SQL surface exposes.
type JoinKind uint8

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	LeftSemiJoin
	LeftAntiJoin
	CrossJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER"
	case LeftOuterJoin:
		return "LEFT OUTER"
	case RightOuterJoin:
		return "RIGHT OUTER"
	case FullOuterJoin:
		return "FULL OUTER"
	case LeftSemiJoin:
		return "LEFT SEMI"
	case LeftAntiJoin:
		return "LEFT ANTI"
	case CrossJoin:
		return "CROSS"
	default:
		return "UNKNOWN"
	}
}

// --- FOR / FOR DATES ... temporal clause ------------------------------------

// ForKind enumerates the supported temporal-binding grammar forms.
type ForKind uint8

const (
	ForDate ForKind = iota
	ForDatesBetween
	ForDatesIn
	ForDatesSince
	ForLastNDays
)

// ForClause is the parsed (but not yet resolved against "today") temporal
// clause attached to a single table reference. Exactly one of the fields
// below is populated depending on Kind; Placeholder holds TODAY,
// YESTERDAY, THIS_MONTH, LAST_MONTH, or "" if Date/Start/End are literal
// YYYY-MM-DD strings instead.
type ForClause struct {
	Kind        ForKind
	Date        string // ForDate, ForDatesSince
	Start       string // ForDatesBetween
	End         string // ForDatesBetween
	NamedRange  string // ForDatesIn
	N           int    // ForLastNDays
	Placeholder string // TODAY | YESTERDAY | THIS_MONTH | LAST_MONTH
}

// --- Expressions -------------------------------------------------------------

// Expr is the scalar/boolean expression algebra (spec §4.3): Literal,
// ColumnRef, ScalarFn, AggregateFn, BinaryOp, UnaryOp, Case, In, Cast.
type Expr interface{ exprNode() }

type LiteralKind uint8

const (
	LitNull LiteralKind = iota
	LitBool
	LitInt
	LitFloat
	LitString
)

// Literal is a constant value of one of the supported literal kinds.
type Literal struct {
	Kind LiteralKind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
}

func (*Literal) exprNode() {}

// ColumnRef names a column, optionally qualified by table/alias.
type ColumnRef struct {
	Table string
	Name  string
}

func (*ColumnRef) exprNode() {}

// Parameter is an `@name` bound placeholder.
type Parameter struct{ Name string }

func (*Parameter) exprNode() {}

// ScalarFn is a scalar function call, e.g. STARTS_WITH(a, 'x').
type ScalarFn struct {
	Name string
	Args []Expr
}

func (*ScalarFn) exprNode() {}

// AggregateFn is an aggregate call, e.g. SUM(x), COUNT(DISTINCT x).
// OrderBy carries the `ORDER BY` variant inside aggregates as parsed, but
// internal/physical.Aggregate does not yet consume it — see DESIGN.md's
// Open Question decisions for why and what implementing it would require.
type AggregateFn struct {
	Name     string
	Args     []Expr
	Distinct bool
	OrderBy  []OrderItem
}

func (*AggregateFn) exprNode() {}

type BinaryOpKind uint8

const (
	OpAdd BinaryOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpLike
	OpConcat
)

// BinaryOp is a two-operand operator application.
type BinaryOp struct {
	Kind        BinaryOpKind
	Left, Right Expr
}

func (*BinaryOp) exprNode() {}

type UnaryOpKind uint8

const (
	OpNot UnaryOpKind = iota
	OpNeg
	OpIsNull
	OpIsNotNull
	OpIsTrue
	OpIsFalse
)

// UnaryOp is a single-operand operator application.
type UnaryOp struct {
	Kind UnaryOpKind
	Arg  Expr
}

func (*UnaryOp) exprNode() {}

// WhenClause is one `WHEN cond THEN result` arm of a Case.
type WhenClause struct {
	When Expr
	Then Expr
}

// Case is `CASE WHEN ... THEN ... [ELSE ...] END`.
type Case struct {
	Whens []WhenClause
	Else  Expr // nil if no ELSE
}

func (*Case) exprNode() {}

// In is `expr IN (list)` or `expr IN (subquery)`; exactly one of List or
// Subquery is populated.
type In struct {
	Expr     Expr
	List     []Expr
	Subquery Statement
	Negate   bool
}

func (*In) exprNode() {}

// Cast is `CAST(expr AS type)`; Safe marks a SAFE_CAST/TRY(CAST(...))
// that converts a runtime failure into NULL instead of surfacing an error.
type Cast struct {
	Expr Expr
	Type string
	Safe bool
}

func (*Cast) exprNode() {}

// Try wraps any expression so a recoverable runtime failure (cast
// failure, divide-by-zero) converts to NULL instead of aborting the query.
type Try struct{ Expr Expr }

func (*Try) exprNode() {}
