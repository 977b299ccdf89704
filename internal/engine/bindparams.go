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

package engine

import (
	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
)

// bindParameters returns a copy of stmt with every `@name` ast.Parameter
// replaced by an ast.Literal drawn from params (spec §6: "Parameters are
// bound by @name placeholders"). expr.Eval has no case for *ast.Parameter
// (internal/expr/eval.go) — by design the evaluator only ever sees
// literals, so substitution happens here, once, before the statement
// reaches plan.Build, rather than being threaded through every operator.
// The input tree is never mutated in place, since a caller may re-execute
// the same parsed statement with different parameters.
func bindParameters(stmt ast.Statement, params map[string]any) (ast.Statement, error) {
	if len(params) == 0 {
		return stmt, nil
	}
	b := &paramBinder{params: params}
	return b.statement(stmt)
}

type paramBinder struct {
	params map[string]any
}

func (b *paramBinder) statement(s ast.Statement) (ast.Statement, error) {
	switch n := s.(type) {
	case nil:
		return nil, nil
	case *ast.Select:
		return b.selectStmt(n)
	case *ast.SetOp:
		left, err := b.statement(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.statement(n.Right)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Left, out.Right = left, right
		return &out, nil
	case *ast.With:
		ctes := make([]ast.CTE, len(n.CTEs))
		for i, c := range n.CTEs {
			q, err := b.statement(c.Query)
			if err != nil {
				return nil, err
			}
			ctes[i] = ast.CTE{Name: c.Name, Query: q}
		}
		body, err := b.statement(n.Body)
		if err != nil {
			return nil, err
		}
		out := *n
		out.CTEs, out.Body = ctes, body
		return &out, nil
	case *ast.Explain:
		inner, err := b.statement(n.Stmt)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Stmt = inner
		return &out, nil
	default:
		return nil, cqlerr.New(cqlerr.InternalError, "engine: bindParameters: unhandled statement type %T", s)
	}
}

func (b *paramBinder) selectStmt(s *ast.Select) (*ast.Select, error) {
	out := *s
	items := make([]ast.SelectItem, len(s.Projections))
	for i, it := range s.Projections {
		e, err := b.expr(it.Expr)
		if err != nil {
			return nil, err
		}
		items[i] = ast.SelectItem{Expr: e, Alias: it.Alias, Star: it.Star, Table: it.Table}
	}
	out.Projections = items

	from := make([]ast.TableExpr, len(s.From))
	for i, f := range s.From {
		t, err := b.tableExpr(f)
		if err != nil {
			return nil, err
		}
		from[i] = t
	}
	out.From = from

	where, err := b.expr(s.Where)
	if err != nil {
		return nil, err
	}
	out.Where = where

	group := make([]ast.Expr, len(s.GroupBy))
	for i, g := range s.GroupBy {
		e, err := b.expr(g)
		if err != nil {
			return nil, err
		}
		group[i] = e
	}
	out.GroupBy = group

	having, err := b.expr(s.Having)
	if err != nil {
		return nil, err
	}
	out.Having = having

	order := make([]ast.OrderItem, len(s.OrderBy))
	for i, o := range s.OrderBy {
		e, err := b.expr(o.Expr)
		if err != nil {
			return nil, err
		}
		order[i] = ast.OrderItem{Expr: e, Desc: o.Desc}
	}
	out.OrderBy = order

	return &out, nil
}

func (b *paramBinder) tableExpr(t ast.TableExpr) (ast.TableExpr, error) {
	switch n := t.(type) {
	case nil:
		return nil, nil
	case *ast.TableRef:
		out := *n
		return &out, nil
	case *ast.SubqueryAlias:
		q, err := b.statement(n.Query)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Query = q
		return &out, nil
	case *ast.UnnestExpr:
		list, err := b.expr(n.List)
		if err != nil {
			return nil, err
		}
		out := *n
		out.List = list
		return &out, nil
	case *ast.Join:
		left, err := b.tableExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.tableExpr(n.Right)
		if err != nil {
			return nil, err
		}
		on, err := b.expr(n.On)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Left, out.Right, out.On = left, right, on
		return &out, nil
	default:
		return nil, cqlerr.New(cqlerr.InternalError, "engine: bindParameters: unhandled table expr type %T", t)
	}
}

func (b *paramBinder) expr(e ast.Expr) (ast.Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil
	case *ast.Literal:
		return n, nil
	case *ast.ColumnRef:
		return n, nil
	case *ast.Parameter:
		v, ok := b.params[n.Name]
		if !ok {
			return nil, cqlerr.New(cqlerr.InvalidInput, "engine: no parameter bound for @%s", n.Name)
		}
		lit, err := literalOf(v)
		if err != nil {
			return nil, err
		}
		return lit, nil
	case *ast.ScalarFn:
		args, err := b.exprList(n.Args)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Args = args
		return &out, nil
	case *ast.AggregateFn:
		args, err := b.exprList(n.Args)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Args = args
		return &out, nil
	case *ast.BinaryOp:
		left, err := b.expr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(n.Right)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Left, out.Right = left, right
		return &out, nil
	case *ast.UnaryOp:
		arg, err := b.expr(n.Arg)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Arg = arg
		return &out, nil
	case *ast.Case:
		whens := make([]ast.WhenClause, len(n.Whens))
		for i, w := range n.Whens {
			when, err := b.expr(w.When)
			if err != nil {
				return nil, err
			}
			then, err := b.expr(w.Then)
			if err != nil {
				return nil, err
			}
			whens[i] = ast.WhenClause{When: when, Then: then}
		}
		els, err := b.expr(n.Else)
		if err != nil {
			return nil, err
		}
		return &ast.Case{Whens: whens, Else: els}, nil
	case *ast.In:
		subject, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		list, err := b.exprList(n.List)
		if err != nil {
			return nil, err
		}
		sub, err := b.statement(n.Subquery)
		if err != nil {
			return nil, err
		}
		return &ast.In{Expr: subject, List: list, Subquery: sub, Negate: n.Negate}, nil
	case *ast.Cast:
		inner, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Expr = inner
		return &out, nil
	case *ast.Try:
		inner, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.Try{Expr: inner}, nil
	default:
		return nil, cqlerr.New(cqlerr.InternalError, "engine: bindParameters: unhandled expr type %T", e)
	}
}

func (b *paramBinder) exprList(in []ast.Expr) ([]ast.Expr, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]ast.Expr, len(in))
	for i, e := range in {
		v, err := b.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// literalOf converts a bound Go parameter value into the ast.Literal the
// rest of the pipeline expects; nil becomes LitNull.
func literalOf(v any) (*ast.Literal, error) {
	switch t := v.(type) {
	case nil:
		return &ast.Literal{Kind: ast.LitNull}, nil
	case bool:
		return &ast.Literal{Kind: ast.LitBool, Bool: t}, nil
	case int:
		return &ast.Literal{Kind: ast.LitInt, Int: int64(t)}, nil
	case int32:
		return &ast.Literal{Kind: ast.LitInt, Int: int64(t)}, nil
	case int64:
		return &ast.Literal{Kind: ast.LitInt, Int: t}, nil
	case float32:
		return &ast.Literal{Kind: ast.LitFloat, Flt: float64(t)}, nil
	case float64:
		return &ast.Literal{Kind: ast.LitFloat, Flt: t}, nil
	case string:
		return &ast.Literal{Kind: ast.LitString, Str: t}, nil
	default:
		return nil, cqlerr.New(cqlerr.InvalidInput, "engine: unsupported parameter value type %T", v)
	}
}
