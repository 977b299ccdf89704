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

package expr

import (
	"strings"

	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// Eval evaluates e against every row of m and returns the result as a
// freshly-built Vector of the same length as m (spec §4.3's evaluation
// contract: one morsel in, one same-length vector out).
func Eval(e ast.Expr, m *vector.Morsel) (*vector.Vector, error) {
	n := m.NumRows()
	typ, err := InferType(e, &m.Schema)
	if err != nil {
		return nil, err
	}

	switch typ {
	case vector.Bool:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: vector.Bool, Nullable: true})
		for i := 0; i < n; i++ {
			v, err := evalRow(e, m, i)
			if err != nil {
				return nil, err
			}
			appendScalar(b, v)
		}
		return b.Finish(), nil
	case vector.Int64:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: vector.Int64, Nullable: true})
		for i := 0; i < n; i++ {
			v, err := evalRow(e, m, i)
			if err != nil {
				return nil, err
			}
			appendScalar(b, v)
		}
		return b.Finish(), nil
	case vector.Float64:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: vector.Float64, Nullable: true})
		for i := 0; i < n; i++ {
			v, err := evalRow(e, m, i)
			if err != nil {
				return nil, err
			}
			appendScalar(b, v)
		}
		return b.Finish(), nil
	case vector.String:
		b := vector.NewStringVectorBuilder(vector.Field{Nullable: true})
		for i := 0; i < n; i++ {
			v, err := evalRow(e, m, i)
			if err != nil {
				return nil, err
			}
			if v.null {
				b.AppendNull()
			} else {
				b.AppendString(v.s)
			}
		}
		return b.Finish(), nil
	default:
		return nil, cqlerr.New(cqlerr.UnsupportedOperation, "expr: cannot materialize result type %s", typ)
	}
}

func appendScalar(b *vector.FixedWidthBuilder, v scalar) {
	if v.null {
		b.AppendNull()
		return
	}
	switch v.typ {
	case vector.Bool:
		b.AppendBool(v.b)
	case vector.Int64:
		b.AppendInt64(v.i)
	case vector.Float64:
		b.AppendFloat64(v.f)
	}
}

// evalRow evaluates e at a single row index against m's columns.
func evalRow(e ast.Expr, m *vector.Morsel, row int) (scalar, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return evalLiteral(n)

	case *ast.ColumnRef:
		col := m.Column(n.Name)
		if col == nil {
			return scalar{}, cqlerr.New(cqlerr.UnresolvedName, "expr: unknown column %q", n.Name)
		}
		return readVectorScalar(col, row)

	case *ast.UnaryOp:
		return evalUnary(n, m, row)

	case *ast.BinaryOp:
		return evalBinary(n, m, row)

	case *ast.Case:
		for _, w := range n.Whens {
			cond, err := evalRow(w.When, m, row)
			if err != nil {
				return scalar{}, err
			}
			if !cond.null && cond.typ == vector.Bool && cond.b {
				return evalRow(w.Then, m, row)
			}
		}
		if n.Else != nil {
			return evalRow(n.Else, m, row)
		}
		return scalar{null: true}, nil

	case *ast.In:
		return evalIn(n, m, row)

	case *ast.Cast:
		v, err := evalRow(n.Expr, m, row)
		if err != nil {
			if n.Safe {
				return scalar{null: true}, nil
			}
			return scalar{}, err
		}
		out, err := castScalar(v, n.Type)
		if err != nil {
			if n.Safe {
				return scalar{null: true}, nil
			}
			return scalar{}, err
		}
		return out, nil

	case *ast.Try:
		v, err := evalRow(n.Expr, m, row)
		if err != nil {
			return scalar{null: true}, nil
		}
		return v, nil

	case *ast.ScalarFn:
		return evalScalarFn(n, m, row)

	default:
		return scalar{}, cqlerr.New(cqlerr.UnsupportedOperation, "expr: unsupported expression %T", e)
	}
}

func evalLiteral(lit *ast.Literal) (scalar, error) {
	switch lit.Kind {
	case ast.LitNull:
		return scalar{null: true}, nil
	case ast.LitBool:
		return boolScalar(lit.Bool), nil
	case ast.LitInt:
		return intScalar(lit.Int), nil
	case ast.LitFloat:
		return fltScalar(lit.Flt), nil
	case ast.LitString:
		return strScalar(lit.Str), nil
	default:
		return scalar{}, cqlerr.New(cqlerr.InternalError, "expr: unknown literal kind %d", lit.Kind)
	}
}

func readVectorScalar(v *vector.Vector, row int) (scalar, error) {
	if v.IsNull(row) {
		return nullScalar(v.Type()), nil
	}
	switch v.Type() {
	case vector.Bool:
		return boolScalar(v.Bool(row)), nil
	case vector.Int8:
		return intScalar(int64(v.Int8(row))), nil
	case vector.Int16:
		return intScalar(int64(v.Int16(row))), nil
	case vector.Int32, vector.Date32:
		return intScalar(int64(v.Int32(row))), nil
	case vector.Int64, vector.Timestamp64:
		return intScalar(v.Int64(row)), nil
	case vector.Float32:
		return fltScalar(float64(v.Float32(row))), nil
	case vector.Float64:
		return fltScalar(v.Float64(row)), nil
	case vector.String:
		return strScalar(v.String(row)), nil
	case vector.Binary:
		return strScalar(string(v.Binary(row))), nil
	default:
		return scalar{}, cqlerr.New(cqlerr.UnsupportedOperation, "expr: cannot read scalar of type %s", v.Type())
	}
}

func evalUnary(n *ast.UnaryOp, m *vector.Morsel, row int) (scalar, error) {
	switch n.Kind {
	case ast.OpIsNull, ast.OpIsNotNull:
		v, err := evalRow(n.Arg, m, row)
		if err != nil {
			return scalar{}, err
		}
		result := v.null
		if n.Kind == ast.OpIsNotNull {
			result = !result
		}
		return boolScalar(result), nil

	case ast.OpIsTrue, ast.OpIsFalse:
		v, err := evalRow(n.Arg, m, row)
		if err != nil {
			return scalar{}, err
		}
		if v.null {
			return boolScalar(false), nil
		}
		want := n.Kind == ast.OpIsTrue
		return boolScalar(v.b == want), nil

	case ast.OpNot:
		v, err := evalRow(n.Arg, m, row)
		if err != nil {
			return scalar{}, err
		}
		if v.null {
			return scalar{typ: vector.Bool, null: true}, nil
		}
		return boolScalar(!v.b), nil

	case ast.OpNeg:
		v, err := evalRow(n.Arg, m, row)
		if err != nil {
			return scalar{}, err
		}
		if v.null {
			return scalar{typ: v.typ, null: true}, nil
		}
		if v.typ == vector.Int64 {
			return intScalar(-v.i), nil
		}
		return fltScalar(-v.asFloat()), nil

	default:
		return scalar{}, cqlerr.New(cqlerr.InternalError, "expr: unknown unary op %d", n.Kind)
	}
}

func evalBinary(n *ast.BinaryOp, m *vector.Morsel, row int) (scalar, error) {
	// AND/OR implement three-valued short-circuit logic (spec §4.3): AND
	// short-circuits to false in the presence of a false operand even if
	// the other is null; OR short-circuits to true in the presence of a
	// true operand even if the other is null.
	if n.Kind == ast.OpAnd || n.Kind == ast.OpOr {
		left, err := evalRow(n.Left, m, row)
		if err != nil {
			return scalar{}, err
		}
		if n.Kind == ast.OpAnd && !left.null && !left.b {
			return boolScalar(false), nil
		}
		if n.Kind == ast.OpOr && !left.null && left.b {
			return boolScalar(true), nil
		}
		right, err := evalRow(n.Right, m, row)
		if err != nil {
			return scalar{}, err
		}
		if n.Kind == ast.OpAnd {
			if !right.null && !right.b {
				return boolScalar(false), nil
			}
			if left.null || right.null {
				return scalar{typ: vector.Bool, null: true}, nil
			}
			return boolScalar(left.b && right.b), nil
		}
		if !right.null && right.b {
			return boolScalar(true), nil
		}
		if left.null || right.null {
			return scalar{typ: vector.Bool, null: true}, nil
		}
		return boolScalar(left.b || right.b), nil
	}

	left, err := evalRow(n.Left, m, row)
	if err != nil {
		return scalar{}, err
	}
	right, err := evalRow(n.Right, m, row)
	if err != nil {
		return scalar{}, err
	}

	switch n.Kind {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return evalArith(n.Kind, left, right)
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		return evalCompare(n.Kind, left, right)
	case ast.OpLike:
		return evalLike(left, right)
	case ast.OpConcat:
		if left.null || right.null {
			return scalar{typ: vector.String, null: true}, nil
		}
		return strScalar(left.s + right.s), nil
	default:
		return scalar{}, cqlerr.New(cqlerr.InternalError, "expr: unknown binary op %d", n.Kind)
	}
}

func evalArith(kind ast.BinaryOpKind, l, r scalar) (scalar, error) {
	resultType := vector.Int64
	if l.typ == vector.Float64 || r.typ == vector.Float64 {
		resultType = vector.Float64
	}
	if l.null || r.null {
		return scalar{typ: resultType, null: true}, nil
	}
	if !isNumeric(l.typ) || !isNumeric(r.typ) {
		return scalar{}, cqlerr.New(cqlerr.TypeMismatch, "expr: arithmetic requires numeric operands, got %s and %s", l.typ, r.typ)
	}
	if resultType == vector.Int64 {
		switch kind {
		case ast.OpAdd:
			return intScalar(l.i + r.i), nil
		case ast.OpSub:
			return intScalar(l.i - r.i), nil
		case ast.OpMul:
			return intScalar(l.i * r.i), nil
		case ast.OpDiv:
			if r.i == 0 {
				return scalar{}, cqlerr.New(cqlerr.InvalidInput, "expr: division by zero")
			}
			return intScalar(l.i / r.i), nil
		case ast.OpMod:
			if r.i == 0 {
				return scalar{}, cqlerr.New(cqlerr.InvalidInput, "expr: modulo by zero")
			}
			return intScalar(l.i % r.i), nil
		}
	}
	lf, rf := l.asFloat(), r.asFloat()
	switch kind {
	case ast.OpAdd:
		return fltScalar(lf + rf), nil
	case ast.OpSub:
		return fltScalar(lf - rf), nil
	case ast.OpMul:
		return fltScalar(lf * rf), nil
	case ast.OpDiv:
		if rf == 0 {
			return scalar{}, cqlerr.New(cqlerr.InvalidInput, "expr: division by zero")
		}
		return fltScalar(lf / rf), nil
	default:
		return scalar{}, cqlerr.New(cqlerr.UnsupportedOperation, "expr: modulo is not defined for floating point operands")
	}
}

func evalCompare(kind ast.BinaryOpKind, l, r scalar) (scalar, error) {
	if l.null || r.null {
		return scalar{typ: vector.Bool, null: true}, nil
	}
	var cmp int
	switch {
	case isNumeric(l.typ) && isNumeric(r.typ):
		lf, rf := l.asFloat(), r.asFloat()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case l.typ == vector.String && r.typ == vector.String:
		cmp = strings.Compare(l.s, r.s)
	case l.typ == vector.Bool && r.typ == vector.Bool:
		switch {
		case l.b == r.b:
			cmp = 0
		case !l.b:
			cmp = -1
		default:
			cmp = 1
		}
	default:
		return scalar{}, cqlerr.New(cqlerr.TypeMismatch, "expr: cannot compare %s with %s", l.typ, r.typ)
	}
	var result bool
	switch kind {
	case ast.OpEq:
		result = cmp == 0
	case ast.OpNeq:
		result = cmp != 0
	case ast.OpLt:
		result = cmp < 0
	case ast.OpLte:
		result = cmp <= 0
	case ast.OpGt:
		result = cmp > 0
	case ast.OpGte:
		result = cmp >= 0
	}
	return boolScalar(result), nil
}

func evalLike(l, r scalar) (scalar, error) {
	if l.null || r.null {
		return scalar{typ: vector.Bool, null: true}, nil
	}
	if l.typ != vector.String || r.typ != vector.String {
		return scalar{}, cqlerr.New(cqlerr.TypeMismatch, "expr: LIKE requires string operands")
	}
	return boolScalar(matchLike(l.s, r.s)), nil
}

// matchLike implements SQL LIKE with '%' (any run) and '_' (single char)
// wildcards via simple recursive backtracking; patterns in this engine's
// seed scenarios are short, so this is never a hot path worth a DFA.
func matchLike(s, pattern string) bool {
	var match func(si, pi int) bool
	match = func(si, pi int) bool {
		if pi == len(pattern) {
			return si == len(s)
		}
		switch pattern[pi] {
		case '%':
			for i := si; i <= len(s); i++ {
				if match(i, pi+1) {
					return true
				}
			}
			return false
		case '_':
			return si < len(s) && match(si+1, pi+1)
		default:
			return si < len(s) && s[si] == pattern[pi] && match(si+1, pi+1)
		}
	}
	return match(0, 0)
}

func evalIn(n *ast.In, m *vector.Morsel, row int) (scalar, error) {
	if n.Subquery != nil {
		return scalar{}, cqlerr.New(cqlerr.UnsupportedOperation, "expr: IN (subquery) must be rewritten to a join/semi-join by the planner before evaluation")
	}
	v, err := evalRow(n.Expr, m, row)
	if err != nil {
		return scalar{}, err
	}
	if v.null {
		return scalar{typ: vector.Bool, null: true}, nil
	}
	found := false
	anyNull := false
	for _, item := range n.List {
		iv, err := evalRow(item, m, row)
		if err != nil {
			return scalar{}, err
		}
		if iv.null {
			anyNull = true
			continue
		}
		cmp, err := evalCompare(ast.OpEq, v, iv)
		if err != nil {
			return scalar{}, err
		}
		if cmp.b {
			found = true
			break
		}
	}
	result := found
	if n.Negate {
		result = !found
	}
	if !found && anyNull {
		return scalar{typ: vector.Bool, null: true}, nil
	}
	return boolScalar(result), nil
}

func evalScalarFn(n *ast.ScalarFn, m *vector.Morsel, row int) (scalar, error) {
	switch strings.ToUpper(n.Name) {
	case "STARTS_WITH":
		if len(n.Args) != 2 {
			return scalar{}, cqlerr.New(cqlerr.InvalidInput, "expr: STARTS_WITH takes 2 arguments")
		}
		a, err := evalRow(n.Args[0], m, row)
		if err != nil {
			return scalar{}, err
		}
		b, err := evalRow(n.Args[1], m, row)
		if err != nil {
			return scalar{}, err
		}
		if a.null || b.null {
			return scalar{typ: vector.Bool, null: true}, nil
		}
		return boolScalar(strings.HasPrefix(a.s, b.s)), nil

	case "UPPER":
		a, err := evalRow(n.Args[0], m, row)
		if err != nil {
			return scalar{}, err
		}
		if a.null {
			return scalar{typ: vector.String, null: true}, nil
		}
		return strScalar(strings.ToUpper(a.s)), nil

	case "LOWER":
		a, err := evalRow(n.Args[0], m, row)
		if err != nil {
			return scalar{}, err
		}
		if a.null {
			return scalar{typ: vector.String, null: true}, nil
		}
		return strScalar(strings.ToLower(a.s)), nil

	case "EXTRACT", "SUBSTRING":
		return scalar{}, cqlerr.New(cqlerr.UnsupportedOperation, "expr: %s is not implemented", n.Name)

	default:
		return scalar{}, cqlerr.New(cqlerr.UnsupportedOperation, "expr: unknown scalar function %q", n.Name)
	}
}

func castScalar(v scalar, typeName string) (scalar, error) {
	if v.null {
		return scalar{typ: v.typ, null: true}, nil
	}
	switch strings.ToUpper(typeName) {
	case "INT", "INT64", "BIGINT":
		switch v.typ {
		case vector.Int64:
			return v, nil
		case vector.Float64:
			return intScalar(int64(v.f)), nil
		}
	case "FLOAT", "FLOAT64", "DOUBLE":
		switch v.typ {
		case vector.Int64:
			return fltScalar(float64(v.i)), nil
		case vector.Float64:
			return v, nil
		}
	case "STRING", "VARCHAR", "TEXT":
		return strScalar(scalarToString(v)), nil
	}
	return scalar{}, cqlerr.New(cqlerr.TypeMismatch, "expr: cannot cast %s to %s", v.typ, typeName)
}

func scalarToString(v scalar) string {
	switch v.typ {
	case vector.String:
		return v.s
	case vector.Bool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
