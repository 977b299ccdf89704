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

// InferType determines the vector.Type Eval will produce for e without
// evaluating any row, so Eval can allocate the right builder up front.
func InferType(e ast.Expr, schema *vector.Schema) (vector.Type, error) {
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.LitNull:
			return vector.Int64, nil // untyped null defaults to Int64 storage
		case ast.LitBool:
			return vector.Bool, nil
		case ast.LitInt:
			return vector.Int64, nil
		case ast.LitFloat:
			return vector.Float64, nil
		case ast.LitString:
			return vector.String, nil
		}
	case *ast.ColumnRef:
		idx := schema.IndexOf(n.Name)
		if idx < 0 {
			return 0, cqlerr.New(cqlerr.UnresolvedName, "expr: unknown column %q", n.Name)
		}
		return widen(schema.Fields[idx].Type), nil
	case *ast.UnaryOp:
		switch n.Kind {
		case ast.OpIsNull, ast.OpIsNotNull, ast.OpIsTrue, ast.OpIsFalse, ast.OpNot:
			return vector.Bool, nil
		case ast.OpNeg:
			return InferType(n.Arg, schema)
		}
	case *ast.BinaryOp:
		switch n.Kind {
		case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte, ast.OpAnd, ast.OpOr, ast.OpLike:
			return vector.Bool, nil
		case ast.OpConcat:
			return vector.String, nil
		default: // arithmetic
			lt, err := InferType(n.Left, schema)
			if err != nil {
				return 0, err
			}
			rt, err := InferType(n.Right, schema)
			if err != nil {
				return 0, err
			}
			if lt == vector.Float64 || rt == vector.Float64 {
				return vector.Float64, nil
			}
			return vector.Int64, nil
		}
	case *ast.Case:
		if len(n.Whens) > 0 {
			return InferType(n.Whens[0].Then, schema)
		}
		if n.Else != nil {
			return InferType(n.Else, schema)
		}
		return vector.Int64, nil
	case *ast.In:
		return vector.Bool, nil
	case *ast.Cast:
		return typeFromName(n.Type)
	case *ast.Try:
		return InferType(n.Expr, schema)
	case *ast.ScalarFn:
		switch strings.ToUpper(n.Name) {
		case "STARTS_WITH":
			return vector.Bool, nil
		case "UPPER", "LOWER":
			return vector.String, nil
		}
	}
	return 0, cqlerr.New(cqlerr.UnsupportedOperation, "expr: cannot infer type of %T", e)
}

// widen maps narrow integer/float storage types onto the two numeric
// currencies the evaluator computes with (Int64, Float64); dates and
// timestamps stay Int64-shaped (days/microseconds) for arithmetic purposes.
func widen(t vector.Type) vector.Type {
	switch t {
	case vector.Int8, vector.Int16, vector.Int32, vector.Date32, vector.Timestamp64:
		return vector.Int64
	case vector.Float32:
		return vector.Float64
	case vector.Binary:
		return vector.String
	default:
		return t
	}
}

func typeFromName(name string) (vector.Type, error) {
	switch strings.ToUpper(name) {
	case "INT", "INT64", "BIGINT":
		return vector.Int64, nil
	case "FLOAT", "FLOAT64", "DOUBLE":
		return vector.Float64, nil
	case "STRING", "VARCHAR", "TEXT":
		return vector.String, nil
	case "BOOL", "BOOLEAN":
		return vector.Bool, nil
	default:
		return 0, cqlerr.New(cqlerr.UnsupportedOperation, "expr: unknown cast target type %q", name)
	}
}
