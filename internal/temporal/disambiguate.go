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

package temporal

import "coreql/pkg/ast"

// fromReusingFunctions are scalar functions whose argument grammar reuses
// the FROM/FOR keywords for an unrelated purpose: EXTRACT(field FROM expr)
// and SUBSTRING(expr FROM start [FOR len]). The external parser already
// resolves these into ordinary ScalarFn argument lists rather than
// TableRef.For clauses. CountReservedWordUses below counts calls to these
// functions anywhere in an expression tree; nothing in the engine calls it.
var fromReusingFunctions = map[string]bool{
	"EXTRACT":   true,
	"SUBSTRING": true,
}

// CountReservedWordUses walks e and counts how many scalar function calls
// at any nesting depth are one of the FROM/FOR-reusing functions. A
// correctly disambiguated AST never attaches an ast.ForClause inside such
// a call's Args, since FOR there binds a function argument, not a table
// reference.
func CountReservedWordUses(e ast.Expr) int {
	return countReservedWordUses(e, 0)
}

func countReservedWordUses(e ast.Expr, depth int) int {
	if e == nil {
		return 0
	}
	count := 0
	switch n := e.(type) {
	case *ast.ScalarFn:
		if fromReusingFunctions[n.Name] {
			count++
		}
		for _, a := range n.Args {
			count += countReservedWordUses(a, depth+1)
		}
	case *ast.AggregateFn:
		for _, a := range n.Args {
			count += countReservedWordUses(a, depth+1)
		}
	case *ast.BinaryOp:
		count += countReservedWordUses(n.Left, depth+1)
		count += countReservedWordUses(n.Right, depth+1)
	case *ast.UnaryOp:
		count += countReservedWordUses(n.Arg, depth+1)
	case *ast.Case:
		for _, w := range n.Whens {
			count += countReservedWordUses(w.When, depth+1)
			count += countReservedWordUses(w.Then, depth+1)
		}
		count += countReservedWordUses(n.Else, depth+1)
	case *ast.In:
		count += countReservedWordUses(n.Expr, depth+1)
		for _, item := range n.List {
			count += countReservedWordUses(item, depth+1)
		}
	case *ast.Cast:
		count += countReservedWordUses(n.Expr, depth+1)
	case *ast.Try:
		count += countReservedWordUses(n.Expr, depth+1)
	}
	return count
}
