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
	"fmt"

	"coreql/pkg/ast"
)

// FingerprintExpr computes a structural hash of e's shape (node kinds,
// operator kinds, column names, literal values). No code in this module
// calls it; Node.CacheFingerprint can hold its result. Two structurally identical
// expressions always fingerprint equal; distinct expressions are not
// guaranteed to fingerprint distinct (this is a dispatch key, not an
// identity check).
func FingerprintExpr(e ast.Expr) uint64 {
	h := fnvOffset
	fingerprintInto(&h, e)
	return h
}

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

func fnvByte(h *uint64, b byte) {
	*h ^= uint64(b)
	*h *= fnvPrime
}

func fnvString(h *uint64, s string) {
	for i := 0; i < len(s); i++ {
		fnvByte(h, s[i])
	}
}

func fingerprintInto(h *uint64, e ast.Expr) {
	switch n := e.(type) {
	case nil:
		fnvByte(h, 0)
	case *ast.Literal:
		fnvByte(h, 1)
		fnvByte(h, byte(n.Kind))
		fnvString(h, fmt.Sprint(n.Bool, n.Int, n.Flt, n.Str))
	case *ast.ColumnRef:
		fnvByte(h, 2)
		fnvString(h, n.Table+"."+n.Name)
	case *ast.Parameter:
		fnvByte(h, 3)
		fnvString(h, n.Name)
	case *ast.ScalarFn:
		fnvByte(h, 4)
		fnvString(h, n.Name)
		for _, a := range n.Args {
			fingerprintInto(h, a)
		}
	case *ast.AggregateFn:
		fnvByte(h, 5)
		fnvString(h, n.Name)
		for _, a := range n.Args {
			fingerprintInto(h, a)
		}
	case *ast.BinaryOp:
		fnvByte(h, 6)
		fnvByte(h, byte(n.Kind))
		fingerprintInto(h, n.Left)
		fingerprintInto(h, n.Right)
	case *ast.UnaryOp:
		fnvByte(h, 7)
		fnvByte(h, byte(n.Kind))
		fingerprintInto(h, n.Arg)
	case *ast.Case:
		fnvByte(h, 8)
		for _, w := range n.Whens {
			fingerprintInto(h, w.When)
			fingerprintInto(h, w.Then)
		}
		fingerprintInto(h, n.Else)
	case *ast.In:
		fnvByte(h, 9)
		fingerprintInto(h, n.Expr)
		for _, item := range n.List {
			fingerprintInto(h, item)
		}
	case *ast.Cast:
		fnvByte(h, 10)
		fnvString(h, n.Type)
		fingerprintInto(h, n.Expr)
	case *ast.Try:
		fnvByte(h, 11)
		fingerprintInto(h, n.Expr)
	default:
		fnvByte(h, 255)
	}
}
