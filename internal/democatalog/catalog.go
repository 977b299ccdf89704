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

// Package democatalog is a fixed set of hand-built query trees over the
// three built-in demo relations ($planets, $satellites, $astronauts),
// shared by cmd/coreqlsh and cmd/coreqlbench. No parser sits in front of
// the engine (pkg/ast is an externally-produced shape, see SPEC_FULL.md
// §1), so this catalog plays the role a parsed-query fixture file would
// in a real deployment.
package democatalog

import "coreql/pkg/ast"

// Queries returns the catalog keyed by a short demo name. Most entries
// mirror one of the seed scenarios the engine's own test suite checks
// against, so running "explain <name>" through coreqlsh shows the same
// plan shape those tests assert on; planets_by_mass and
// veteran_astronauts are extra demos that no test checks.
func Queries() map[string]ast.Statement {
	return map[string]ast.Statement{
		"planets_by_mass": &ast.Select{
			Projections: []ast.SelectItem{
				{Expr: &ast.ColumnRef{Name: "name"}},
				{Expr: &ast.ColumnRef{Name: "massEarths"}},
			},
			From:    []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
			OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "massEarths"}, Desc: true}},
		},
		"ringed_planets": &ast.Select{
			Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
			From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
			Where:       &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "hasRings"}, Right: &ast.Literal{Kind: ast.LitBool, Bool: true}},
		},
		"moons_known_in_1846": &ast.Select{
			Projections: []ast.SelectItem{{Star: true}},
			From: []ast.TableExpr{&ast.TableRef{
				Name: "$planets",
				For:  &ast.ForClause{Kind: ast.ForDate, Date: "1846-01-01"},
			}},
			OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "id"}}},
		},
		"moon_counts_by_planet": &ast.Select{
			Projections: []ast.SelectItem{
				{Expr: &ast.ColumnRef{Table: "p", Name: "name"}, Alias: "planet"},
				{Expr: &ast.AggregateFn{Name: "COUNT", Args: []ast.Expr{&ast.ColumnRef{Table: "s", Name: "id"}}}, Alias: "moons"},
			},
			From: []ast.TableExpr{
				&ast.Join{
					Kind: ast.LeftOuterJoin,
					Left: &ast.TableRef{Name: "$planets", Alias: "p"},
					Right: &ast.TableRef{Name: "$satellites", Alias: "s"},
					On: &ast.BinaryOp{
						Kind: ast.OpEq,
						Left: &ast.ColumnRef{Table: "p", Name: "id"},
						Right: &ast.ColumnRef{Table: "s", Name: "planetId"},
					},
				},
			},
			GroupBy: []ast.Expr{&ast.ColumnRef{Table: "p", Name: "name"}},
			OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Table: "p", Name: "name"}}},
		},
		"largest_moons": &ast.Select{
			Projections: []ast.SelectItem{
				{Expr: &ast.ColumnRef{Name: "name"}},
				{Expr: &ast.ColumnRef{Name: "radiusKm"}},
			},
			From:    []ast.TableExpr{&ast.TableRef{Name: "$satellites"}},
			OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "radiusKm"}, Desc: true}},
			Limit:   limitOf(3),
		},
		"veteran_astronauts": &ast.Select{
			Projections: []ast.SelectItem{
				{Expr: &ast.ColumnRef{Name: "name"}},
				{Expr: &ast.ColumnRef{Name: "missionCount"}},
			},
			From: []ast.TableExpr{&ast.TableRef{Name: "$astronauts"}},
			Where: &ast.BinaryOp{
				Kind: ast.OpGt,
				Left: &ast.ColumnRef{Name: "missionCount"},
				Right: &ast.Literal{Kind: ast.LitInt, Int: 2},
			},
			OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "missionCount"}, Desc: true}},
		},
	}
}

func limitOf(n int64) *int64 { return &n }
