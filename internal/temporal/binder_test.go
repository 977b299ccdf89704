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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coreql/pkg/ast"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	require.NoError(t, err)
	return d
}

func TestBindExplicitDate(t *testing.T) {
	b := NewBinder(mustDate(t, "2026-07-29"), nil)
	ref := &ast.TableRef{Name: "$planets", For: &ast.ForClause{Kind: ast.ForDate, Date: "1846-01-01"}}
	rng, ok, err := b.Bind(ref, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1846-01-01", FormatDate(rng.Start))
	require.Equal(t, rng.Start, rng.End)
}

func TestBindImpliedTodayOnlyWhenSupported(t *testing.T) {
	today := mustDate(t, "2026-07-29")
	b := NewBinder(today, nil)

	ref := &ast.TableRef{Name: "$planets"}
	rng, ok, err := b.Bind(ref, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, today, rng.Start)

	_, ok, err = b.Bind(ref, false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBindDatesBetween(t *testing.T) {
	b := NewBinder(mustDate(t, "2026-07-29"), nil)
	ref := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDatesBetween, Start: "2020-01-01", End: "2020-01-31"}}
	rng, ok, err := b.Bind(ref, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2020-01-01..2020-01-31", rng.String())
}

func TestBindDatesBetweenRejectsInvertedRange(t *testing.T) {
	b := NewBinder(mustDate(t, "2026-07-29"), nil)
	ref := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDatesBetween, Start: "2020-02-01", End: "2020-01-01"}}
	_, _, err := b.Bind(ref, false)
	require.Error(t, err)
}

func TestBindDatesInNamedRange(t *testing.T) {
	named := NamedRanges{"q1-2020": {Start: mustDate(t, "2020-01-01"), End: mustDate(t, "2020-03-31")}}
	b := NewBinder(mustDate(t, "2026-07-29"), named)
	ref := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDatesIn, NamedRange: "q1-2020"}}
	rng, ok, err := b.Bind(ref, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2020-01-01..2020-03-31", rng.String())
}

func TestBindDatesInUnknownRangeFails(t *testing.T) {
	b := NewBinder(mustDate(t, "2026-07-29"), nil)
	ref := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDatesIn, NamedRange: "missing"}}
	_, _, err := b.Bind(ref, false)
	require.Error(t, err)
}

func TestBindLastNDays(t *testing.T) {
	b := NewBinder(mustDate(t, "2026-07-29"), nil)
	ref := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForLastNDays, N: 7}}
	rng, ok, err := b.Bind(ref, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2026-07-23", FormatDate(rng.Start))
	require.Equal(t, "2026-07-29", FormatDate(rng.End))
}

func TestBindPlaceholders(t *testing.T) {
	b := NewBinder(mustDate(t, "2026-07-29"), nil)

	yesterday := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDate, Placeholder: "YESTERDAY"}}
	rng, _, err := b.Bind(yesterday, false)
	require.NoError(t, err)
	require.Equal(t, "2026-07-28", FormatDate(rng.Start))

	thisMonth := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDate, Placeholder: "THIS_MONTH"}}
	rng, _, err = b.Bind(thisMonth, false)
	require.NoError(t, err)
	require.Equal(t, "2026-07-01", FormatDate(rng.Start))

	lastMonth := &ast.TableRef{For: &ast.ForClause{Kind: ast.ForDate, Placeholder: "LAST_MONTH"}}
	rng, _, err = b.Bind(lastMonth, false)
	require.NoError(t, err)
	require.Equal(t, "2026-06-01", FormatDate(rng.Start))
}

func TestCountReservedWordUsesIgnoresExtractAndSubstring(t *testing.T) {
	e := &ast.ScalarFn{
		Name: "EXTRACT",
		Args: []ast.Expr{
			&ast.Literal{Kind: ast.LitString, Str: "YEAR"},
			&ast.ScalarFn{Name: "SUBSTRING", Args: []ast.Expr{&ast.ColumnRef{Name: "x"}}},
		},
	}
	require.Equal(t, 2, CountReservedWordUses(e))
}
