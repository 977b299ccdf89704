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

// Package temporal implements the pre-plan step that resolves each table
// reference's FOR / FOR DATES BETWEEN / FOR DATES IN / FOR DATES SINCE /
// FOR LAST n DAYS clause into a concrete (start, end) UTC calendar-day
// range attached to that reference, before the logical planner ever sees
// the statement.
package temporal

import (
	"fmt"
	"time"

	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
)

const dateLayout = "2006-01-02"

// Range is a resolved, inclusive [Start, End] UTC calendar-day range.
type Range struct {
	Start time.Time
	End   time.Time
}

// NamedRanges resolves `FOR DATES IN <name>` clauses; callers (typically
// the connector's temporal metadata) register the ranges a deployment
// understands. Binder has no built-in named ranges of its own.
type NamedRanges map[string]Range

// Binder resolves ForClauses against a fixed notion of "today" (injected
// rather than read from time.Now, so binding is deterministic and
// testable) and a table of named ranges.
type Binder struct {
	Today time.Time // must be UTC, midnight-truncated
	Named NamedRanges
}

// NewBinder constructs a Binder anchored at the given UTC day.
func NewBinder(today time.Time, named NamedRanges) *Binder {
	return &Binder{Today: today.UTC().Truncate(24 * time.Hour), Named: named}
}

// Bind resolves a table reference's temporal clause. supportsTemporal
// indicates whether the reference's connector advertises
// temporal_partitioning; per spec, FOR TODAY is implied only in that case
// when no explicit clause was given, otherwise no temporal filter is added
// (ok is false, meaning: no range restriction).
func (b *Binder) Bind(ref *ast.TableRef, supportsTemporal bool) (rng Range, ok bool, err error) {
	if ref.For == nil {
		if supportsTemporal {
			return Range{Start: b.Today, End: b.Today}, true, nil
		}
		return Range{}, false, nil
	}
	rng, err = b.resolve(ref.For)
	if err != nil {
		return Range{}, false, err
	}
	return rng, true, nil
}

func (b *Binder) resolve(f *ast.ForClause) (Range, error) {
	switch f.Kind {
	case ast.ForDate:
		d, err := b.resolveOneDate(f.Date, f.Placeholder)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: d, End: d}, nil

	case ast.ForDatesBetween:
		start, err := b.resolveOneDate(f.Start, "")
		if err != nil {
			return Range{}, err
		}
		end, err := b.resolveOneDate(f.End, "")
		if err != nil {
			return Range{}, err
		}
		if end.Before(start) {
			return Range{}, cqlerr.New(cqlerr.InvalidInput, "FOR DATES BETWEEN: end %s before start %s", f.End, f.Start)
		}
		return Range{Start: start, End: end}, nil

	case ast.ForDatesIn:
		rng, found := b.Named[f.NamedRange]
		if !found {
			return Range{}, cqlerr.New(cqlerr.InvalidInput, "FOR DATES IN: unknown named range %q", f.NamedRange)
		}
		return rng, nil

	case ast.ForDatesSince:
		start, err := b.resolveOneDate(f.Date, "")
		if err != nil {
			return Range{}, err
		}
		return Range{Start: start, End: b.Today}, nil

	case ast.ForLastNDays:
		if f.N <= 0 {
			return Range{}, cqlerr.New(cqlerr.InvalidInput, "FOR LAST n DAYS: n must be positive, got %d", f.N)
		}
		start := b.Today.AddDate(0, 0, -(f.N - 1))
		return Range{Start: start, End: b.Today}, nil

	default:
		return Range{}, cqlerr.New(cqlerr.InternalError, "temporal: unknown ForKind %d", f.Kind)
	}
}

func (b *Binder) resolveOneDate(literal, placeholder string) (time.Time, error) {
	if placeholder != "" {
		return b.resolvePlaceholder(placeholder)
	}
	if literal == "" {
		return time.Time{}, cqlerr.New(cqlerr.InvalidInput, "temporal: empty date literal")
	}
	switch literal {
	case "TODAY", "YESTERDAY", "THIS_MONTH", "LAST_MONTH":
		return b.resolvePlaceholder(literal)
	}
	d, err := time.ParseInLocation(dateLayout, literal, time.UTC)
	if err != nil {
		return time.Time{}, cqlerr.Wrap(cqlerr.InvalidInput, err, "temporal: invalid date literal %q, want YYYY-MM-DD", literal)
	}
	return d, nil
}

func (b *Binder) resolvePlaceholder(p string) (time.Time, error) {
	switch p {
	case "TODAY":
		return b.Today, nil
	case "YESTERDAY":
		return b.Today.AddDate(0, 0, -1), nil
	case "THIS_MONTH":
		return time.Date(b.Today.Year(), b.Today.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case "LAST_MONTH":
		firstThisMonth := time.Date(b.Today.Year(), b.Today.Month(), 1, 0, 0, 0, 0, time.UTC)
		lastMonth := firstThisMonth.AddDate(0, -1, 0)
		return lastMonth, nil
	default:
		return time.Time{}, cqlerr.New(cqlerr.InvalidInput, "temporal: unknown placeholder %q", p)
	}
}

// FormatDate renders a resolved day in the wire format used by scenario 4
// of the seed test suite and by EXPLAIN output.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// String renders a resolved range for EXPLAIN/debugging.
func (r Range) String() string {
	if r.Start.Equal(r.End) {
		return FormatDate(r.Start)
	}
	return fmt.Sprintf("%s..%s", FormatDate(r.Start), FormatDate(r.End))
}
