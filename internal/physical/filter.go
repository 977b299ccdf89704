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

package physical

import (
	"context"

	"coreql/internal/expr"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// FilterOp evaluates predicate against each input morsel, three-valued
// (NULL treated as not-kept, per spec §4.3) and skips forward past any
// resulting empty morsel rather than emitting it (spec §4.6).
type FilterOp struct {
	base
	input     Operator
	predicate ast.Expr
	stats     *stats.Collector
}

// NewFilter wraps input, dropping rows predicate evaluates false/null.
func NewFilter(input Operator, predicate ast.Expr, st *stats.Collector) *FilterOp {
	return &FilterOp{base: newBase("Filter"), input: input, predicate: predicate, stats: st}
}

func (f *FilterOp) Open(ctx context.Context) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if err := f.input.Open(ctx); err != nil {
		return err
	}
	f.schema = f.input.Schema()
	return nil
}

func (f *FilterOp) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := f.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Filter")
	}
	defer stats.Timer(f.stats, "Filter")()

	for {
		m, err := f.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			f.finish()
			return nil, nil
		}
		mask, err := expr.EvalMask(f.predicate, m)
		if err != nil {
			return nil, err
		}
		cols := make([]*vector.Vector, len(m.Columns))
		for i, c := range m.Columns {
			filtered, err := vector.Filter(c, mask)
			if err != nil {
				return nil, err
			}
			cols[i] = filtered
		}
		out, err := vector.NewMorsel(m.Schema, cols)
		if err != nil {
			return nil, err
		}
		if emptyMorselOK(out) {
			continue
		}
		f.stats.EmittedRows("Filter", out.NumRows())
		return out, nil
	}
}

func (f *FilterOp) Close() error {
	f.close()
	return f.input.Close()
}

func (f *FilterOp) Cancel() {
	f.cancel()
	f.input.Cancel()
}
