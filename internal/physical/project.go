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
	"fmt"

	"coreql/internal/expr"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// ProjectItem is one output column: an expression plus the name it binds
// to downstream (the SelectItem's alias, or a synthesized name for an
// unaliased expression). Star marks a `SELECT *` / `SELECT t.*` item,
// which is expanded against the input's concrete schema in Open (the
// Builder can't expand it itself, since the input schema isn't known
// until the operator tree is opened) — in which case Expr/Name are
// ignored. Table-qualified star expansion takes every input column,
// qualification is not tracked past the logical planner, so a `t.*` in a
// multi-relation join expands the same as a bare `*`.
type ProjectItem struct {
	Expr  ast.Expr
	Name  string
	Star  bool
	Table string
}

// ProjectOp evaluates a list of scalar expressions against each input
// morsel to produce the output column set (spec §4.6). Star items are
// expanded against the input schema in Open (see ProjectItem); every
// other item is a single expression.
type ProjectOp struct {
	base
	input Operator
	items []ProjectItem
	stats *stats.Collector
}

// NewProject wraps input, computing items for every morsel it produces.
func NewProject(input Operator, items []ProjectItem, st *stats.Collector) *ProjectOp {
	return &ProjectOp{base: newBase("Project"), input: input, items: items, stats: st}
}

func (p *ProjectOp) Open(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if err := p.input.Open(ctx); err != nil {
		return err
	}
	inSchema := p.input.Schema()
	p.items = expandStars(p.items, inSchema)
	fields := make([]vector.Field, len(p.items))
	for i, it := range p.items {
		t, err := expr.InferType(it.Expr, &inSchema)
		if err != nil {
			return err
		}
		fields[i] = vector.Field{Name: it.Name, Type: t, Nullable: true}
	}
	p.schema = vector.Schema{Fields: fields}
	return nil
}

// expandStars replaces every Star item with one ColumnRef item per field
// of inSchema, preserving the position of the star among any concrete
// items around it.
func expandStars(items []ProjectItem, inSchema vector.Schema) []ProjectItem {
	hasStar := false
	for _, it := range items {
		if it.Star {
			hasStar = true
			break
		}
	}
	if !hasStar {
		return items
	}
	out := make([]ProjectItem, 0, len(items)+len(inSchema.Fields))
	for _, it := range items {
		if !it.Star {
			out = append(out, it)
			continue
		}
		for _, f := range inSchema.Fields {
			out = append(out, ProjectItem{Expr: &ast.ColumnRef{Name: f.Name}, Name: f.Name})
		}
	}
	return out
}

func (p *ProjectOp) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := p.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Project")
	}
	defer stats.Timer(p.stats, "Project")()

	m, err := p.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		p.finish()
		return nil, nil
	}
	cols := make([]*vector.Vector, len(p.items))
	for i, it := range p.items {
		v, err := expr.Eval(it.Expr, m)
		if err != nil {
			return nil, fmt.Errorf("physical: project %s: %w", it.Name, err)
		}
		cols[i] = v
	}
	out, err := vector.NewMorsel(p.schema, cols)
	if err != nil {
		return nil, err
	}
	p.stats.EmittedRows("Project", out.NumRows())
	return out, nil
}

func (p *ProjectOp) Close() error {
	p.close()
	return p.input.Close()
}

func (p *ProjectOp) Cancel() {
	p.cancel()
	p.input.Cancel()
}
