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
	"context"

	"go.uber.org/zap"

	"coreql/internal/optimizer"
	"coreql/internal/physical"
	"coreql/internal/plan"
	"coreql/pkg/ast"
)

// Execute is the single entry point spec §6 describes as `execute(sql,
// parameters?) -> Cursor` (the SQL text itself has already become stmt by
// the time it reaches this module — tokenizing/parsing is an external
// collaborator, spec §1). It wires the temporal binder, the logical
// planner, the optimizer, and the physical builder behind one call, the
// same way plugin/tfd/pipeline.go's Pipeline wires its S-lane and V-lane
// behind Start/Stop/Handle.
func Execute(ctx context.Context, qc *QueryContext, stmt ast.Statement, parameters map[string]any) (*Cursor, error) {
	bound, err := bindParameters(stmt, parameters)
	if err != nil {
		return nil, err
	}

	arena, err := plan.Build(bound, qc.Binder, qc.SupportsTemporal)
	if err != nil {
		return nil, err
	}
	if err := arena.ValidateAcyclic(arena.Root()); err != nil {
		return nil, err
	}

	result, err := optimizer.Run(arena)
	if err != nil {
		return nil, err
	}
	qc.Stats.RecordRules(result.Counters)

	root := arena.Node(arena.Root())
	qc.Logger.Debug("plan built",
		zap.String("root_kind", root.Kind.String()),
		zap.Int("rule_applications", sumCounters(result.Counters)),
	)

	if root.Kind == plan.ExplainKind {
		return buildExplainCursor(ctx, arena, result.Counters, root, qc)
	}
	return buildCursor(ctx, arena, arena.Root(), result.Counters, qc)
}

// buildExplainCursor special-cases EXPLAIN/EXPLAIN ANALYZE (spec §6): a
// plain EXPLAIN never touches the physical layer at all, it only renders
// Arena.Explain text; EXPLAIN ANALYZE still builds and runs the wrapped
// statement (passing the Explain node's single child as the build root,
// per build.go's Build doc comment), which populates the query's stats
// collector; the rendered text is the same Arena.Explain rule-count tree
// either way, with no per-operator run figures in it.
func buildExplainCursor(ctx context.Context, arena *plan.Arena, counters map[string]int, explainNode *plan.Node, qc *QueryContext) (*Cursor, error) {
	if !explainNode.Analyze {
		return newExplainCursor(arena, counters, arena.Explain(counters)), nil
	}
	return buildCursor(ctx, arena, explainNode.Children[0], counters, qc)
}

func buildCursor(ctx context.Context, arena *plan.Arena, rootID plan.NodeID, counters map[string]int, qc *QueryContext) (*Cursor, error) {
	op, err := physical.Build(arena, rootID, physical.BuildParams{
		Connectors:             qc.Connectors,
		Stats:                  qc.Stats,
		MaxNestedLoopRows:      qc.MaxNestedLoopRows,
		BloomFalsePositiveRate: qc.BloomFalsePositiveRate,
		Parallelism:            1,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(ctx, op, arena, counters, qc), nil
}

func sumCounters(counters map[string]int) int {
	total := 0
	for _, n := range counters {
		total += n
	}
	return total
}
