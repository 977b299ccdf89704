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

// Package optimizer rewrites a logical plan.Arena in place through six
// fixed, ordered phases (SPEC_FULL §4.5): expression simplification,
// predicate optimization, projection pushdown, join optimization,
// specialized fusions, and cleanup. Every phase runs its strategies to a
// local fixed point before the pipeline moves on; the pipeline itself
// never iterates phases against each other, keeping the rewrite order
// deterministic and idempotent on a second run.
package optimizer

import "coreql/internal/plan"

// Strategy is one named rewrite rule. Apply inspects (and may mutate in
// place) the node addressed by id within a and reports whether it changed
// anything. Mutating in place — rather than replacing the NodeID — keeps
// every other node's Children/Edge references valid (plan §4.4/§9).
type Strategy interface {
	Name() string
	Apply(a *plan.Arena, id plan.NodeID) bool
}

// maxFixedPointIterations bounds a phase's fixed-point loop so a buggy
// strategy that oscillates (undoes another strategy's change) cannot hang
// the pipeline; a correctly written phase converges in 2-3 passes.
const maxFixedPointIterations = 32

// Result carries the pipeline's rule-application counters, keyed by
// strategy name, for EXPLAIN rendering and stats export.
type Result struct {
	Counters map[string]int
}

// Run drives the full six-phase pipeline over a, mutating it in place,
// and returns the rule-application counters.
func Run(a *plan.Arena) (*Result, error) {
	counters := make(map[string]int)
	for _, phase := range phases() {
		if err := runPhase(a, phase, counters); err != nil {
			return nil, err
		}
	}
	return &Result{Counters: counters}, nil
}

// phases returns the six fixed, ordered rewrite phases. The grouping
// itself is the pipeline's contract: phases never interleave, and a
// phase's strategies all see a consistent tree shape left by the
// previous phase.
func phases() [][]Strategy {
	return [][]Strategy{
		{ConstantFold{}, BooleanSimplify{}, ConjunctionSplit{}},
		{CorrelatedFilterExtraction{}, PredicateRewrite{}, PredicatePushdown{}},
		{ProjectionPushdown{}},
		{CrossJoinToInner{}, BuildSideReorder{}},
		{DistinctPushdownIntoUnnest{}, SortLimitFusion{}, LimitPushdown{}},
		{CombineAdjacentFilters{}, PredicateCostOrdering{}, ConstantFold{}, RedundantProjectionRemoval{}},
	}
}

// runPhase applies every strategy in phase to every node reachable from
// a.Root(), repeating until a full pass makes no change (a local fixed
// point) grounded on the teacher's commitLoop/evictionLoop shape of
// looping a bounded scan until there is nothing left to do.
func runPhase(a *plan.Arena, phase []Strategy, counters map[string]int) error {
	if a.Root() == 0 {
		return nil
	}
	for iter := 0; iter < maxFixedPointIterations; iter++ {
		changedThisPass := false
		for _, id := range collectNodes(a) {
			for _, s := range phase {
				if s.Apply(a, id) {
					changedThisPass = true
					counters[s.Name()]++
				}
			}
		}
		if err := a.ValidateAcyclic(a.Root()); err != nil {
			return err
		}
		if !changedThisPass {
			return nil
		}
	}
	return nil
}

// collectNodes returns every NodeID reachable from a.Root() in pre-order.
// Recomputed on every pass since a strategy may have spliced in new
// nodes (e.g. conjunction splitting) or removed some from the reachable
// set (e.g. filter combination).
func collectNodes(a *plan.Arena) []plan.NodeID {
	var ids []plan.NodeID
	a.Walk(a.Root(), func(n *plan.Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}
