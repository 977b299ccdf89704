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

// Package physical implements the pull-based, morsel-at-a-time operator
// graph (spec §4.6): one concrete Operator per logical plan.Node, wired
// together by Builder. Every operator honors the state machine
//
//	Created --Open()--> Draining --Next()*--> Exhausted --Close()--> Closed
//
// Cancel does not change the state: it sets a flag, and every later Next
// on an operator that has not reached end-of-stream returns Cancelled.
// Operators that buffer state (join hash tables, sort/heap buffers,
// group-state maps) drop it in Close; neither the (nil, nil)
// end-of-stream return from Next nor Cancel releases it.
package physical

import (
	"context"
	"sync"

	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// State is one node of the operator lifecycle state machine.
type State uint8

const (
	Created State = iota
	Draining
	Exhausted
	Closed
)

// Operator is the pull contract every physical node implements. Next
// returns (nil, nil) at end-of-stream; calling Next after Close fails with
// InvalidState (after Cancel it returns Cancelled instead, see Cancel).
type Operator interface {
	// Open transitions Created -> Draining, allocating any state needed
	// before the first Next call (e.g. a join's build phase).
	Open(ctx context.Context) error

	// Next pulls the next morsel, or (nil, nil) at end-of-stream.
	Next(ctx context.Context) (*vector.Morsel, error)

	// Close releases buffered state and transitions to Closed. Idempotent.
	Close() error

	// Cancel requests cooperative shutdown: the operator's in-flight Next
	// completes, and every subsequent Next returns Cancelled.
	Cancel()

	// Schema returns the operator's output schema, valid after Open.
	Schema() vector.Schema
}

// base centralizes the state machine every operator embeds, so individual
// operators only implement Open/Next's actual logic and call base's
// helpers to enforce legal transitions (spec §4.6's illegal-transition
// rule: "next() after Closed fails with InvalidState").
type base struct {
	mu        sync.Mutex
	state     State
	cancelled bool
	name      string
	schema    vector.Schema
}

func newBase(name string) base { return base{name: name, state: Created} }

// checkOpen validates and performs the Created->Draining transition.
func (b *base) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Created {
		return cqlerr.New(cqlerr.InvalidState, "physical: %s: Open called in state %d", b.name, b.state)
	}
	b.state = Draining
	return nil
}

// checkNext validates that Next is legal to call right now and reports
// whether the operator has been cancelled, in which case Next must
// return a Cancelled error instead of pulling further.
func (b *base) checkNext() (cancelled bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Closed {
		return false, cqlerr.New(cqlerr.InvalidState, "physical: %s: Next called after Close", b.name)
	}
	if b.state == Exhausted {
		return false, nil
	}
	return b.cancelled, nil
}

// finish marks the operator Exhausted (Next will return (nil,nil) forever
// after, without re-running the underlying logic).
func (b *base) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Exhausted
}

func (b *base) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
}

func (b *base) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = true
}

func (b *base) Schema() vector.Schema { return b.schema }

// emptyMorselOK reports whether m has zero rows, the signal Filter (and
// anything chained after it) uses to skip forward to the next non-empty
// morsel instead of propagating empty batches downstream.
func emptyMorselOK(m *vector.Morsel) bool { return m == nil || m.NumRows() == 0 }

// cancelledErr is the uniform error every operator's Next returns once
// Cancel has been observed.
func cancelledErr(operator string) error {
	return cqlerr.New(cqlerr.Cancelled, "physical: %s cancelled", operator)
}
