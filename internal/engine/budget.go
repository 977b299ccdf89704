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
	"sync"

	"coreql/pkg/cqlerr"
)

// Budget tracks byte reservations against a per-query memory ceiling:
// TryReserve fails with OutOfResources once a reservation would exceed
// it. No operator reserves against it and Execute does not pass it to
// physical.Build, so it does not bound a query's memory use. It is a
// direct generalization of pkg/vsa/vsa.go's TryConsume/Commit
// check-then-reserve discipline from a scalar resource counter to a byte
// budget.
type Budget struct {
	mu        sync.Mutex
	limit     int64
	reserved  int64
	unlimited bool
}

// NewBudget constructs a Budget capped at limitBytes. A non-positive limit
// disables enforcement (unlimited), matching a host that chooses not to
// configure one.
func NewBudget(limitBytes int64) *Budget {
	if limitBytes <= 0 {
		return &Budget{unlimited: true}
	}
	return &Budget{limit: limitBytes}
}

// TryReserve attempts to reserve n additional bytes, returning an
// OutOfResources error if doing so would exceed the limit. Mirrors
// vsa.TryConsume's atomic check-then-increment shape.
func (b *Budget) TryReserve(n int64) error {
	if b == nil || b.unlimited {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserved+n > b.limit {
		return cqlerr.New(cqlerr.OutOfResources, "engine: query memory budget exceeded (%d + %d > %d bytes)", b.reserved, n, b.limit)
	}
	b.reserved += n
	return nil
}

// Release gives back n bytes previously reserved, e.g. when an operator
// closes and drops its buffered state (mirrors vsa.Commit's "move from
// volatile to settled" step, here simplified to a pure decrement since the
// budget has no persisted counterpart to reconcile against).
func (b *Budget) Release(n int64) {
	if b == nil || b.unlimited {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved -= n
	if b.reserved < 0 {
		b.reserved = 0
	}
}

// InUse reports the currently reserved byte count, for diagnostics.
func (b *Budget) InUse() int64 {
	if b == nil || b.unlimited {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reserved
}
