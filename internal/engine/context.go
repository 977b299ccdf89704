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

// Package engine is the query facade: it wires the temporal binder, the
// logical planner, the optimizer, the physical builder, and the cursor
// behind one entry point, the same way plugin/tfd/pipeline.go wires its
// S-lane and V-lane behind Start/Stop/Handle. No module-level mutable
// state lives here (spec §5); every query carries its own QueryContext.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coreql/internal/connector"
	"coreql/internal/stats"
	"coreql/internal/temporal"
)

// SchemaCache is the narrow surface QueryContext needs from an optional
// cache handle: small-dimension/schema lookups keyed by relation name.
// Defining a narrow interface here (rather than importing *redis.Client
// directly into every caller) mirrors persistence.RedisEvaler in
// internal/ratelimiter/persistence/redis.go — callers depend on the
// capability, not the concrete client.
type SchemaCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// QueryContext is the explicit-handle bag spec §5 requires in place of
// global state: every cursor is constructed from one, and holds the
// connector registry, the optional schema cache, the logger, the
// per-query statistics collector, and the memory budget.
type QueryContext struct {
	Connectors *connector.Registry
	Cache      SchemaCache // nil disables caching
	Logger     *zap.Logger
	Stats      *stats.Collector
	Budget     *Budget
	Binder     *temporal.Binder

	// MaxNestedLoopRows is copied into physical.BuildParams, but the
	// physical builder never reads it: its choice between NestedLoopJoin
	// and HashJoin depends only on the join variant and on whether the ON
	// clause yields an equi-key, never on input row counts.
	MaxNestedLoopRows int64

	// BloomFalsePositiveRate sizes HashJoin's build-side bloom filter
	// (spec §4.2 default: <=5%).
	BloomFalsePositiveRate float64

	// Timeout bounds a single Execute call's cursor lifetime; zero
	// disables the deadline and leaves cancellation to the caller's own
	// context or an explicit Cursor.Cancel().
	Timeout time.Duration
}

// Options configures New.
type Options struct {
	Adapter           string // connector adapter name; "" / "demo" for the built-in relations
	ExtraConnectors   map[string]connector.Connector
	Cache             SchemaCache
	Logger            *zap.Logger
	MemoryBudgetBytes int64
	Today             time.Time // anchors the temporal binder; zero value uses time.Now().UTC()
	NamedRanges       temporal.NamedRanges
	Timeout           time.Duration
}

// New constructs a QueryContext from Options, the one place this module
// assembles its external collaborators (spec §5's "accessed via explicit
// handles passed in at cursor construction").
func New(opts Options) (*QueryContext, error) {
	registry, err := connector.NewRegistry(opts.Adapter, opts.ExtraConnectors)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	today := opts.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}
	return &QueryContext{
		Connectors:             registry,
		Cache:                  opts.Cache,
		Logger:                 logger,
		Stats:                  stats.New(),
		Budget:                 NewBudget(opts.MemoryBudgetBytes),
		Binder:                 temporal.NewBinder(today, opts.NamedRanges),
		MaxNestedLoopRows:      1000,
		BloomFalsePositiveRate: 0.05,
		Timeout:                opts.Timeout,
	}, nil
}

// SupportsTemporal adapts the registry's per-relation capability lookup
// into the plan.SupportsTemporal function the logical builder needs,
// treating an unregistered relation as not supporting it rather than
// failing at bind time (the builder surfaces UnresolvedName later, when
// it actually tries to resolve the relation against a connector).
func (qc *QueryContext) SupportsTemporal(relationName string) bool {
	c, ok := qc.Connectors.Lookup(relationName)
	if !ok {
		return false
	}
	return c.Supports(connector.TemporalPartitioning)
}
