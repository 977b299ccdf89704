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

package connector

import (
	"context"
	"sync"

	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// Prefetcher issues parallel Read calls across a relation's independent
// units, one goroutine per worker slot, and reassembles the results in
// unit order so operators above the scan boundary see a single ordered
// logical stream (spec §5: "internal parallelism below a scan MUST NOT
// reorder rows within a blob/partition unit; ordering across units is
// unspecified unless ORDER BY is present" — this reassembly is therefore
// a convenience, not a correctness requirement, but a deterministic one
// costs nothing here).
//
// Lifecycle is adapted from internal/ratelimiter/core/worker.go's
// Start/Stop shape: a fixed pool of goroutines pulls work off a shared
// channel until it's drained or the caller cancels, guarded by a
// WaitGroup rather than a stopChan since prefetching is a one-shot
// operation bound to a single Scan, not a long-lived background service.
type Prefetcher struct {
	conn        Connector
	units       []Unit
	projection  []string
	filter      Filter
	limit       *int64
	parallelism int
}

// NewPrefetcher constructs a Prefetcher over units, reading each with the
// given pushdown projection/filter/limit. parallelism <= 1 degrades to
// fully sequential reads.
func NewPrefetcher(conn Connector, units []Unit, projection []string, filter Filter, limit *int64, parallelism int) *Prefetcher {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Prefetcher{conn: conn, units: units, projection: projection, filter: filter, limit: limit, parallelism: parallelism}
}

type unitResult struct {
	index   int
	morsels []*vector.Morsel
	err     error
}

// Run reads every unit (in parallel, up to p.parallelism at a time) and
// returns their morsels concatenated in unit order. Every unit is read
// even after one fails; if any failed, Run returns the error of the
// lowest-index failing unit and no morsels.
func (p *Prefetcher) Run(ctx context.Context) ([]*vector.Morsel, error) {
	if len(p.units) == 0 {
		return nil, nil
	}
	jobs := make(chan int, len(p.units))
	for i := range p.units {
		jobs <- i
	}
	close(jobs)

	results := make([]unitResult, len(p.units))
	var wg sync.WaitGroup
	workerCount := p.parallelism
	if workerCount > len(p.units) {
		workerCount = len(p.units)
	}
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.readUnit(ctx, idx)
			}
		}()
	}
	wg.Wait()

	var out []*vector.Morsel
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, r.morsels...)
	}
	return out, nil
}

func (p *Prefetcher) readUnit(ctx context.Context, idx int) unitResult {
	it, err := p.conn.Read(ctx, p.units[idx], p.projection, p.filter, p.limit)
	if err != nil {
		return unitResult{index: idx, err: cqlerr.Wrap(cqlerr.IoError, err, "connector: read unit %s failed", p.units[idx].ID)}
	}
	defer it.Close()
	var morsels []*vector.Morsel
	for {
		m, err := it.Next(ctx)
		if err != nil {
			return unitResult{index: idx, err: cqlerr.Wrap(cqlerr.IoError, err, "connector: unit %s iterator failed", p.units[idx].ID)}
		}
		if m == nil {
			break
		}
		morsels = append(morsels, m)
	}
	return unitResult{index: idx, morsels: morsels}
}
