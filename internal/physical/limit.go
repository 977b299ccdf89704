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

	"coreql/internal/stats"
	"coreql/pkg/vector"
)

// Limit passes through at most `count` rows, then stops pulling from
// input entirely (spec §4.6: LIMIT must short-circuit the upstream scan
// rather than draining it for a count that's already satisfied).
type Limit struct {
	base
	input   Operator
	count   int64
	emitted int64
	stats   *stats.Collector
}

// NewLimit wraps input, capping total emitted rows at count.
func NewLimit(input Operator, count int64, st *stats.Collector) *Limit {
	return &Limit{base: newBase("Limit"), input: input, count: count, stats: st}
}

func (l *Limit) Open(ctx context.Context) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if err := l.input.Open(ctx); err != nil {
		return err
	}
	l.schema = l.input.Schema()
	return nil
}

func (l *Limit) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := l.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Limit")
	}
	if l.emitted >= l.count {
		l.finish()
		return nil, nil
	}
	defer stats.Timer(l.stats, "Limit")()

	m, err := l.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		l.finish()
		return nil, nil
	}
	remaining := l.count - l.emitted
	if int64(m.NumRows()) <= remaining {
		l.emitted += int64(m.NumRows())
		l.stats.EmittedRows("Limit", m.NumRows())
		if l.emitted >= l.count {
			defer l.finish()
		}
		return m, nil
	}
	idx := make([]int32, remaining)
	for i := range idx {
		idx[i] = int32(i)
	}
	out, err := takeMorsel(m, idx)
	if err != nil {
		return nil, err
	}
	l.emitted = l.count
	l.stats.EmittedRows("Limit", out.NumRows())
	l.finish()
	return out, nil
}

func (l *Limit) Close() error {
	l.close()
	return l.input.Close()
}

func (l *Limit) Cancel() {
	l.cancel()
	l.input.Cancel()
}

// Offset discards the first `count` rows of input, then passes the rest
// through unchanged (spec §4.6).
type Offset struct {
	base
	input   Operator
	count   int64
	skipped int64
	stats   *stats.Collector
}

// NewOffset wraps input, dropping the first count rows.
func NewOffset(input Operator, count int64, st *stats.Collector) *Offset {
	return &Offset{base: newBase("Offset"), input: input, count: count, stats: st}
}

func (o *Offset) Open(ctx context.Context) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if err := o.input.Open(ctx); err != nil {
		return err
	}
	o.schema = o.input.Schema()
	return nil
}

func (o *Offset) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := o.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Offset")
	}
	defer stats.Timer(o.stats, "Offset")()

	for {
		m, err := o.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			o.finish()
			return nil, nil
		}
		if o.skipped >= o.count {
			o.stats.EmittedRows("Offset", m.NumRows())
			return m, nil
		}
		toSkip := o.count - o.skipped
		if int64(m.NumRows()) <= toSkip {
			o.skipped += int64(m.NumRows())
			continue
		}
		keepFrom := int(toSkip)
		idx := make([]int32, m.NumRows()-keepFrom)
		for i := range idx {
			idx[i] = int32(keepFrom + i)
		}
		o.skipped = o.count
		out, err := takeMorsel(m, idx)
		if err != nil {
			return nil, err
		}
		o.stats.EmittedRows("Offset", out.NumRows())
		return out, nil
	}
}

func (o *Offset) Close() error {
	o.close()
	return o.input.Close()
}

func (o *Offset) Cancel() {
	o.cancel()
	o.input.Cancel()
}
